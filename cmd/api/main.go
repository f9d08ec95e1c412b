package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-identity-sync/internal/application/otp"
	"github.com/go-identity-sync/internal/cache"
	"github.com/go-identity-sync/internal/config"
	"github.com/go-identity-sync/internal/infrastructure/dynamo"
	"github.com/go-identity-sync/internal/infrastructure/provider"
	"github.com/go-identity-sync/internal/infrastructure/smtp"
	"github.com/go-identity-sync/internal/infrastructure/sns"
	"github.com/go-identity-sync/internal/pkg/secretbox"
	transporthttp "github.com/go-identity-sync/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// Identity provider client.
	providerClient := provider.NewClient(cfg)

	// SMTP mailer.
	mailer := smtp.NewMailer(cfg)

	// SNS SMS sender (optional — graceful fallback).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	// OTP code cache: shared Redis when configured, in-process otherwise.
	var codes cache.Codes
	if cfg.RedisAddr != "" {
		codes = cache.NewRedis(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}))
		log.Printf("OTP cache backed by Redis at %s", cfg.RedisAddr)
	} else {
		codes = cache.NewMemory()
	}

	// TOTP secret encryption. A missing key gets a throwaway one so dev
	// works, at the cost of credentials not surviving a restart.
	cryptKey := cfg.TOTPCryptKey
	if cryptKey == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			log.Fatalf("generate totp crypt key: %v", err)
		}
		cryptKey = hex.EncodeToString(buf)
		log.Println("WARN: TOTP_CRYPT_KEY not set, using an ephemeral key")
	}
	box, err := secretbox.New(cryptKey)
	if err != nil {
		log.Fatalf("totp crypt key: %v", err)
	}

	otpRepo := dynamo.NewOTPRepo(dynamoClient, cfg.DynamoTables.UserOTPs)
	totpRepo := dynamo.NewTOTPRepo(dynamoClient, cfg.DynamoTables.TOTPPending, cfg.DynamoTables.TOTPCredentials)

	deps := &transporthttp.Deps{
		UserRepo:         dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		SubscriptionRepo: dynamo.NewSubscriptionRepo(dynamoClient, cfg.DynamoTables.Subscriptions),
		OTPRepo:          otpRepo,
		TOTPRepo:         totpRepo,
		Provider:         providerClient,
		Codes:            codes,
		Mailer:           mailer,
		SMSSender:        smsSender,
		SecretBox:        box,
	}

	router := transporthttp.NewRouter(cfg, deps)

	// Hourly sweep of expired codes and abandoned enrollments.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go otp.NewSweeper(otpRepo, totpRepo, time.Hour).Run(sweepCtx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopSweep()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
