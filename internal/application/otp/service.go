// Package otp issues and verifies short-lived numeric codes with single-use
// semantics. The durable store is authoritative; the injected cache only
// suppresses duplicate sends and skips a lookup on the happy path.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/go-identity-sync/internal/cache"
	"github.com/go-identity-sync/internal/domain"
)

// Validity window for issued codes.
const DefaultTTL = 10 * time.Minute

type IssueRequest struct {
	UserID      string `validate:"required"`
	Email       string
	Phone       string
	Method      string `validate:"required,oneof=email sms"`
	DisplayName string
}

type Service interface {
	// Issue generates and delivers a code, or silently reuses a pending
	// unexpired one without a second delivery.
	Issue(ctx context.Context, req IssueRequest) error
	// Verify consumes a code. Success purges every outstanding code for the
	// user across delivery methods; a code can never verify twice.
	Verify(ctx context.Context, userID, code string) error
}

type otpStore interface {
	Upsert(ctx context.Context, rec *domain.OTPRecord) error
	ListForUser(ctx context.Context, userID string) ([]domain.OTPRecord, error)
	Consume(ctx context.Context, userID, method, code string, now int64) (bool, error)
	Delete(ctx context.Context, userID, method string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type service struct {
	otps      otpStore
	codes     cache.Codes
	mailer    mailer
	smsSender smsSender
	ttl       time.Duration
	now       func() time.Time
}

type ServiceDeps struct {
	OTPRepo   otpStore
	Codes     cache.Codes
	Mailer    mailer
	SMSSender smsSender
	TTL       time.Duration
}

func NewService(deps ServiceDeps) Service {
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &service{
		otps:      deps.OTPRepo,
		codes:     deps.Codes,
		mailer:    deps.Mailer,
		smsSender: deps.SMSSender,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (s *service) Issue(ctx context.Context, req IssueRequest) error {
	switch req.Method {
	case domain.OTPMethodEmail:
		if req.Email == "" {
			return fmt.Errorf("email required for email delivery: %w", domain.ErrBadRequest)
		}
	case domain.OTPMethodSMS:
		if req.Phone == "" {
			return fmt.Errorf("phone number required for sms delivery: %w", domain.ErrBadRequest)
		}
	default:
		return fmt.Errorf("unknown delivery method %q: %w", req.Method, domain.ErrBadRequest)
	}

	now := s.now().UTC()
	key := cache.Key(req.UserID, req.Method)

	// A pending unexpired entry means a client retry: reuse the code and
	// skip delivery, but re-upsert the durable record so store and cache
	// stay aligned.
	if e, ok := s.codes.Peek(ctx, key); ok && e.ExpiresAt.After(now) {
		return s.otps.Upsert(ctx, &domain.OTPRecord{
			UserID:    req.UserID,
			Method:    req.Method,
			Code:      e.Code,
			ExpiresAt: e.ExpiresAt.Unix(),
			CreatedAt: now.Unix(),
		})
	}

	code, err := randomCode()
	if err != nil {
		return err
	}
	expiresAt := now.Add(s.ttl)

	s.codes.Put(ctx, key, cache.Entry{Code: code, ExpiresAt: expiresAt})
	if err := s.otps.Upsert(ctx, &domain.OTPRecord{
		UserID:    req.UserID,
		Method:    req.Method,
		Code:      code,
		ExpiresAt: expiresAt.Unix(),
		CreatedAt: now.Unix(),
	}); err != nil {
		s.codes.Remove(ctx, key)
		return err
	}

	if err := s.deliver(ctx, req, code); err != nil {
		// Drop the cached copy so the prompted retry issues and delivers a
		// fresh code instead of silently reusing an undelivered one.
		s.codes.Remove(ctx, key)
		slog.Warn("otp delivery failed", "user_id", req.UserID, "method", req.Method, "err", err)
		return fmt.Errorf("send %s code: %w", req.Method, domain.ErrOTPDeliveryFailed)
	}
	return nil
}

func (s *service) deliver(ctx context.Context, req IssueRequest, code string) error {
	greeting := "Hello"
	if req.DisplayName != "" {
		greeting = "Hello " + req.DisplayName
	}
	switch req.Method {
	case domain.OTPMethodEmail:
		body := fmt.Sprintf("%s,\r\n\r\nYour verification code is %s. It expires in %d minutes.",
			greeting, code, int(s.ttl.Minutes()))
		return s.mailer.SendEmail(req.Email, "Your verification code", body)
	default:
		return s.smsSender.SendSMS(ctx, req.Phone, fmt.Sprintf("%s, your verification code is %s", greeting, code))
	}
}

func (s *service) Verify(ctx context.Context, userID, code string) error {
	now := s.now().UTC()

	// The cache only narrows down which method row holds the code; the
	// conditional delete below is the single consumption gate either way.
	method := ""
	for _, m := range []string{domain.OTPMethodEmail, domain.OTPMethodSMS} {
		if e, ok := s.codes.Peek(ctx, cache.Key(userID, m)); ok && e.Code == code && e.ExpiresAt.After(now) {
			method = m
			break
		}
	}

	if method == "" {
		recs, err := s.otps.ListForUser(ctx, userID)
		if err != nil {
			return err
		}
		var match *domain.OTPRecord
		for i := range recs {
			if recs[i].Code == code {
				match = &recs[i]
				break
			}
		}
		if match == nil {
			return fmt.Errorf("no matching code: %w", domain.ErrOTPInvalid)
		}
		if match.ExpiresAt <= now.Unix() {
			if err := s.otps.Delete(ctx, userID, match.Method); err != nil {
				slog.Warn("failed to delete expired otp record", "user_id", userID, "err", err)
			}
			return fmt.Errorf("code past expiry: %w", domain.ErrOTPExpired)
		}
		method = match.Method
	}

	consumed, err := s.otps.Consume(ctx, userID, method, code, now.Unix())
	if err != nil {
		return err
	}
	if !consumed {
		// Raced with another verification or with expiry.
		return fmt.Errorf("code already consumed: %w", domain.ErrOTPInvalid)
	}

	// Single-use across methods: purge everything outstanding so a second
	// pending code cannot be replayed after this one is consumed.
	for _, m := range []string{domain.OTPMethodEmail, domain.OTPMethodSMS} {
		s.codes.Remove(ctx, cache.Key(userID, m))
	}
	if err := s.otps.DeleteAllForUser(ctx, userID); err != nil {
		slog.Warn("failed to purge otp records after verification", "user_id", userID, "err", err)
	}
	return nil
}

// randomCode draws a uniformly random 6-digit code, zero padded.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
