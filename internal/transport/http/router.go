package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-identity-sync/internal/application/otp"
	"github.com/go-identity-sync/internal/application/profile"
	"github.com/go-identity-sync/internal/application/reconcile"
	"github.com/go-identity-sync/internal/application/token"
	"github.com/go-identity-sync/internal/application/totp"
	"github.com/go-identity-sync/internal/config"
	"github.com/go-identity-sync/internal/transport/http/handler"
	appmiddleware "github.com/go-identity-sync/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	tokenSvc := token.NewService(deps.Provider)
	reconcileSvc := reconcile.NewService(deps.UserRepo, deps.SubscriptionRepo, deps.Provider)
	otpSvc := otp.NewService(otp.ServiceDeps{
		OTPRepo:   deps.OTPRepo,
		Codes:     deps.Codes,
		Mailer:    deps.Mailer,
		SMSSender: deps.SMSSender,
		TTL:       cfg.OTPTTL,
	})
	totpSvc := totp.NewService(totp.ServiceDeps{
		TOTPRepo: deps.TOTPRepo,
		Users:    deps.UserRepo,
		Provider: deps.Provider,
		Box:      deps.SecretBox,
		Issuer:   cfg.TOTPIssuer,
	})
	profileSvc := profile.NewService(deps.UserRepo, deps.Provider)

	authMw := appmiddleware.Auth(tokenSvc)

	// 5 requests/second, burst of 10 — applied to code issuance and
	// verification so they cannot be used as a guessing oracle.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	sessionH := handler.NewSessionHandler(reconcileSvc)
	otpH := handler.NewOTPHandler(otpSvc, reconcileSvc)
	totpH := handler.NewTOTPHandler(totpSvc)
	profileH := handler.NewProfileHandler(profileSvc)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/sessions", sessionH.Reconcile)
			r.Put("/profile", profileH.Update)

			r.With(sensitiveRL.Limit).Post("/register/otp", otpH.Register)
			r.With(sensitiveRL.Limit).Post("/register/verify", otpH.RegisterVerify)
			r.With(sensitiveRL.Limit).Post("/otp", otpH.Issue)
			r.With(sensitiveRL.Limit).Post("/otp/verify", otpH.Verify)

			r.Post("/totp/enroll", totpH.Enroll)
			r.With(sensitiveRL.Limit).Post("/totp/confirm", totpH.Confirm)
			r.With(sensitiveRL.Limit).Post("/totp/disable", totpH.Disable)
		})
	})

	return r
}
