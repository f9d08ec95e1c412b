package http

import (
	"github.com/go-identity-sync/internal/cache"
	"github.com/go-identity-sync/internal/infrastructure/dynamo"
	"github.com/go-identity-sync/internal/infrastructure/provider"
	"github.com/go-identity-sync/internal/infrastructure/smtp"
	"github.com/go-identity-sync/internal/infrastructure/sns"
	"github.com/go-identity-sync/internal/pkg/secretbox"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo         *dynamo.UserRepo
	SubscriptionRepo *dynamo.SubscriptionRepo
	OTPRepo          *dynamo.OTPRepo
	TOTPRepo         *dynamo.TOTPRepo
	Provider         *provider.Client
	Codes            cache.Codes
	Mailer           smtp.Mailer
	SMSSender        sns.SMSSender
	SecretBox        *secretbox.Box
}
