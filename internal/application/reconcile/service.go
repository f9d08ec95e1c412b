// Package reconcile idempotently provisions and reconciles local user
// records from provider identities. The store's uniqueness guarantees (not
// application-level locking) are what make concurrent reconciliation of the
// same identity safe.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-identity-sync/internal/domain"
	"github.com/go-identity-sync/internal/pkg/id"
)

type Service interface {
	// Reconcile ensures a local user exists for the identity and returns it.
	// Concurrent calls for the same never-seen identity produce exactly one
	// user and one subscription row.
	Reconcile(ctx context.Context, identity *domain.CanonicalIdentity, extras *domain.RegistrationExtras) (*domain.User, error)
	// MarkEmailVerified confirms the email on the provider side and promotes
	// the local flag.
	MarkEmailVerified(ctx context.Context, userID string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type subscriptionStore interface {
	CreateIfAbsent(ctx context.Context, s *domain.Subscription) error
}

type providerAdmin interface {
	SetEmailConfirmed(ctx context.Context, id string) error
}

type service struct {
	users         userStore
	subscriptions subscriptionStore
	provider      providerAdmin
}

func NewService(users userStore, subscriptions subscriptionStore, provider providerAdmin) Service {
	return &service{users: users, subscriptions: subscriptions, provider: provider}
}

func (s *service) Reconcile(ctx context.Context, identity *domain.CanonicalIdentity, extras *domain.RegistrationExtras) (*domain.User, error) {
	u, err := s.users.Get(ctx, identity.ID)
	if err == nil {
		// Provider-confirmed verification is promoted but never undone.
		if identity.EmailVerified && !u.EmailVerified {
			if err := s.users.Update(ctx, u.UserID, map[string]interface{}{"email_verified": true}); err != nil {
				return nil, err
			}
			u.EmailVerified = true
		}
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	// Not found by id: an existing row under the same email means the
	// provider id diverged. Use the existing row rather than create a
	// duplicate; never silently reassign ids.
	u, err = s.users.GetByEmail(ctx, identity.Email)
	if err == nil {
		slog.Warn("identity id/email conflict, using existing user",
			"provider_id", identity.ID, "local_id", u.UserID, "email", identity.Email)
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	fresh := &domain.User{
		UserID:        identity.ID,
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if extras != nil {
		fresh.FullName = extras.FullName
		fresh.PhoneNumber = extras.PhoneNumber
		fresh.UserType = extras.UserType
		fresh.FieldOfStudy = extras.FieldOfStudy
	}

	if err := s.users.Create(ctx, fresh); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Another caller won the race; their row is the canonical one.
			return s.rereadWinner(ctx, identity)
		}
		return nil, err
	}

	if err := s.subscriptions.CreateIfAbsent(ctx, &domain.Subscription{
		UserID:         fresh.UserID,
		SubscriptionID: id.New(),
		Plan:           domain.PlanFree,
		Status:         domain.SubscriptionActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}); err != nil {
		return nil, err
	}
	return fresh, nil
}

// rereadWinner resolves an insert race by re-reading whichever row the
// winning caller created, by id first and by email as the fallback.
func (s *service) rereadWinner(ctx context.Context, identity *domain.CanonicalIdentity) (*domain.User, error) {
	u, err := s.users.Get(ctx, identity.ID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	u, err = s.users.GetByEmail(ctx, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("lost provisioning race but winner row not found: %w", err)
	}
	return u, nil
}

func (s *service) MarkEmailVerified(ctx context.Context, userID string) error {
	if err := s.provider.SetEmailConfirmed(ctx, userID); err != nil {
		return err
	}
	return s.users.Update(ctx, userID, map[string]interface{}{"email_verified": true})
}
