// Package totp implements the second-factor enrollment state machine:
// DISABLED -> PENDING (secret generated, inactive) -> ENABLED, with disable
// gated on password re-authentication plus a valid code.
package totp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/go-identity-sync/internal/domain"
	"github.com/go-identity-sync/internal/pkg/secretbox"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

const (
	backupCodeCount = 10
	backupCodeBytes = 5 // 10 base32 characters per code

	// One adjacent 30s step either side is accepted to tolerate clock skew.
	skewSteps = 1
)

type Service interface {
	// StartEnrollment generates a pending secret and a scannable
	// provisioning URI. Nothing is enabled yet.
	StartEnrollment(ctx context.Context, userID, email string) (secret, provisioningURI string, err error)
	// ConfirmEnrollment validates the code against the pending secret and,
	// on match, atomically persists the credential with freshly generated
	// backup codes. The plaintext backup codes are returned exactly once.
	ConfirmEnrollment(ctx context.Context, userID, secret, code string) (backupCodes []string, err error)
	// VerifyCode checks a current TOTP code or consumes an unused backup
	// code for an enabled credential.
	VerifyCode(ctx context.Context, userID, code string) error
	// Disable removes the credential after password re-authentication and a
	// valid code.
	Disable(ctx context.Context, userID, password, code string) error
}

type totpStore interface {
	PutPending(ctx context.Context, p *domain.PendingTOTPSecret) error
	GetPending(ctx context.Context, userID string) (*domain.PendingTOTPSecret, error)
	Promote(ctx context.Context, cred *domain.TOTPCredential) error
	GetCredential(ctx context.Context, userID string) (*domain.TOTPCredential, error)
	UpdateBackupCodes(ctx context.Context, userID string, hashes []string) error
	DeleteCredential(ctx context.Context, userID string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type reauthenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) error
}

type service struct {
	store    totpStore
	users    userStore
	provider reauthenticator
	box      *secretbox.Box
	issuer   string
	now      func() time.Time
}

type ServiceDeps struct {
	TOTPRepo totpStore
	Users    userStore
	Provider reauthenticator
	Box      *secretbox.Box
	Issuer   string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		store:    deps.TOTPRepo,
		users:    deps.Users,
		provider: deps.Provider,
		box:      deps.Box,
		issuer:   deps.Issuer,
		now:      time.Now,
	}
}

func (s *service) StartEnrollment(ctx context.Context, userID, email string) (string, string, error) {
	if _, err := s.store.GetCredential(ctx, userID); err == nil {
		return "", "", fmt.Errorf("two-factor already enabled: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", "", err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: email,
	})
	if err != nil {
		return "", "", err
	}
	sealed, err := s.box.Seal(key.Secret())
	if err != nil {
		return "", "", err
	}
	if err := s.store.PutPending(ctx, &domain.PendingTOTPSecret{
		UserID:          userID,
		EncryptedSecret: sealed,
		CreatedAt:       s.now().UTC().Unix(),
	}); err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

func (s *service) ConfirmEnrollment(ctx context.Context, userID, secret, code string) ([]string, error) {
	pending, err := s.store.GetPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	pendingSecret, err := s.box.Open(pending.EncryptedSecret)
	if err != nil {
		return nil, err
	}
	// The code must derive from the secret generated at enrollment start; a
	// mismatched secret fails the same way a wrong code does.
	if secret != pendingSecret || !validateCode(code, pendingSecret, s.now()) {
		return nil, fmt.Errorf("confirmation code mismatch: %w", domain.ErrInvalidTotpCode)
	}

	plain, hashes, err := generateBackupCodes()
	if err != nil {
		return nil, err
	}
	if err := s.store.Promote(ctx, &domain.TOTPCredential{
		UserID:           userID,
		EncryptedSecret:  pending.EncryptedSecret,
		BackupCodeHashes: hashes,
		EnabledAt:        s.now().UTC(),
	}); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, userID, map[string]interface{}{"two_factor_enabled": true}); err != nil {
		return nil, err
	}
	return plain, nil
}

func (s *service) VerifyCode(ctx context.Context, userID, code string) error {
	cred, err := s.store.GetCredential(ctx, userID)
	if err != nil {
		return err
	}
	secret, err := s.box.Open(cred.EncryptedSecret)
	if err != nil {
		return err
	}
	if validateCode(code, secret, s.now()) {
		return nil
	}
	// Fall back to the single-use backup codes.
	for i, hash := range cred.BackupCodeHashes {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil {
			remaining := append(append([]string{}, cred.BackupCodeHashes[:i]...), cred.BackupCodeHashes[i+1:]...)
			return s.store.UpdateBackupCodes(ctx, userID, remaining)
		}
	}
	return fmt.Errorf("neither totp nor backup code matched: %w", domain.ErrInvalidTotpCode)
}

func (s *service) Disable(ctx context.Context, userID, password, code string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.provider.SignInWithPassword(ctx, u.Email, password); err != nil {
		return err
	}
	if err := s.VerifyCode(ctx, userID, code); err != nil {
		return err
	}
	if err := s.store.DeleteCredential(ctx, userID); err != nil {
		return err
	}
	return s.users.Update(ctx, userID, map[string]interface{}{"two_factor_enabled": false})
}

// validateCode accepts the current time step plus skewSteps either side.
func validateCode(code, secret string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period: 30,
		Skew:   skewSteps,
		Digits: 6,
	})
	return err == nil && ok
}

func generateBackupCodes() (plain []string, hashes []string, err error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"
	for i := 0; i < backupCodeCount; i++ {
		b := make([]byte, backupCodeBytes*2)
		if _, err := rand.Read(b); err != nil {
			return nil, nil, err
		}
		code := make([]byte, len(b))
		for j, c := range b {
			code[j] = alphabet[int(c)%len(alphabet)]
		}
		h, err := bcrypt.GenerateFromPassword(code, bcrypt.DefaultCost)
		if err != nil {
			return nil, nil, err
		}
		plain = append(plain, string(code))
		hashes = append(hashes, string(h))
	}
	return plain, hashes, nil
}
