package totp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-identity-sync/internal/domain"
	"github.com/go-identity-sync/internal/pkg/secretbox"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockTOTPStore struct{ mock.Mock }

func (m *mockTOTPStore) PutPending(ctx context.Context, p *domain.PendingTOTPSecret) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockTOTPStore) GetPending(ctx context.Context, userID string) (*domain.PendingTOTPSecret, error) {
	args := m.Called(ctx, userID)
	if p, _ := args.Get(0).(*domain.PendingTOTPSecret); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockTOTPStore) Promote(ctx context.Context, cred *domain.TOTPCredential) error {
	return m.Called(ctx, cred).Error(0)
}
func (m *mockTOTPStore) GetCredential(ctx context.Context, userID string) (*domain.TOTPCredential, error) {
	args := m.Called(ctx, userID)
	if c, _ := args.Get(0).(*domain.TOTPCredential); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockTOTPStore) UpdateBackupCodes(ctx context.Context, userID string, hashes []string) error {
	return m.Called(ctx, userID, hashes).Error(0)
}
func (m *mockTOTPStore) DeleteCredential(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type mockReauth struct{ mock.Mock }

func (m *mockReauth) SignInWithPassword(ctx context.Context, email, password string) error {
	return m.Called(ctx, email, password).Error(0)
}

// --- helpers ---

const testCryptKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func testBox(t *testing.T) *secretbox.Box {
	t.Helper()
	box, err := secretbox.New(testCryptKey)
	require.NoError(t, err)
	return box
}

func newTestService(store *mockTOTPStore, users *mockUserStore, reauth *mockReauth, box *secretbox.Box) Service {
	return NewService(ServiceDeps{
		TOTPRepo: store,
		Users:    users,
		Provider: reauth,
		Box:      box,
		Issuer:   "identity-sync-test",
	})
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return code
}

// sealedSecret generates a fresh TOTP secret and returns it both plain and
// sealed with the test box.
func sealedSecret(t *testing.T, box *secretbox.Box) (plain, sealed string) {
	t.Helper()
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "x", AccountName: "a@x.com"})
	require.NoError(t, err)
	sealed, err = box.Seal(key.Secret())
	require.NoError(t, err)
	return key.Secret(), sealed
}

// --- StartEnrollment ---

func TestStartEnrollment_PersistsPendingSecretEncrypted(t *testing.T) {
	store := &mockTOTPStore{}
	box := testBox(t)
	store.On("GetCredential", mock.Anything, "u1").Return(nil, domain.ErrNotFound)

	var stored *domain.PendingTOTPSecret
	store.On("PutPending", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*domain.PendingTOTPSecret)
	}).Return(nil)

	svc := newTestService(store, nil, nil, box)
	secret, uri, err := svc.StartEnrollment(context.Background(), "u1", "a@x.com")

	require.NoError(t, err)
	assert.NotEmpty(t, secret)
	assert.Contains(t, uri, "otpauth://totp/")
	assert.Contains(t, uri, "identity-sync-test")

	require.NotNil(t, stored)
	assert.NotEqual(t, secret, stored.EncryptedSecret, "the secret must not be stored in the clear")
	opened, err := box.Open(stored.EncryptedSecret)
	require.NoError(t, err)
	assert.Equal(t, secret, opened)
}

func TestStartEnrollment_AlreadyEnabled_Conflicts(t *testing.T) {
	store := &mockTOTPStore{}
	store.On("GetCredential", mock.Anything, "u1").Return(&domain.TOTPCredential{UserID: "u1"}, nil)

	svc := newTestService(store, nil, nil, testBox(t))
	_, _, err := svc.StartEnrollment(context.Background(), "u1", "a@x.com")

	require.ErrorIs(t, err, domain.ErrConflict)
	store.AssertNotCalled(t, "PutPending", mock.Anything, mock.Anything)
}

func TestStartEnrollment_Restart_ReplacesPendingSecret(t *testing.T) {
	store := &mockTOTPStore{}
	store.On("GetCredential", mock.Anything, "u1").Return(nil, domain.ErrNotFound)
	store.On("PutPending", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(store, nil, nil, testBox(t))
	first, _, err := svc.StartEnrollment(context.Background(), "u1", "a@x.com")
	require.NoError(t, err)
	second, _, err := svc.StartEnrollment(context.Background(), "u1", "a@x.com")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "restarting enrollment must mint a new secret")
	store.AssertNumberOfCalls(t, "PutPending", 2)
}

// --- ConfirmEnrollment ---

func TestConfirmEnrollment_ValidCode_PromotesAndReturnsBackupCodes(t *testing.T) {
	store := &mockTOTPStore{}
	users := &mockUserStore{}
	box := testBox(t)
	plain, sealed := sealedSecret(t, box)

	store.On("GetPending", mock.Anything, "u1").Return(&domain.PendingTOTPSecret{
		UserID: "u1", EncryptedSecret: sealed,
	}, nil)
	var promoted *domain.TOTPCredential
	store.On("Promote", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		promoted = args.Get(1).(*domain.TOTPCredential)
	}).Return(nil)
	users.On("Update", mock.Anything, "u1", map[string]interface{}{"two_factor_enabled": true}).Return(nil)

	svc := newTestService(store, users, nil, box)
	codes, err := svc.ConfirmEnrollment(context.Background(), "u1", plain, currentCode(t, plain))

	require.NoError(t, err)
	require.Len(t, codes, 10)
	for _, c := range codes {
		assert.Len(t, c, 10)
		assert.Equal(t, strings.ToUpper(c), c)
	}
	require.NotNil(t, promoted)
	assert.Equal(t, sealed, promoted.EncryptedSecret)
	require.Len(t, promoted.BackupCodeHashes, 10)
	// Hashes must actually correspond to the returned plaintext codes.
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(promoted.BackupCodeHashes[0]), []byte(codes[0])))
	users.AssertExpectations(t)
}

func TestConfirmEnrollment_WrongCode_NothingPersisted(t *testing.T) {
	store := &mockTOTPStore{}
	box := testBox(t)
	plain, sealed := sealedSecret(t, box)
	store.On("GetPending", mock.Anything, "u1").Return(&domain.PendingTOTPSecret{
		UserID: "u1", EncryptedSecret: sealed,
	}, nil)

	svc := newTestService(store, &mockUserStore{}, nil, box)
	_, err := svc.ConfirmEnrollment(context.Background(), "u1", plain, "000000")

	require.ErrorIs(t, err, domain.ErrInvalidTotpCode)
	store.AssertNotCalled(t, "Promote", mock.Anything, mock.Anything)
}

func TestConfirmEnrollment_StaleSecret_Rejected(t *testing.T) {
	store := &mockTOTPStore{}
	box := testBox(t)
	_, sealed := sealedSecret(t, box)
	stale, _ := sealedSecret(t, box)
	store.On("GetPending", mock.Anything, "u1").Return(&domain.PendingTOTPSecret{
		UserID: "u1", EncryptedSecret: sealed,
	}, nil)

	svc := newTestService(store, &mockUserStore{}, nil, box)
	// A valid code for an old secret must not confirm against the new one.
	_, err := svc.ConfirmEnrollment(context.Background(), "u1", stale, currentCode(t, stale))

	require.ErrorIs(t, err, domain.ErrInvalidTotpCode)
	store.AssertNotCalled(t, "Promote", mock.Anything, mock.Anything)
}

func TestConfirmEnrollment_NoPendingSecret_NotFound(t *testing.T) {
	store := &mockTOTPStore{}
	store.On("GetPending", mock.Anything, "u1").Return(nil, domain.ErrNotFound)

	svc := newTestService(store, &mockUserStore{}, nil, testBox(t))
	_, err := svc.ConfirmEnrollment(context.Background(), "u1", "SECRET", "123456")

	require.ErrorIs(t, err, domain.ErrNotFound)
}

// --- VerifyCode ---

func TestVerifyCode_CurrentCode_Accepted(t *testing.T) {
	store := &mockTOTPStore{}
	box := testBox(t)
	plain, sealed := sealedSecret(t, box)
	store.On("GetCredential", mock.Anything, "u1").Return(&domain.TOTPCredential{
		UserID: "u1", EncryptedSecret: sealed,
	}, nil)

	svc := newTestService(store, nil, nil, box)
	require.NoError(t, svc.VerifyCode(context.Background(), "u1", currentCode(t, plain)))
}

func TestVerifyCode_BackupCode_ConsumedOnce(t *testing.T) {
	store := &mockTOTPStore{}
	box := testBox(t)
	_, sealed := sealedSecret(t, box)
	h1, err := bcrypt.GenerateFromPassword([]byte("AAAAABBBBB"), bcrypt.MinCost)
	require.NoError(t, err)
	h2, err := bcrypt.GenerateFromPassword([]byte("CCCCCDDDDD"), bcrypt.MinCost)
	require.NoError(t, err)

	store.On("GetCredential", mock.Anything, "u1").Return(&domain.TOTPCredential{
		UserID:           "u1",
		EncryptedSecret:  sealed,
		BackupCodeHashes: []string{string(h1), string(h2)},
	}, nil)
	store.On("UpdateBackupCodes", mock.Anything, "u1", []string{string(h2)}).Return(nil)

	svc := newTestService(store, nil, nil, box)
	require.NoError(t, svc.VerifyCode(context.Background(), "u1", "AAAAABBBBB"))
	store.AssertExpectations(t)
}

func TestVerifyCode_WrongCode_Invalid(t *testing.T) {
	store := &mockTOTPStore{}
	box := testBox(t)
	_, sealed := sealedSecret(t, box)
	store.On("GetCredential", mock.Anything, "u1").Return(&domain.TOTPCredential{
		UserID: "u1", EncryptedSecret: sealed,
	}, nil)

	svc := newTestService(store, nil, nil, box)
	err := svc.VerifyCode(context.Background(), "u1", "000000")

	require.ErrorIs(t, err, domain.ErrInvalidTotpCode)
}

func TestVerifyCode_NotEnrolled_NotFound(t *testing.T) {
	store := &mockTOTPStore{}
	store.On("GetCredential", mock.Anything, "u1").Return(nil, domain.ErrNotFound)

	svc := newTestService(store, nil, nil, testBox(t))
	require.ErrorIs(t, svc.VerifyCode(context.Background(), "u1", "123456"), domain.ErrNotFound)
}

// --- Disable ---

func TestDisable_HappyPath_RemovesCredentialAndClearsFlag(t *testing.T) {
	store := &mockTOTPStore{}
	users := &mockUserStore{}
	reauth := &mockReauth{}
	box := testBox(t)
	plain, sealed := sealedSecret(t, box)

	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "a@x.com"}, nil)
	reauth.On("SignInWithPassword", mock.Anything, "a@x.com", "pw").Return(nil)
	store.On("GetCredential", mock.Anything, "u1").Return(&domain.TOTPCredential{
		UserID: "u1", EncryptedSecret: sealed,
	}, nil)
	store.On("DeleteCredential", mock.Anything, "u1").Return(nil)
	users.On("Update", mock.Anything, "u1", map[string]interface{}{"two_factor_enabled": false}).Return(nil)

	svc := newTestService(store, users, reauth, box)
	require.NoError(t, svc.Disable(context.Background(), "u1", "pw", currentCode(t, plain)))
	store.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestDisable_BadPassword_KeepsCredential(t *testing.T) {
	store := &mockTOTPStore{}
	users := &mockUserStore{}
	reauth := &mockReauth{}

	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "a@x.com"}, nil)
	reauth.On("SignInWithPassword", mock.Anything, "a@x.com", "wrong").Return(domain.ErrUnauthorized)

	svc := newTestService(store, users, reauth, testBox(t))
	err := svc.Disable(context.Background(), "u1", "wrong", "123456")

	require.ErrorIs(t, err, domain.ErrUnauthorized)
	store.AssertNotCalled(t, "DeleteCredential", mock.Anything, mock.Anything)
}

func TestDisable_BadCode_KeepsCredential(t *testing.T) {
	store := &mockTOTPStore{}
	users := &mockUserStore{}
	reauth := &mockReauth{}
	box := testBox(t)
	_, sealed := sealedSecret(t, box)

	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "a@x.com"}, nil)
	reauth.On("SignInWithPassword", mock.Anything, "a@x.com", "pw").Return(nil)
	store.On("GetCredential", mock.Anything, "u1").Return(&domain.TOTPCredential{
		UserID: "u1", EncryptedSecret: sealed,
	}, nil)

	svc := newTestService(store, users, reauth, box)
	err := svc.Disable(context.Background(), "u1", "pw", "000000")

	require.ErrorIs(t, err, domain.ErrInvalidTotpCode)
	store.AssertNotCalled(t, "DeleteCredential", mock.Anything, mock.Anything)
}
