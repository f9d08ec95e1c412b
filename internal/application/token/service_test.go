package token

import (
	"context"
	"testing"

	"github.com/go-identity-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockIntrospector struct{ mock.Mock }

func (m *mockIntrospector) VerifyToken(ctx context.Context, token string) (*domain.CanonicalIdentity, error) {
	args := m.Called(ctx, token)
	if id, _ := args.Get(0).(*domain.CanonicalIdentity); id != nil {
		return id, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestVerify_ValidToken_ReturnsIdentity(t *testing.T) {
	p := &mockIntrospector{}
	p.On("VerifyToken", mock.Anything, "tok").Return(&domain.CanonicalIdentity{
		ID: "u1", Email: "a@x.com", EmailVerified: true,
	}, nil)

	svc := NewService(p)
	id, err := svc.Verify(context.Background(), "tok")

	require.NoError(t, err)
	assert.Equal(t, "u1", id.ID)
	assert.Equal(t, "a@x.com", id.Email)
	assert.True(t, id.EmailVerified)
}

func TestVerify_EmptyToken_RejectedWithoutProviderCall(t *testing.T) {
	p := &mockIntrospector{}

	svc := NewService(p)
	_, err := svc.Verify(context.Background(), "")

	require.ErrorIs(t, err, domain.ErrInvalidToken)
	p.AssertNotCalled(t, "VerifyToken", mock.Anything, mock.Anything)
}

func TestVerify_ProviderRejection_Propagates(t *testing.T) {
	p := &mockIntrospector{}
	p.On("VerifyToken", mock.Anything, "bad").Return(nil, domain.ErrInvalidToken)

	svc := NewService(p)
	_, err := svc.Verify(context.Background(), "bad")

	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerify_ProviderOutage_Propagates(t *testing.T) {
	p := &mockIntrospector{}
	p.On("VerifyToken", mock.Anything, "tok").Return(nil, domain.ErrProviderUnavailable)

	svc := NewService(p)
	_, err := svc.Verify(context.Background(), "tok")

	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.NotErrorIs(t, err, domain.ErrInvalidToken, "an outage must not read as a bad token")
}

func TestVerify_IdentityWithoutID_Rejected(t *testing.T) {
	p := &mockIntrospector{}
	p.On("VerifyToken", mock.Anything, "tok").Return(&domain.CanonicalIdentity{Email: "a@x.com"}, nil)

	svc := NewService(p)
	_, err := svc.Verify(context.Background(), "tok")

	require.ErrorIs(t, err, domain.ErrInvalidToken)
}
