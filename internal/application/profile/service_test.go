package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/go-identity-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

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

type mockMirror struct{ mock.Mock }

func (m *mockMirror) UpdateUserMetadata(ctx context.Context, id string, fields map[string]any) error {
	return m.Called(ctx, id, fields).Error(0)
}

func strptr(s string) *string { return &s }
func boolptr(b bool) *bool    { return &b }

func TestUpdate_AppliesOnlyProvidedFields(t *testing.T) {
	us := &mockUserStore{}
	pm := &mockMirror{}
	us.On("Update", mock.Anything, "u1", map[string]interface{}{
		"full_name":      "Ana",
		"field_of_study": "biology",
	}).Return(nil)
	pm.On("UpdateUserMetadata", mock.Anything, "u1", map[string]any{
		"full_name":      "Ana",
		"field_of_study": "biology",
	}).Return(nil)
	fresh := &domain.User{UserID: "u1", FullName: "Ana", FieldOfStudy: "biology"}
	us.On("Get", mock.Anything, "u1").Return(fresh, nil)

	svc := NewService(us, pm)
	u, err := svc.Update(context.Background(), "u1", domain.UpdateProfileRequest{
		FullName:     strptr("Ana"),
		FieldOfStudy: strptr("biology"),
	})

	require.NoError(t, err)
	assert.Equal(t, fresh, u)
	us.AssertExpectations(t)
	pm.AssertExpectations(t)
}

func TestUpdate_SurveyCompleted_NotMirrored(t *testing.T) {
	us := &mockUserStore{}
	pm := &mockMirror{}
	us.On("Update", mock.Anything, "u1", map[string]interface{}{"survey_completed": true}).Return(nil)
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", SurveyCompleted: true}, nil)

	svc := NewService(us, pm)
	_, err := svc.Update(context.Background(), "u1", domain.UpdateProfileRequest{
		SurveyCompleted: boolptr(true),
	})

	require.NoError(t, err)
	pm.AssertNotCalled(t, "UpdateUserMetadata", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdate_EmptyRequest_ReturnsCurrentProfile(t *testing.T) {
	us := &mockUserStore{}
	existing := &domain.User{UserID: "u1", FullName: "Ana"}
	us.On("Get", mock.Anything, "u1").Return(existing, nil)

	svc := NewService(us, &mockMirror{})
	u, err := svc.Update(context.Background(), "u1", domain.UpdateProfileRequest{})

	require.NoError(t, err)
	assert.Equal(t, existing, u)
	us.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdate_MirrorFailure_NotSurfaced(t *testing.T) {
	us := &mockUserStore{}
	pm := &mockMirror{}
	us.On("Update", mock.Anything, "u1", mock.Anything).Return(nil)
	pm.On("UpdateUserMetadata", mock.Anything, "u1", mock.Anything).Return(errors.New("provider down"))
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", FullName: "Ana"}, nil)

	svc := NewService(us, pm)
	u, err := svc.Update(context.Background(), "u1", domain.UpdateProfileRequest{FullName: strptr("Ana")})

	require.NoError(t, err, "the local store is authoritative; mirror failures are best effort")
	assert.Equal(t, "Ana", u.FullName)
}

func TestUpdate_LocalStoreFailure_Surfaced(t *testing.T) {
	us := &mockUserStore{}
	pm := &mockMirror{}
	boom := errors.New("dynamo down")
	us.On("Update", mock.Anything, "u1", mock.Anything).Return(boom)

	svc := NewService(us, pm)
	_, err := svc.Update(context.Background(), "u1", domain.UpdateProfileRequest{FullName: strptr("Ana")})

	require.ErrorIs(t, err, boom)
	pm.AssertNotCalled(t, "UpdateUserMetadata", mock.Anything, mock.Anything, mock.Anything)
}
