// Package profile applies verified profile updates. The local store is
// authoritative and written first; a subset of fields is mirrored to the
// identity provider's metadata as a convenience projection, best effort.
package profile

import (
	"context"
	"log/slog"

	"github.com/go-identity-sync/internal/domain"
)

// Local attribute names used in partial update maps.
const (
	fieldFullName        = "full_name"
	fieldPhoneNumber     = "phone_number"
	fieldUserType        = "user_type"
	fieldFieldOfStudy    = "field_of_study"
	fieldSurveyCompleted = "survey_completed"
)

type Service interface {
	Update(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type metadataMirror interface {
	UpdateUserMetadata(ctx context.Context, id string, fields map[string]any) error
}

type service struct {
	users    userStore
	provider metadataMirror
}

func NewService(users userStore, provider metadataMirror) Service {
	return &service{users: users, provider: provider}
}

func (s *service) Update(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	updates := map[string]interface{}{}
	mirror := map[string]any{}
	if req.FullName != nil {
		updates[fieldFullName] = *req.FullName
		mirror[fieldFullName] = *req.FullName
	}
	if req.PhoneNumber != nil {
		updates[fieldPhoneNumber] = *req.PhoneNumber
		mirror[fieldPhoneNumber] = *req.PhoneNumber
	}
	if req.UserType != nil {
		updates[fieldUserType] = *req.UserType
		mirror[fieldUserType] = *req.UserType
	}
	if req.FieldOfStudy != nil {
		updates[fieldFieldOfStudy] = *req.FieldOfStudy
		mirror[fieldFieldOfStudy] = *req.FieldOfStudy
	}
	if req.SurveyCompleted != nil {
		updates[fieldSurveyCompleted] = *req.SurveyCompleted
	}
	if len(updates) == 0 {
		return s.users.Get(ctx, userID)
	}

	if err := s.users.Update(ctx, userID, updates); err != nil {
		return nil, err
	}

	// The provider copy is a projection, not a system of record: failure to
	// mirror is logged and never surfaced.
	if len(mirror) > 0 {
		if err := s.provider.UpdateUserMetadata(ctx, userID, mirror); err != nil {
			slog.Warn("failed to mirror profile fields to identity provider",
				"user_id", userID, "err", err)
		}
	}

	return s.users.Get(ctx, userID)
}
