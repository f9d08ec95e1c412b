package domain

import "time"

// User is the application-owned user record. UserID equals the provider
// identity id that created it and is never reassigned; Email is unique.
type User struct {
	UserID           string    `json:"id" dynamodbav:"user_id"`
	Email            string    `json:"email" dynamodbav:"email"`
	EmailVerified    bool      `json:"email_verified" dynamodbav:"email_verified"`
	FullName         string    `json:"full_name" dynamodbav:"full_name"`
	PhoneNumber      string    `json:"phone_number" dynamodbav:"phone_number"`
	UserType         string    `json:"user_type" dynamodbav:"user_type"`
	FieldOfStudy     string    `json:"field_of_study" dynamodbav:"field_of_study"`
	SurveyCompleted  bool      `json:"survey_completed" dynamodbav:"survey_completed"`
	TwoFactorEnabled bool      `json:"two_factor_enabled" dynamodbav:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// UpdateProfileRequest is a partial profile update. Nil fields are left
// untouched.
type UpdateProfileRequest struct {
	FullName        *string `json:"full_name"`
	PhoneNumber     *string `json:"phone_number"`
	UserType        *string `json:"user_type"`
	FieldOfStudy    *string `json:"field_of_study"`
	SurveyCompleted *bool   `json:"survey_completed"`
}
