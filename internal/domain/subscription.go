package domain

import "time"

const (
	PlanFree = "free"

	SubscriptionActive = "active"
)

// Subscription is the billing-facing row provisioned alongside every new
// user. Creation is idempotent: at most one row per user.
type Subscription struct {
	UserID         string    `json:"user_id" dynamodbav:"user_id"`
	SubscriptionID string    `json:"subscription_id" dynamodbav:"subscription_id"`
	Plan           string    `json:"plan" dynamodbav:"plan"`
	Status         string    `json:"status" dynamodbav:"status"`
	CreatedAt      time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" dynamodbav:"updated_at"`
}
