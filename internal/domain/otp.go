package domain

// Delivery methods for one-time codes.
const (
	OTPMethodEmail = "email"
	OTPMethodSMS   = "sms"
)

// OTPRecord stores a pending one-time code.
// PK: user_id, SK: method ("email" | "sms") — at most one active code per
// (user, method), enforced by upsert on that composite key.
// ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type OTPRecord struct {
	UserID    string `json:"user_id" dynamodbav:"user_id"`
	Method    string `json:"method" dynamodbav:"method"`
	Code      string `json:"code" dynamodbav:"code"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
	CreatedAt int64  `json:"created_at" dynamodbav:"created_at"`
}
