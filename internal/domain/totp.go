package domain

import "time"

// PendingTOTPSecret exists only between enrollment start and confirm. The
// secret is AES-GCM encrypted at rest and never marked enabled before
// confirmation succeeds. Abandoned rows are swept after the retention window.
type PendingTOTPSecret struct {
	UserID          string `json:"user_id" dynamodbav:"user_id"`
	EncryptedSecret string `json:"-" dynamodbav:"encrypted_secret"`
	CreatedAt       int64  `json:"created_at" dynamodbav:"created_at"` // Unix seconds
}

// TOTPCredential is the enabled second factor. BackupCodeHashes holds bcrypt
// hashes of the single-use recovery codes; the plaintext codes are returned
// exactly once at confirmation and never stored.
type TOTPCredential struct {
	UserID           string    `json:"user_id" dynamodbav:"user_id"`
	EncryptedSecret  string    `json:"-" dynamodbav:"encrypted_secret"`
	BackupCodeHashes []string  `json:"-" dynamodbav:"backup_code_hashes"`
	EnabledAt        time.Time `json:"enabled_at" dynamodbav:"enabled_at"`
}
