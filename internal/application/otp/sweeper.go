package otp

import (
	"context"
	"log/slog"
	"time"
)

// Pending TOTP secrets are kept for the same window as OTP codes before a
// sweep reclaims them.
const pendingSecretRetention = 10 * time.Minute

type expiredOTPStore interface {
	SweepExpired(ctx context.Context, now int64) (int, error)
}

type pendingSecretStore interface {
	SweepPendingBefore(ctx context.Context, cutoff int64) (int, error)
}

// Sweeper periodically reclaims expired OTP rows and abandoned pending TOTP
// secrets. DynamoDB TTL collects OTP rows eventually regardless; the sweeper
// bounds the lag and covers the pending-secret table, which has no TTL.
type Sweeper struct {
	otps     expiredOTPStore
	pending  pendingSecretStore
	interval time.Duration
}

func NewSweeper(otps expiredOTPStore, pending pendingSecretStore, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{otps: otps, pending: pending, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now().UTC()
	if n, err := s.otps.SweepExpired(ctx, now.Unix()); err != nil {
		slog.Warn("otp sweep failed", "err", err)
	} else if n > 0 {
		slog.Info("swept expired otp records", "count", n)
	}
	cutoff := now.Add(-pendingSecretRetention).Unix()
	if n, err := s.pending.SweepPendingBefore(ctx, cutoff); err != nil {
		slog.Warn("pending totp sweep failed", "err", err)
	} else if n > 0 {
		slog.Info("swept abandoned totp enrollments", "count", n)
	}
}
