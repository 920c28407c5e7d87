package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultGuardTTL = 24 * time.Hour

// CheckInGuard serialises check-ins per student, subject and day with SETNX.
// Without redis every acquire succeeds and the database unique index is the only guard.
type CheckInGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCheckInGuard(client *redis.Client, ttl time.Duration) *CheckInGuard {
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	return &CheckInGuard{client: client, ttl: ttl}
}

func GuardKey(subjectID uint, studentID, date string) string {
	return fmt.Sprintf("checkin:%d:%s:%s", subjectID, studentID, date)
}

// Acquire returns false when the key is already held
func (g *CheckInGuard) Acquire(ctx context.Context, subjectID uint, studentID, date string) (bool, error) {
	if g.client == nil {
		return true, nil
	}

	ok, err := g.client.SetNX(ctx, GuardKey(subjectID, studentID, date), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("check-in guard acquire: %w", err)
	}
	return ok, nil
}

// Release frees the key so the student can retry
func (g *CheckInGuard) Release(ctx context.Context, subjectID uint, studentID, date string) error {
	if g.client == nil {
		return nil
	}

	if err := g.client.Del(ctx, GuardKey(subjectID, studentID, date)).Err(); err != nil {
		return fmt.Errorf("check-in guard release: %w", err)
	}
	return nil
}
