package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker provides a Redis-backed distributed lock. The callback pipeline takes
// one lock per bill link so concurrent provider retries for the same payment
// serialize instead of racing on the order row.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
}

// BillLinkKey names the lock guarding all callback processing for one link.
func BillLinkKey(billLinkID string) string {
	return "flip:cb:lock:" + billLinkID
}

// WithLock executes fn while holding a lock for the provided key. The lock is
// released automatically even if fn returns an error. When the lock cannot be
// acquired before the context is cancelled an error is returned.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	token := uuid.NewString()
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}

	for {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			defer l.release(context.Background(), key, token)
			return fn(ctx)
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l Locker) release(ctx context.Context, key, token string) {
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`
	if err := l.R.Eval(ctx, script, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = l.R.Del(ctx, key).Err()
		}
	}
}

// ReplayGuard remembers callbacks that have already been applied so provider
// retries become cheap no-ops. It is best effort; the database keeps the
// authoritative record.
type ReplayGuard struct {
	R   *redis.Client
	TTL time.Duration
}

func replayKey(billLinkID, trxID string) string {
	return fmt.Sprintf("flip:cb:seen:%s:%s", billLinkID, trxID)
}

// MarkApplied records that the (bill link, transaction) pair has been applied.
// It returns false when the pair was already recorded.
func (g ReplayGuard) MarkApplied(ctx context.Context, billLinkID, trxID string) (bool, error) {
	if g.R == nil {
		return true, nil
	}
	ttl := g.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return g.R.SetNX(ctx, replayKey(billLinkID, trxID), "1", ttl).Result()
}

// Seen reports whether the pair was recorded without mutating anything.
func (g ReplayGuard) Seen(ctx context.Context, billLinkID, trxID string) (bool, error) {
	if g.R == nil {
		return false, nil
	}
	n, err := g.R.Exists(ctx, replayKey(billLinkID, trxID)).Result()
	return n > 0, err
}

// Forget drops the replay marker. Used when applying the callback failed after
// the marker was set, so the provider's next retry is processed again.
func (g ReplayGuard) Forget(ctx context.Context, billLinkID, trxID string) error {
	if g.R == nil {
		return nil
	}
	return g.R.Del(ctx, replayKey(billLinkID, trxID)).Err()
}
