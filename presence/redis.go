package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	redis "github.com/redis/go-redis/v9"

	"roommatch/models"
)

// RedisStore keeps one hash per user under "presence:<id>". Keys expire a
// while after the last write so abandoned users do not accumulate.
type RedisStore struct {
	client *redis.Client
	clock  clockwork.Clock
}

func NewRedisStore(client *redis.Client, clock clockwork.Clock) *RedisStore {
	return &RedisStore{client: client, clock: clock}
}

var _ Store = (*RedisStore)(nil)

const recordTTL = 24 * time.Hour

func presenceKey(userID string) string { return "presence:" + userID }

func (r *RedisStore) write(ctx context.Context, userID string, values ...any) error {
	key := presenceKey(userID)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, values...)
	pipe.Expire(ctx, key, recordTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence: write %s: %w", userID, err)
	}
	return nil
}

func (r *RedisStore) SetOnline(ctx context.Context, userID, name string) error {
	return r.write(ctx, userID,
		"name", name,
		"online", "1",
		"lastActivityAt", r.clock.Now().UnixMilli(),
	)
}

func (r *RedisStore) SetOffline(ctx context.Context, userID string) error {
	return r.write(ctx, userID, "online", "0")
}

func (r *RedisStore) Heartbeat(ctx context.Context, userID string) error {
	return r.write(ctx, userID,
		"online", "1",
		"lastActivityAt", r.clock.Now().UnixMilli(),
	)
}

func (r *RedisStore) Get(ctx context.Context, userID string) (models.PresenceRecord, error) {
	m, err := r.client.HGetAll(ctx, presenceKey(userID)).Result()
	if err != nil {
		return models.PresenceRecord{}, fmt.Errorf("presence: get %s: %w", userID, err)
	}
	if len(m) == 0 {
		return models.PresenceRecord{}, ErrUnknownUser
	}
	ts, _ := strconv.ParseInt(m["lastActivityAt"], 10, 64)
	return models.PresenceRecord{
		UserID:         userID,
		Name:           m["name"],
		Online:         m["online"] == "1",
		LastActivityAt: ts,
	}, nil
}

func (r *RedisStore) IsRecentlyActive(ctx context.Context, userID string) (bool, error) {
	return recentlyActive(ctx, r, r.clock, userID)
}
