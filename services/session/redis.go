package sessionsvc

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const keyPrefix = "gsrp:session:"

// RedisRegistry keeps the live session ids in Redis, expiring with the sessions.
type RedisRegistry struct {
	client *redis.Client
}

// OpenRedis connects to the Redis server at url (redis://[:password@]host:port/db).
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func sessionKey(id string) string {
	return keyPrefix + id
}

func (r *RedisRegistry) Register(ctx context.Context, id, userID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, sessionKey(id), userID, ttl).Err(); err != nil {
		return errors.Wrap(err, "registering session")
	}
	return nil
}

func (r *RedisRegistry) Active(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, sessionKey(id)).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking session")
	}
	return n == 1, nil
}

func (r *RedisRegistry) Revoke(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return errors.Wrap(err, "revoking session")
	}
	return nil
}
