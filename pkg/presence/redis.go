package presence

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

const onlineSetKey = "portal:online_users"

// RedisMirror keeps the online set in Redis for consumption by other portal
// services. Errors are logged and swallowed; presence must not depend on
// Redis being up.
type RedisMirror struct {
	client *redis.Client
}

func NewRedisMirror(addr string) *RedisMirror {
	return &RedisMirror{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (m *RedisMirror) SetOnline(ctx context.Context, userID string) error {
	if err := m.client.SAdd(ctx, onlineSetKey, userID).Err(); err != nil {
		log.Printf("presence mirror: failed to add %s: %v", userID, err)
		return err
	}
	return nil
}

func (m *RedisMirror) SetOffline(ctx context.Context, userID string) error {
	if err := m.client.SRem(ctx, onlineSetKey, userID).Err(); err != nil {
		log.Printf("presence mirror: failed to remove %s: %v", userID, err)
		return err
	}
	return nil
}

func (m *RedisMirror) Close() error {
	return m.client.Close()
}
