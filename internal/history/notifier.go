package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ChangesChannel is the Redis pub/sub channel carrying history changes.
const ChangesChannel = "history:changes"

// Notifier tells other instances that a user's history changed.
type Notifier interface {
	Publish(ctx context.Context, userID string) error
	// Listen calls fn for every change made by another instance until ctx
	// is done.
	Listen(ctx context.Context, fn func(userID string)) error
}

// RedisNotifier fans history changes out over Redis pub/sub. Messages are
// "instanceID|userID"; an instance ignores its own.
type RedisNotifier struct {
	rdb        *redis.Client
	channel    string
	instanceID string
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{
		rdb:        rdb,
		channel:    ChangesChannel,
		instanceID: uuid.NewString(),
	}
}

func (n *RedisNotifier) Publish(ctx context.Context, userID string) error {
	if err := n.rdb.Publish(ctx, n.channel, n.instanceID+"|"+userID).Err(); err != nil {
		return fmt.Errorf("publish history change: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Listen(ctx context.Context, fn func(userID string)) error {
	ps := n.rdb.Subscribe(ctx, n.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", n.channel, err)
	}
	slog.Info("listening for history changes", "channel", n.channel, "instance", n.instanceID)

	// The channel reconnects on its own; missed messages are covered by resync.
	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			origin, userID, found := strings.Cut(msg.Payload, "|")
			if !found || userID == "" || origin == n.instanceID {
				continue
			}
			fn(userID)
		}
	}
}
