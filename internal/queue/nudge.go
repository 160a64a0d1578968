package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"genqueue/internal/infra"
)

// Notifier wakes the scheduler ahead of its next periodic tick. Delivery is
// best-effort; the tick remains the correctness backstop.
type Notifier interface {
	Wake(ctx context.Context, trigger string)
}

const wakeTimeout = 2 * time.Second

// RedisNotifier publishes wake signals on a Redis channel. The scheduler
// daemon subscribes to the same channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  infra.Logger
}

// NewRedisNotifier connects a notifier to the Redis instance named by url.
func NewRedisNotifier(url, channel string, logger infra.Logger) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisNotifier{
		client:  redis.NewClient(opts),
		channel: channel,
		logger:  logger,
	}, nil
}

// Wake publishes a nudge without blocking the caller. Failures are logged and
// swallowed; they must never affect the enqueue outcome.
func (n *RedisNotifier) Wake(_ context.Context, trigger string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), wakeTimeout)
		defer cancel()
		if err := n.client.Publish(ctx, n.channel, trigger).Err(); err != nil {
			n.logger.Warn().Err(err).Str("trigger", trigger).Msg("nudge: publish failed")
		}
	}()
}

// Subscribe returns a channel of wake triggers. The channel closes when ctx is done.
func (n *RedisNotifier) Subscribe(ctx context.Context) <-chan string {
	sub := n.client.Subscribe(ctx, n.channel)
	out := make(chan string)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Close releases the underlying Redis connection.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

var _ Notifier = (*RedisNotifier)(nil)
