package redis

import (
	"context"

	"github.com/seedlinghq/seedling-engine/internal/infrastructure/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// PUB/SUB ADAPTER
// ══════════════════════════════════════════════════════════════════════════════

// PubSub adapts the go-redis client to the messaging.RedisClient
// interface the event bus consumes.
type PubSub struct {
	cache *Cache
}

// NewPubSub creates a new PubSub adapter over the shared Cache client.
func NewPubSub(cache *Cache) *PubSub {
	return &PubSub{cache: cache}
}

// Publish sends a message to the given channel.
func (p *PubSub) Publish(ctx context.Context, channel string, message interface{}) error {
	return p.cache.client.Publish(ctx, channel, message).Err()
}

// Subscribe listens on the given channels and forwards messages until
// the context is cancelled. The returned channel closes when the
// subscription ends.
func (p *PubSub) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	sub := p.cache.client.Subscribe(ctx, channels...)

	// Force the SUBSCRIBE round trip so connection errors surface here
	// instead of on the message channel.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan messaging.RedisMessage)
	go func() {
		defer close(out)
		defer sub.Close()

		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close closes the underlying Redis connection.
func (p *PubSub) Close() error {
	return p.cache.Close()
}
