package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// historyMaxLen bounds each channel's replay stream (XADD MAXLEN ~).
const historyMaxLen int64 = 1000

// EventBus implements domain.EventBus. Payloads go out over pub/sub for live
// subscribers and are appended to a capped stream so late joiners can replay
// recent history.
type EventBus struct {
	rdb *redis.Client
}

// NewEventBus creates an EventBus backed by the given Client.
func NewEventBus(c *Client) *EventBus {
	return &EventBus{rdb: c.Underlying()}
}

func historyKey(channel string) string {
	return "history:" + channel
}

// Publish broadcasts payload on channel and records it in the replay stream.
func (b *EventBus) Publish(ctx context.Context, channel string, payload []byte) error {
	_, err := b.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Publish(ctx, channel, payload)
		p.XAdd(ctx, &redis.XAddArgs{
			Stream: historyKey(channel),
			MaxLen: historyMaxLen,
			Approx: true,
			Values: map[string]any{"payload": payload},
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of payloads published on channel. It is closed
// when ctx is cancelled.
func (b *EventBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := b.rdb.Subscribe(ctx, channel)

	// Wait for the subscription confirmation so no publish is missed after
	// Subscribe returns.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Recent returns up to n of the latest payloads on channel, oldest first.
func (b *EventBus) Recent(ctx context.Context, channel string, n int) ([][]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	msgs, err := b.rdb.XRevRangeN(ctx, historyKey(channel), "+", "-", int64(n)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: recent %s: %w", channel, err)
	}

	out := make([][]byte, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		switch v := msgs[i].Values["payload"].(type) {
		case string:
			out = append(out, []byte(v))
		case []byte:
			out = append(out, v)
		}
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.EventBus = (*EventBus)(nil)
