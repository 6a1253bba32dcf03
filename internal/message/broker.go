// AngelaMos | 2026
// broker.go

package message

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix    = "conversation:"
	subscriberBuffer = 16
)

// Broker fans sent messages out to every open stream of a conversation.
type Broker interface {
	Publish(ctx context.Context, conversationID string, msg MessageResponse) error
	Subscribe(ctx context.Context, conversationID string) (<-chan MessageResponse, error)
}

// RedisBroker uses one pub/sub channel per conversation, so streams work
// across every API instance sharing the redis server.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func ChannelFor(conversationID string) string {
	return channelPrefix + conversationID
}

func (b *RedisBroker) Publish(
	ctx context.Context,
	conversationID string,
	msg MessageResponse,
) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	if err := b.client.Publish(ctx, ChannelFor(conversationID), payload).Err(); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	return nil
}

// Subscribe returns a channel of messages for conversationID. The channel
// is closed once ctx is done or the subscription fails.
func (b *RedisBroker) Subscribe(
	ctx context.Context,
	conversationID string,
) (<-chan MessageResponse, error) {
	pubsub := b.client.Subscribe(ctx, ChannelFor(conversationID))

	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close() //nolint:errcheck // subscription never became active
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan MessageResponse, subscriberBuffer)

	go func() {
		defer close(out)
		defer pubsub.Close() //nolint:errcheck // best-effort unsubscribe

		incoming := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-incoming:
				if !ok {
					return
				}

				var msg MessageResponse
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					slog.Warn("dropping malformed conversation event",
						"channel", raw.Channel,
						"error", err,
					)
					continue
				}

				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

var _ Broker = (*RedisBroker)(nil)
