package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix = "session:"
	publishTTL    = 5 * time.Second
)

// RelayMessage is the message published to Redis for cross-instance broadcast. Except is the
// id of the originating socket, which no instance delivers to.
type RelayMessage struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	Except string          `json:"except,omitempty"`
	At     int64           `json:"at"`
}

// RedisRelay implements Relay on Redis pub/sub, one channel per session.
type RedisRelay struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisRelay creates a Redis pub/sub relay.
func NewRedisRelay(client *redis.Client, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{client: client, logger: logger}
}

// ChannelFor returns the Redis channel of a session.
func ChannelFor(room string) string {
	return channelPrefix + room
}

// Publish implements Relay.
func (r *RedisRelay) Publish(room string, msg RelayMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTTL)
	defer cancel()
	return r.client.Publish(ctx, ChannelFor(room), body).Err()
}

// Subscribe implements Relay. The returned cancel stops the subscription.
func (r *RedisRelay) Subscribe(room string, handler func(RelayMessage)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, ChannelFor(room))
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", ChannelFor(room), err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				msg, err := decodeRelayMessage(m.Payload)
				if err != nil {
					r.logger.Warn("relay message dropped", zap.String("channel", m.Channel), zap.Error(err))
					continue
				}
				handler(msg)
			}
		}
	}()
	return cancelCtx, nil
}

func decodeRelayMessage(payload string) (RelayMessage, error) {
	var msg RelayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return msg, err
	}
	if msg.Event == "" {
		return msg, fmt.Errorf("relay message without event")
	}
	return msg, nil
}
