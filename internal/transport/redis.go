package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/tandem/internal/ir"
	"github.com/roach88/tandem/internal/replica"
)

// ChannelName returns the Redis channel a replica publishes on. Each actor
// owns one channel; the peer subscribes to it.
func ChannelName(prefix, session string, actorID int) string {
	return fmt.Sprintf("%s:%s:%d", prefix, session, actorID)
}

// Redis is a channel backed by Redis pub/sub. Messages travel in the JSON
// wire format.
//
// Redis pub/sub preserves publish order per channel but drops messages for
// subscribers that are not connected; subscribe before the peer publishes.
type Redis struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
	onError func(error)
}

var (
	_ replica.Channel     = (*Redis)(nil)
	_ replica.WireChannel = (*Redis)(nil)
)

// RedisOption configures a Redis channel.
type RedisOption func(*Redis)

// WithRedisLogger sets the logger for subscription diagnostics.
func WithRedisLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) { r.logger = logger }
}

// WithDecodeErrorHandler is called with every payload Subscribe fails to
// decode. Such payloads are skipped. Default: log at Warn.
func WithDecodeErrorHandler(fn func(error)) RedisOption {
	return func(r *Redis) { r.onError = fn }
}

// NewRedis creates a channel publishing to and subscribing on channel.
func NewRedis(client redis.UniversalClient, channel string, opts ...RedisOption) *Redis {
	r := &Redis{
		client:  client,
		channel: channel,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.onError == nil {
		r.onError = func(err error) {
			r.logger.Warn("skipping undecodable payload", "channel", r.channel, "error", err)
		}
	}
	return r
}

// Name returns the Redis channel name.
func (r *Redis) Name() string {
	return r.channel
}

// Publish encodes msg and publishes it.
func (r *Redis) Publish(ctx context.Context, msg ir.Message) error {
	data, err := ir.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", r.channel, err)
	}
	return nil
}

// Subscribe starts a goroutine delivering decoded messages to handler. It
// returns once Redis has confirmed the subscription. Payloads that fail to
// decode go to the decode error handler and are skipped; use SubscribeWire
// where a malformed payload must reach the replica.
func (r *Redis) Subscribe(handler func(ir.Message)) (replica.Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("subscribe: nil handler")
	}
	return r.subscribe(func(payload string) {
		msg, err := ir.DecodeMessage([]byte(payload))
		if err != nil {
			r.onError(err)
			return
		}
		handler(msg)
	})
}

// SubscribeWire starts a goroutine delivering every raw payload to handler,
// in publish order. It returns once Redis has confirmed the subscription.
func (r *Redis) SubscribeWire(handler func(data []byte)) (replica.Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("subscribe: nil handler")
	}
	return r.subscribe(func(payload string) { handler([]byte(payload)) })
}

func (r *Redis) subscribe(deliver func(payload string)) (replica.Subscription, error) {
	ctx := context.Background()
	ps := r.client.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", r.channel, err)
	}

	sub := &redisSubscription{ps: ps, done: make(chan struct{})}
	ch := ps.Channel()
	go func() {
		defer close(sub.done)
		for m := range ch {
			deliver(m.Payload)
		}
	}()
	r.logger.Debug("subscribed", "channel", r.channel)
	return sub, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	done chan struct{}
	once sync.Once
}

// Unsubscribe closes the subscription and waits for the delivery goroutine
// to exit.
func (s *redisSubscription) Unsubscribe() {
	s.once.Do(func() {
		_ = s.ps.Close()
		<-s.done
	})
}
