package listener

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// RedisSubscriber adapts a *redis.Client to the Subscriber interface,
// translating *redis.Message notifications into the listener's own Message
// type.
type RedisSubscriber struct {
	rdb *redis.Client
}

// NewRedisSubscriber wraps rdb for use as a Listener's Subscriber.
func NewRedisSubscriber(rdb *redis.Client) *RedisSubscriber {
	return &RedisSubscriber{rdb: rdb}
}

func (s *RedisSubscriber) PSubscribe(ctx context.Context, pattern string) (PubSub, error) {
	ps := s.rdb.PSubscribe(ctx, pattern)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, err
	}
	return &redisPubSub{ps: ps}, nil
}

// redisPubSub adapts *redis.PubSub to the listener's PubSub interface.
type redisPubSub struct {
	ps  *redis.PubSub
	out chan Message
}

func (r *redisPubSub) Channel() <-chan Message {
	if r.out != nil {
		return r.out
	}
	in := r.ps.Channel()
	out := make(chan Message)
	r.out = out
	go func() {
		defer close(out)
		for msg := range in {
			out <- Message{Channel: msg.Channel, Payload: msg.Payload}
		}
	}()
	return out
}

func (r *redisPubSub) Close() error {
	return r.ps.Close()
}
