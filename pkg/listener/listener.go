// Package listener subscribes to Redis keyspace notifications and fans
// incoming events out to registered handlers, one worker goroutine per
// event (spec.md §4.3).
package listener

import (
	"context"
	"strings"
	"sync"

	"github.com/naumachia-labs/clustermanager/pkg/db"
	"github.com/naumachia-labs/clustermanager/pkg/util"
)

// Event is a single keyspace notification, already split into the key it
// concerns and the operation that produced it ("set", "del", "expired").
type Event struct {
	Key string
	Op  string
}

// Handler processes one Event. Handlers must be idempotent: the listener
// guarantees at-least-once delivery, never exactly-once (spec.md §4.3,
// §5).
type Handler func(ctx context.Context, ev Event)

// registration binds a key-space glob pattern to a handler, optionally
// filtered to a set of operations.
type registration struct {
	pattern string
	ops     map[string]bool
	handler Handler
	name    string
}

// PubSub is the subset of *redis.PubSub the listener depends on, so unit
// tests can drive dispatch logic without a real Redis connection.
type PubSub interface {
	Channel() <-chan Message
	Close() error
}

// Message is a single pattern-subscription message, mirroring the fields of
// *redis.Message the listener reads.
type Message struct {
	Channel string
	Payload string
}

// Subscriber opens a pattern subscription against the keyspace notification
// channel for a given glob.
type Subscriber interface {
	PSubscribe(ctx context.Context, pattern string) (PubSub, error)
}

// Listener owns the single receive loop described in spec.md §4.3: one
// subscription per registered pattern, each incoming message dispatched to
// its own worker goroutine.
type Listener struct {
	sub   Subscriber
	dbIdx int

	mu            sync.Mutex
	registrations []*registration
	subs          []PubSub

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// New builds a Listener against the given subscriber and logical database
// index (used to build "__keyspace@{db}__:{pattern}" subscriptions).
func New(sub Subscriber, dbIndex int) *Listener {
	return &Listener{
		sub:     sub,
		dbIdx:   dbIndex,
		stopped: make(chan struct{}),
	}
}

// Register binds a key glob pattern to handler, optionally restricted to a
// set of keyspace operations ("set", "del", "expired"). An empty ops list
// matches every operation. Register must be called before Run.
func (l *Listener) Register(name, pattern string, ops []string, handler Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var opSet map[string]bool
	if len(ops) > 0 {
		opSet = make(map[string]bool, len(ops))
		for _, op := range ops {
			opSet[op] = true
		}
	}
	l.registrations = append(l.registrations, &registration{
		pattern: pattern,
		ops:     opSet,
		handler: handler,
		name:    name,
	})
}

// Run opens one subscription per registration and blocks, dispatching
// incoming notifications to worker goroutines until Stop is called or ctx
// is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	l.mu.Lock()
	regs := append([]*registration{}, l.registrations...)
	l.mu.Unlock()

	var wg sync.WaitGroup
	for _, reg := range regs {
		ps, err := l.sub.PSubscribe(ctx, db.KeyspacePattern(l.dbIdx, reg.pattern))
		if err != nil {
			l.Stop()
			wg.Wait()
			return err
		}
		l.mu.Lock()
		l.subs = append(l.subs, ps)
		l.mu.Unlock()

		wg.Add(1)
		go func(reg *registration, ps PubSub) {
			defer wg.Done()
			l.receiveLoop(ctx, reg, ps)
		}(reg, ps)
	}

	wg.Wait()
	return nil
}

func (l *Listener) receiveLoop(ctx context.Context, reg *registration, ps PubSub) {
	ch := ps.Channel()
	for {
		select {
		case <-l.stopped:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			op := msg.Payload
			if reg.ops != nil && !reg.ops[op] {
				continue
			}
			key := keyFromChannel(msg.Channel)

			l.wg.Add(1)
			go func() {
				defer l.wg.Done()
				defer func() {
					if r := recover(); r != nil {
						util.WithHandler(reg.name).WithField("key", key).Errorf("handler panic: %v", r)
					}
				}()
				reg.handler(ctx, Event{Key: key, Op: op})
			}()
		}
	}
}

// keyFromChannel extracts the key a keyspace-notification channel concerns:
// "__keyspace@0__:Connection:addr:alive" -> "Connection:addr:alive".
func keyFromChannel(channel string) string {
	if idx := strings.Index(channel, "__:"); idx >= 0 {
		return channel[idx+3:]
	}
	return channel
}

// Stop cooperatively shuts the listener down: it flips a stop flag and
// closes every subscription, so each receive loop exits on its next
// iteration (spec.md §4.3). It does not wait for in-flight workers; call
// Wait for that.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopped)
		l.mu.Lock()
		defer l.mu.Unlock()
		for _, ps := range l.subs {
			ps.Close()
		}
	})
}

// Wait blocks until every in-flight worker goroutine has returned.
func (l *Listener) Wait() {
	l.wg.Wait()
}
