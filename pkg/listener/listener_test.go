package listener

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakePubSub is an in-memory PubSub the test drives directly.
type fakePubSub struct {
	ch     chan Message
	closed bool
	mu     sync.Mutex
}

func newFakePubSub() *fakePubSub {
	return &fakePubSub{ch: make(chan Message, 16)}
}

func (f *fakePubSub) Channel() <-chan Message { return f.ch }

func (f *fakePubSub) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
	return nil
}

func (f *fakePubSub) push(channel, op string) {
	f.ch <- Message{Channel: channel, Payload: op}
}

// fakeSubscriber hands out one fakePubSub per pattern subscribed, recording
// the patterns used so tests can assert on them.
type fakeSubscriber struct {
	mu       sync.Mutex
	byPrefix map[string]*fakePubSub
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{byPrefix: map[string]*fakePubSub{}}
}

func (f *fakeSubscriber) PSubscribe(_ context.Context, pattern string) (PubSub, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ps := newFakePubSub()
	f.byPrefix[pattern] = ps
	return ps, nil
}

func (f *fakeSubscriber) get(pattern string) *fakePubSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byPrefix[pattern]
}

func TestKeyFromChannel(t *testing.T) {
	got := keyFromChannel("__keyspace@0__:Connection:10.0.0.2.5001:alive")
	if want := "Connection:10.0.0.2.5001:alive"; got != want {
		t.Errorf("keyFromChannel() = %q, want %q", got, want)
	}
}

func TestDispatchInvokesHandler(t *testing.T) {
	sub := newFakeSubscriber()
	l := New(sub, 0)

	var mu sync.Mutex
	var got []Event
	l.Register("connection-set", "Connection:*:alive", []string{"set"}, func(_ context.Context, ev Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	waitForSubscription(t, func() bool { return sub.get("__keyspace@0__:Connection:*:alive") != nil })
	ps := sub.get("__keyspace@0__:Connection:*:alive")
	ps.push("__keyspace@0__:Connection:10.0.0.2.5001:alive", "set")

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	mu.Lock()
	if got[0].Key != "Connection:10.0.0.2.5001:alive" || got[0].Op != "set" {
		t.Fatalf("unexpected event: %+v", got[0])
	}
	mu.Unlock()

	l.Stop()
	l.Wait()
	cancel()
	<-done
}

func TestDispatchFiltersByOp(t *testing.T) {
	sub := newFakeSubscriber()
	l := New(sub, 0)

	var mu sync.Mutex
	var gotOps []string
	l.Register("connection-deleted", "Connection:*:alive", []string{"del", "expired"}, func(_ context.Context, ev Event) {
		mu.Lock()
		defer mu.Unlock()
		gotOps = append(gotOps, ev.Op)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	waitForSubscription(t, func() bool { return sub.get("__keyspace@0__:Connection:*:alive") != nil })
	ps := sub.get("__keyspace@0__:Connection:*:alive")
	ps.push("__keyspace@0__:Connection:a:alive", "set")
	ps.push("__keyspace@0__:Connection:a:alive", "del")

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(gotOps) == 1
	})

	mu.Lock()
	if gotOps[0] != "del" {
		t.Fatalf("gotOps = %v, want [del]", gotOps)
	}
	mu.Unlock()

	l.Stop()
	l.Wait()
	cancel()
	<-done
}

func TestStopIsIdempotent(t *testing.T) {
	sub := newFakeSubscriber()
	l := New(sub, 0)
	l.Register("noop", "Vpn:*:veth", []string{"set"}, func(context.Context, Event) {})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	waitForSubscription(t, func() bool { return sub.get("__keyspace@0__:Vpn:*:veth") != nil })

	l.Stop()
	l.Stop()
	<-done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func waitForSubscription(t *testing.T, cond func() bool) {
	waitFor(t, cond)
}
