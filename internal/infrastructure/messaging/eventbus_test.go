package messaging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agepath/placement-engine/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func createdEvent(tenant string) shared.Event {
	return shared.NewPlacementCreatedEvent("placement-1", "student-1", tenant, "ENGLISH", "level-1", "teacher-1")
}

func TestInMemoryEventBus_Sync(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{Logger: quietLog, EnableMetrics: true})

	var typed, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventPlacementCreated, func(e shared.Event) error {
		typed = append(typed, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, e.EventType())
		return errors.New("ignored")
	}))

	require.NoError(t, bus.Publish(createdEvent("tenant-a")))
	require.NoError(t, bus.Publish(shared.NewPlacementUpdatedEvent("placement-1", "student-1", "tenant-a", "teacher-1")))

	assert.Equal(t, []shared.EventType{shared.EventPlacementCreated}, typed)
	assert.Equal(t, []shared.EventType{shared.EventPlacementCreated, shared.EventPlacementUpdated}, all)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(3), snap.TotalHandlerExecs)
	assert.Equal(t, int64(2), snap.HandlerFailures)
}

func TestInMemoryEventBus_AsyncWorkerPool(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2, Logger: quietLog})

	var running, peak, done int32
	require.NoError(t, bus.Subscribe(shared.EventPlacementCreated, func(shared.Event) error {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		atomic.AddInt32(&done, 1)
		return nil
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(createdEvent("tenant-a")))
	}
	bus.Drain()

	assert.Equal(t, int32(10), atomic.LoadInt32(&done))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, Logger: quietLog})

	var calls int32
	require.NoError(t, bus.Subscribe(shared.EventPlacementCreated, func(shared.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	require.NoError(t, bus.Publish(createdEvent("tenant-a")))
	require.NoError(t, bus.Close())

	// pending handlers finish before Close returns
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.ErrorIs(t, bus.Publish(createdEvent("tenant-a")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventPlacementCreated, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.NoError(t, bus.Close())
}

func TestRecoveryMiddleware(t *testing.T) {
	var got error
	record := func(next shared.EventHandler) shared.EventHandler {
		return func(e shared.Event) error {
			got = next(e)
			return got
		}
	}
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		Logger:      quietLog,
		Middlewares: []Middleware{record, RecoveryMiddleware(quietLog), LoggingMiddleware(quietLog)},
	})
	require.NoError(t, bus.Subscribe(shared.EventPlacementCreated, func(shared.Event) error {
		panic("boom")
	}))

	require.NoError(t, bus.Publish(createdEvent("tenant-a")))
	require.Error(t, got)
	assert.ErrorIs(t, got, ErrHandlerPanic)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next shared.EventHandler) shared.EventHandler {
			return func(e shared.Event) error {
				order = append(order, name)
				return next(e)
			}
		}
	}
	h := Chain(func(shared.Event) error {
		order = append(order, "handler")
		return nil
	}, mw("outer"), mw("inner"))

	require.NoError(t, h(createdEvent("tenant-a")))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

// fakePubSub is an in-process Redis Pub/Sub shared by several clients.
type fakePubSub struct {
	mu   sync.Mutex
	subs []chan RedisMessage
	fail bool
}

type fakeClient struct {
	hub *fakePubSub
}

func (c *fakeClient) Publish(_ context.Context, channel string, message interface{}) error {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	if c.hub.fail {
		return errors.New("redis unavailable")
	}
	for _, s := range c.hub.subs {
		s <- RedisMessage{Channel: channel, Payload: message.(string)}
	}
	return nil
}

func (c *fakeClient) Subscribe(context.Context, ...string) (<-chan RedisMessage, error) {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	ch := make(chan RedisMessage, 16)
	c.hub.subs = append(c.hub.subs, ch)
	return ch, nil
}

func (c *fakeClient) Close() error { return nil }

func TestRedisEventBus_RelaysBetweenInstances(t *testing.T) {
	hub := &fakePubSub{}
	local := InMemoryEventBusConfig{Logger: quietLog}

	a, err := NewRedisEventBus(RedisEventBusConfig{Client: &fakeClient{hub: hub}, InstanceID: "a", LocalBusConfig: local, Logger: quietLog})
	require.NoError(t, err)
	b, err := NewRedisEventBus(RedisEventBusConfig{Client: &fakeClient{hub: hub}, InstanceID: "b", LocalBusConfig: local, Logger: quietLog})
	require.NoError(t, err)

	var mu sync.Mutex
	seen := map[string][]string{}
	subscribe := func(name string, bus *RedisEventBus) {
		require.NoError(t, bus.Subscribe(shared.EventPlacementCreated, func(e shared.Event) error {
			mu.Lock()
			defer mu.Unlock()
			seen[name] = append(seen[name], shared.StringField(e, "tenant_id"))
			return nil
		}))
	}
	subscribe("a", a)
	subscribe("b", b)

	require.NoError(t, a.Publish(createdEvent("tenant-a")))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen["b"]) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"tenant-a"}, seen["a"])
	assert.Equal(t, []string{"tenant-a"}, seen["b"])
}

func TestRedisEventBus_PublishFailureStillRunsLocalHandlers(t *testing.T) {
	hub := &fakePubSub{fail: true}
	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: &fakeClient{hub: hub}, Logger: quietLog, LocalBusConfig: InMemoryEventBusConfig{Logger: quietLog}})
	require.NoError(t, err)
	defer bus.Close()

	var calls int32
	require.NoError(t, bus.Subscribe(shared.EventPlacementCreated, func(shared.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	require.NoError(t, bus.Publish(createdEvent("tenant-a")))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEnvelopeRoundTripKeepsPayload(t *testing.T) {
	data, err := encodeEnvelope("a", createdEvent("tenant-a"))
	require.NoError(t, err)
	env, err := decodeEnvelope(data)
	require.NoError(t, err)

	e := env.event()
	assert.Equal(t, shared.EventPlacementCreated, e.EventType())
	assert.Equal(t, "placement-1", e.AggregateID())
	assert.Equal(t, "tenant-a", shared.StringField(e, "tenant_id"))
}
