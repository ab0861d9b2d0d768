package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis"
	"github.com/saascore/saas-cloud/log"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*DummyRedis, *RedisClient) {
	srv, err := NewMockRedisServer()
	require.Nil(t, err)
	client, err := NewClient(srv.GetStandaloneAddr())
	require.Nil(t, err)
	require.Nil(t, client.IsServerReady(time.Second))
	return srv, client
}

func TestRedisClient(t *testing.T) {
	log.SetDebugLevel(log.DebugLevelEvents)
	ctx := log.StartTestSpan(context.Background())
	srv, client := newTestClient(t)
	defer srv.Close()
	defer client.Close()

	ok, err := client.SetNX(ctx, "k1", "v1", time.Minute)
	require.Nil(t, err)
	require.True(t, ok)
	ok, err = client.SetNX(ctx, "k1", "v2", time.Minute)
	require.Nil(t, err)
	require.False(t, ok, "key not set as it already exists")
	val, err := client.Get(ctx, "k1")
	require.Nil(t, err)
	require.Equal(t, "v1", val)

	srv.FastForward(2 * time.Minute)
	_, err = client.Get(ctx, "k1")
	require.Equal(t, redis.Nil, err, "key expired")

	n, err := client.Del(ctx, "k1", "k2")
	require.Nil(t, err)
	require.Equal(t, int64(0), n)

	_, err = NewClient("")
	require.NotNil(t, err)
}

func TestLocker(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())
	srv, client := newTestClient(t)
	defer srv.Close()
	defer client.Close()

	locker := NewLocker(client)
	locker.Retry = 10 * time.Millisecond

	unlock, err := locker.Lock(ctx, "acme")
	require.Nil(t, err)

	// a second holder waits until the context is done
	tctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	_, err = locker.Lock(tctx, "acme")
	cancel()
	require.NotNil(t, err)

	// other keys are independent
	unlockBeta, err := locker.Lock(ctx, "beta")
	require.Nil(t, err)
	unlockBeta()

	acquired := make(chan struct{})
	go func() {
		unlock2, err := locker.Lock(ctx, "acme")
		if err == nil {
			close(acquired)
			unlock2()
		}
	}()
	time.Sleep(30 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("lock acquired while held")
	default:
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("lock not acquired after release")
	}

	// a stale unlock does not release another holder's lock
	unlock3, err := locker.Lock(ctx, "gamma")
	require.Nil(t, err)
	_, err = client.Del(ctx, LockKeyPrefix+"gamma")
	require.Nil(t, err)
	ok, err := client.SetNX(ctx, LockKeyPrefix+"gamma", "other", time.Minute)
	require.Nil(t, err)
	require.True(t, ok)
	unlock3()
	val, err := client.Get(ctx, LockKeyPrefix+"gamma")
	require.Nil(t, err)
	require.Equal(t, "other", val)
}

func TestEvents(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())
	srv, client := newTestClient(t)
	defer srv.Close()
	defer client.Close()

	pub := NewEventPublisher(client)
	pubsub, err := pub.Subscribe(ctx)
	require.Nil(t, err)
	ch := pubsub.Channel()

	now := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	events := []InstanceEvent{
		{Key: "acme", State: "provisioning", Operation: "deploy", OperationID: "op1", Time: now},
		{Key: "acme", State: "running", Operation: "deploy", OperationID: "op1", Time: now},
	}
	for ii := range events {
		require.Nil(t, pub.Publish(ctx, &events[ii]))
	}
	for ii := range events {
		select {
		case msg := <-ch:
			require.Equal(t, InstanceEventsChannel, msg.Channel)
			ev, err := ParseInstanceEvent(msg)
			require.Nil(t, err)
			require.Equal(t, events[ii], *ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", ii)
		}
	}
	require.Nil(t, pubsub.Close())
}

func TestWatchEvents(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())
	srv, client := newTestClient(t)
	defer srv.Close()
	defer client.Close()

	pub := NewEventPublisher(client)
	got := make(chan InstanceEvent, 2)
	pubsub, err := pub.WatchEvents(ctx, func(ev *InstanceEvent) {
		got <- *ev
	})
	require.Nil(t, err)

	require.Nil(t, client.Publish(ctx, InstanceEventsChannel, "not json"))
	ev := InstanceEvent{Key: "acme", State: "failed", Operation: "deploy", OperationID: "op2", Error: "boom",
		Time: time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)}
	require.Nil(t, pub.Publish(ctx, &ev))
	select {
	case out := <-got:
		require.Equal(t, ev, out)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	require.Nil(t, pubsub.Close())
	require.Equal(t, 0, len(got))
}
