package transport

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tandem/internal/ir"
	"github.com/roach88/tandem/internal/replica"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TANDEM_REDIS_ADDR")
	if addr == "" {
		t.Skip("skip: TANDEM_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skip: redis not available: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "tandem:doc-1:2", ChannelName("tandem", "doc-1", 2))
}

func TestRedis_PublishSubscribe(t *testing.T) {
	rdb := redisClient(t)
	ch := NewRedis(rdb, ChannelName("tandem-test", t.Name(), 1))

	got := make(chan ir.Message, 4)
	sub, err := ch.Subscribe(func(msg ir.Message) { got <- msg })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	for i := 0; i < 3; i++ {
		require.NoError(t, ch.Publish(context.Background(), testMessage(i)))
	}
	for i := 0; i < 3; i++ {
		select {
		case msg := <-got:
			assert.Equal(t, testMessage(i), msg)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestRedis_SkipsMalformedPayload(t *testing.T) {
	rdb := redisClient(t)
	name := ChannelName("tandem-test", t.Name(), 1)

	errs := make(chan error, 1)
	ch := NewRedis(rdb, name, WithDecodeErrorHandler(func(err error) { errs <- err }))
	got := make(chan ir.Message, 1)
	sub, err := ch.Subscribe(func(msg ir.Message) { got <- msg })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, rdb.Publish(context.Background(), name, `{"operation":{}}`).Err())
	require.NoError(t, ch.Publish(context.Background(), testMessage(0)))

	select {
	case err := <-errs:
		assert.True(t, ir.IsMalformed(err))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for decode error")
	}
	select {
	case msg := <-got:
		assert.Equal(t, testMessage(0), msg)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestRedis_SubscribeWire(t *testing.T) {
	rdb := redisClient(t)
	name := ChannelName("tandem-test", t.Name(), 1)
	ch := NewRedis(rdb, name)

	got := make(chan []byte, 2)
	sub, err := ch.SubscribeWire(func(data []byte) { got <- data })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, rdb.Publish(context.Background(), name, "not json").Err())
	require.NoError(t, ch.Publish(context.Background(), testMessage(0)))

	want, err := ir.EncodeMessage(testMessage(0))
	require.NoError(t, err)
	for _, expected := range [][]byte{[]byte("not json"), want} {
		select {
		case data := <-got:
			assert.Equal(t, string(expected), string(data))
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for payload")
		}
	}
}

func TestRedis_MalformedPayloadStopsReplica(t *testing.T) {
	rdb := redisClient(t)
	name := ChannelName("tandem-test", t.Name(), 1)
	ch := NewRedis(rdb, name)

	loop := replica.NewLoop(replica.New(2, "B", nil, replica.WithText("abc")))
	errc := make(chan error, 1)
	go func() { errc <- loop.Run(context.Background()) }()

	sub, err := replica.ConnectWire(ch, loop)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, rdb.Publish(context.Background(), name, `{"operation":{}}`).Err())

	select {
	case err := <-errc:
		assert.True(t, replica.IsMalformedMessage(err), "got %v", err)
	case <-time.After(5 * time.Second):
		loop.Close()
		t.Fatal("replica did not stop")
	}
}
