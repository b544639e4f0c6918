package pulse

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresRedisClient(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestNew_SucceedsWithRedisClient(t *testing.T) {
	c, err := New(Options{Redis: redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})})
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestClientStream_RejectsEmptyName(t *testing.T) {
	c, err := New(Options{Redis: redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})})
	require.NoError(t, err)

	_, err = c.Stream("")
	require.Error(t, err)
}

func TestHandleAdd_RejectsEmptyEventName(t *testing.T) {
	h := &handle{}
	_, err := h.Add(context.Background(), "", []byte("payload"))
	require.Error(t, err)
}

func TestClientClose_IsANoop(t *testing.T) {
	c, err := New(Options{Redis: redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})})
	require.NoError(t, err)
	require.NoError(t, c.Close(context.Background()))
}
