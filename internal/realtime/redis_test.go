package realtime

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublisherWithoutAddr(t *testing.T) {
	assert.Nil(t, NewPublisher(Options{}))
}

func closedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestPublishUnreachable(t *testing.T) {
	p := NewPublisher(Options{Addr: closedAddr(t), DialTimeout: 200 * time.Millisecond})
	require.NotNil(t, p)
	t.Cleanup(func() { _ = p.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := p.Publish(ctx, "notifications:user:1", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notifications:user:1")

	assert.Error(t, p.Ping(ctx))
}
