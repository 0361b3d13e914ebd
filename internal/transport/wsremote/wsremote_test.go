package wsremote

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cellmesh/cellmesh/internal/actor"
	"github.com/stretchr/testify/require"
)

// freeAddr picks an ephemeral loopback port so Dial has a concrete
// host:port to connect to once Listen's http.Server has bound it.
func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())
	return addr
}

func TestDialDeliversToAccept(t *testing.T) {
	t.Parallel()

	addr := freeAddr(t)
	tr := New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	accept, err := tr.Listen(ctx, addr)
	require.NoError(t, err)

	// The http.Server inside Listen starts asynchronously; give it a moment
	// to bind before dialing.
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dialCancel()

	client, err := tr.Dial(dialCtx, addr)
	require.NoError(t, err)
	defer client.Close()

	var server actor.Conn
	select {
	case server = <-accept:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accepted conn")
	}
	defer server.Close()

	sendCtx, sendCancel := context.WithTimeout(context.Background(), time.Second)
	defer sendCancel()

	require.NoError(t, client.Send(sendCtx, []byte("hello")))
	got, err := server.Recv(sendCtx)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)

	require.NoError(t, server.Send(sendCtx, []byte("world")))
	got, err = client.Recv(sendCtx)
	require.NoError(t, err)
	require.Equal(t, []byte("world"), got)
}

func TestDialWithoutListenerFails(t *testing.T) {
	t.Parallel()

	addr := freeAddr(t)
	tr := New()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := tr.Dial(ctx, addr)
	require.Error(t, err)
}

func TestListenStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	addr := freeAddr(t)
	tr := New()

	ctx, cancel := context.WithCancel(context.Background())

	accept, err := tr.Listen(ctx, addr)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-accept:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("accept channel was not closed after context cancellation")
	}
}

var _ actor.Transport = (*Transport)(nil)
