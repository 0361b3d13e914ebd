package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/cellmesh/cellmesh/internal/actor"
	"github.com/stretchr/testify/require"
)

func TestDialWithoutListenerFails(t *testing.T) {
	net := NewNetwork()
	_, err := net.Dial(context.Background(), "node-b:0")
	require.Error(t, err)
}

func TestListenTwiceOnSameAddrFails(t *testing.T) {
	net := NewNetwork()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := net.Listen(ctx, "node-a:0")
	require.NoError(t, err)

	_, err = net.Listen(ctx, "node-a:0")
	require.Error(t, err)
}

func TestDialDeliversToAccept(t *testing.T) {
	net := NewNetwork()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	accept, err := net.Listen(ctx, "node-a:0")
	require.NoError(t, err)

	client, err := net.Dial(ctx, "node-a:0")
	require.NoError(t, err)

	var server actor.Conn
	select {
	case c := <-accept:
		server = c
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for accepted conn")
	}

	require.NoError(t, client.Send(ctx, []byte("hello")))
	got, err := server.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)

	require.NoError(t, server.Send(ctx, []byte("world")))
	got, err = client.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("world"), got)
}

func TestCloseUnblocksPeerRecv(t *testing.T) {
	net := NewNetwork()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	accept, err := net.Listen(ctx, "node-a:0")
	require.NoError(t, err)

	client, err := net.Dial(ctx, "node-a:0")
	require.NoError(t, err)
	server := <-accept

	require.NoError(t, client.Close())

	_, err = server.Recv(ctx)
	require.Error(t, err)
}
