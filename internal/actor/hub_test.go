package actor

import (
	"context"
	"encoding/gob"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func init() {
	gob.Register("")
}

// pipeTransport is a minimal Transport, local to this test file, that wires
// Dial directly to a single preset peer's Listen channel without any
// address-based broker (internal/transport/inmem already covers that
// broker shape; this keeps the kernel's own tests free of a dependency on
// any concrete transport binding).
type pipeTransport struct {
	mu     sync.Mutex
	accept chan Conn
}

func newPipeTransport() *pipeTransport {
	return &pipeTransport{accept: make(chan Conn, 4)}
}

func (p *pipeTransport) Listen(ctx context.Context, addr string) (<-chan Conn, error) {
	return p.accept, nil
}

func (p *pipeTransport) Dial(ctx context.Context, addr string) (Conn, error) {
	client, server := newPipePair()
	p.accept <- server
	return client, nil
}

func newPipePair() (client, server *pipeConn) {
	toServer := make(chan []byte, 64)
	toClient := make(chan []byte, 64)
	client = &pipeConn{out: toServer, in: toClient, closed: make(chan struct{})}
	server = &pipeConn{out: toClient, in: toServer, closed: make(chan struct{})}
	return client, server
}

type pipeConn struct {
	out       chan<- []byte
	in        <-chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func (c *pipeConn) Send(ctx context.Context, frame []byte) error {
	select {
	case c.out <- frame:
		return nil
	case <-c.closed:
		return context.Canceled
	}
}

func (c *pipeConn) Recv(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-c.in:
		if !ok {
			return nil, context.Canceled
		}
		return frame, nil
	case <-c.closed:
		return nil, context.Canceled
	}
}

func (c *pipeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *pipeConn) RemoteAddr() string { return "pipe" }

var _ Transport = (*pipeTransport)(nil)
var _ Conn = (*pipeConn)(nil)

// fakeClock fires AfterFunc only when explicitly told to, so heartbeat
// behavior can be tested deterministically instead of racing real timers.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(0, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	return &noopTimer{}
}

type noopTimer struct{}

func (*noopTimer) Stop() bool { return true }

var _ Clock = (*fakeClock)(nil)

func twoNodeHub(t *testing.T) (nodeA, nodeB *Node, cleanup func()) {
	t.Helper()

	transport := newPipeTransport()

	nodeA = NewNode(NodeConfig{ID: "node-a", Clock: newFakeClock()})
	nodeB = NewNode(NodeConfig{ID: "node-b", Clock: newFakeClock()})

	_, err := nodeA.EnableRemoting(transport)
	require.NoError(t, err)
	_, err = nodeB.EnableRemoting(transport)
	require.NoError(t, err)

	require.NoError(t, nodeA.hub.Listen("node-a"))

	return nodeA, nodeB, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = nodeA.Shutdown(ctx)
		_ = nodeB.Shutdown(ctx)
	}
}

func TestHubDeliversCrossNodeMessage(t *testing.T) {
	t.Parallel()

	nodeA, nodeB, cleanup := twoNodeHub(t)
	defer cleanup()

	behavior := &recordingBehavior{}
	_, err := nodeA.Spawn("worker", Single(behavior))
	require.NoError(t, err)

	remote, err := nodeB.Resolve(Path{Node: "node-a", Segments: []string{"worker"}})
	require.NoError(t, err)

	remote.Send(context.Background(), "hi", nil)

	require.Eventually(t, func() bool {
		return len(behavior.snapshot()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, "hi", behavior.snapshot()[0])
}

func TestHubRemoteWatchDeliversTerminated(t *testing.T) {
	t.Parallel()

	nodeA, nodeB, cleanup := twoNodeHub(t)
	defer cleanup()

	target, err := nodeA.Spawn("target", Single(&recordingBehavior{}))
	require.NoError(t, err)

	watcher := &recordingBehavior{}
	watcherRef, err := nodeB.Spawn("watcher", Single(watcher))
	require.NoError(t, err)

	remoteTarget, err := nodeB.Resolve(Path{Node: "node-a", Segments: []string{"target"}})
	require.NoError(t, err)

	nodeB.Watch(remoteTarget, watcherRef)

	// Give the watch frame a moment to reach node-a before the target
	// stops, so the remote watch is actually registered in time to fire.
	time.Sleep(50 * time.Millisecond)

	target.(*localRef).cell.Stop()

	require.Eventually(t, func() bool {
		for _, msg := range watcher.snapshot() {
			if _, ok := msg.(Terminated); ok {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFrameEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	f := Frame{
		Kind:      frameKindUser,
		Sender:    "node-a",
		Recipient: MustParsePath("/worker"),
		Payload:   []byte("payload"),
	}

	raw := encodeFrame(f)
	got, err := decodeFrame(raw)
	require.NoError(t, err)
	require.Equal(t, f.Kind, got.Kind)
	require.Equal(t, f.Sender, got.Sender)
	require.Equal(t, f.Recipient.String(), got.Recipient.String())
	require.Equal(t, f.Payload, got.Payload)
}

func TestDecodeFrameRejectsShortInput(t *testing.T) {
	t.Parallel()

	_, err := decodeFrame([]byte{0x01, 0x00})
	require.Error(t, err)
}

func TestPayloadEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	raw, err := encodePayload("hello")
	require.NoError(t, err)

	got, err := decodePayload(raw)
	require.NoError(t, err)
	require.Equal(t, "hello", got)
}
