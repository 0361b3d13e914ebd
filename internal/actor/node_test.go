package actor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveLocal(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, nil)

	ref, err := node.Spawn("worker", Single(&recordingBehavior{}))
	require.NoError(t, err)

	resolved, err := node.Resolve(MustParsePath("/worker"))
	require.NoError(t, err)
	require.Equal(t, ref.Path(), resolved.Path())
}

func TestResolveMissingReturnsDeadLetterRef(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, nil)

	resolved, err := node.Resolve(MustParsePath("/nope"))
	require.NoError(t, err)

	_, ok := resolved.(*deadLetterRef)
	require.True(t, ok, "expected a dead-letter ref, got %T", resolved)

	var letters int32
	subID := node.Events().Subscribe(func(ev Event) {
		if _, ok := ev.(DeadLetter); ok {
			atomic.AddInt32(&letters, 1)
		}
	})
	defer node.Events().Unsubscribe(subID)

	resolved.Send(context.Background(), "hello", nil)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&letters) == 1
	}, time.Second, time.Millisecond)
}

// TestResolveDeadActorReturnsDeadLetterRef covers testable property 4: once
// an actor at a path has terminated, Resolve must return a dead-letter ref
// bound to the same path rather than the stale *localRef or an error.
func TestResolveDeadActorReturnsDeadLetterRef(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, nil)

	ref, err := node.Spawn("q", Single(&recordingBehavior{}))
	require.NoError(t, err)

	local := ref.(*localRef)
	local.cell.Stop()
	local.cell.Wait()

	resolved, err := node.Resolve(MustParsePath("/q"))
	require.NoError(t, err)

	dead, ok := resolved.(*deadLetterRef)
	require.True(t, ok, "expected a dead-letter ref, got %T", resolved)
	require.Equal(t, "/q", dead.Path().String())
}

func TestResolveRemoteWithoutRemotingFails(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, nil)

	remotePath := Path{Node: "other", Segments: []string{"worker"}}
	_, err := node.Resolve(remotePath)
	require.Error(t, err)
}

func TestEnableRemotingTwiceFails(t *testing.T) {
	t.Parallel()

	node := newTestNode(t, nil)

	_, err := node.EnableRemoting(newFakeTransport())
	require.NoError(t, err)

	_, err = node.EnableRemoting(newFakeTransport())
	require.Error(t, err)
}

func TestShutdownStopsWholeTree(t *testing.T) {
	t.Parallel()

	node := NewNode(NodeConfig{GuardianStrategy: OneForOneStrategy(Stop)})

	parent, err := node.Spawn("parent", Single(&recordingBehavior{}))
	require.NoError(t, err)

	parentCell := parent.(*localRef).cell
	_, err = parentCell.spawnChild("child", Single(&recordingBehavior{}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, node.Shutdown(ctx))
	require.Equal(t, StateTerminated, parentCell.CurrentState())
}

// fakeTransport is a minimal no-op Transport satisfying the port for tests
// that only exercise Hub/Node wiring, not actual byte transfer.
type fakeTransport struct{}

func newFakeTransport() *fakeTransport { return &fakeTransport{} }

func (f *fakeTransport) Listen(ctx context.Context, addr string) (<-chan Conn, error) {
	ch := make(chan Conn)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (f *fakeTransport) Dial(ctx context.Context, addr string) (Conn, error) {
	return nil, context.DeadlineExceeded
}

var _ Transport = (*fakeTransport)(nil)
