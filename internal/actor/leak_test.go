package actor

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// TestSupervisionTreeLeavesNoGoroutines drives a whole spawn/fault/restart/
// stop/shutdown lifecycle and then asserts, the way the teacher's own
// supervisor tests do, that nothing outlives it. Deliberately not
// t.Parallel(): goleak inspects every goroutine in the process, and a
// concurrently running parallel test would produce false positives.
func TestSupervisionTreeLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	node := NewNode(NodeConfig{GuardianStrategy: OneForOneStrategy(Restart)})

	parent, err := node.Spawn(
		"parent", Single(&leakTestParentBehavior{}),
		WithStrategy(OneForOneStrategy(Restart)),
	)
	if err != nil {
		t.Fatalf("spawn parent: %v", err)
	}

	// Drive a fault through the parent so it restarts (and its child is
	// torn down and respawned in the process), then stop it directly, then
	// shut the whole node down, exercising every lifecycle transition a
	// single goroutine leak could hide behind.
	parent.Send(context.Background(), "fault", nil)

	time.Sleep(50 * time.Millisecond)

	local, ok := parent.(*localRef)
	if !ok {
		t.Fatalf("expected *localRef, got %T", parent)
	}
	local.cell.Stop()
	local.cell.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := node.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

type leakTestParentBehavior struct{}

func (b *leakTestParentBehavior) PreStart(ctx Context) error {
	_, err := ctx.Spawn("child", Single(&recordingBehavior{}))
	return err
}

func (b *leakTestParentBehavior) Receive(ctx Context, msg any) error {
	if str, ok := msg.(string); ok && str == "fault" {
		return errors.New("boom")
	}
	return nil
}

var (
	_ Behavior   = (*leakTestParentBehavior)(nil)
	_ PreStarter = (*leakTestParentBehavior)(nil)
)
