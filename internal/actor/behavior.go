package actor

import (
	"context"

	"github.com/btcsuite/btclog/v2"
)

// Behavior is the application-supplied logic driving a single Cell. Unlike
// the generic engine's ActorBehavior[M, R] (a pure function from message to
// result), Behavior is given a Context capability object on every hook so it
// can spawn children, watch other actors, reply, or switch to a new
// Behavior entirely — matching the design note calling for explicit,
// per-call context instead of a global node/system handle, and for
// capability-set polymorphism (a Behavior can implement only the hooks it
// needs; see the optional-hook embeddings below) instead of a single
// god-interface.
type Behavior interface {
	// Receive handles one user message. Returning a non-nil error is
	// treated as a fault and handed to the Cell's Strategy exactly like
	// a recovered panic.
	Receive(ctx Context, msg any) error
}

// PreStarter is an optional Behavior extension invoked once, before the
// first Receive, whether on initial spawn or after a Restart.
type PreStarter interface {
	PreStart(ctx Context) error
}

// PreRestarter is an optional Behavior extension invoked on the *old*
// behavior instance immediately before a Restart directive takes effect,
// so it can release resources tied to the state that's about to be
// discarded. cause is the fault that triggered the restart.
type PreRestarter interface {
	PreRestart(ctx Context, cause error) error
}

// PostStopper is an optional Behavior extension invoked once the Cell has
// fully stopped (clean Stop or a Stop directive), after its mailbox has
// been drained.
type PostStopper interface {
	PostStop(ctx Context) error
}

// Factory constructs a fresh Behavior instance. The kernel captures a
// Factory at spawn time, rather than a bare Behavior value, so a Restart
// directive can discard a faulted instance entirely and build a genuinely
// new one in its place instead of reusing and hoping the old instance's
// state was reset in PreRestart/PreStart.
type Factory func() Behavior

// Single adapts a Behavior value into a Factory that always returns the
// same instance. Only use this for behaviors with no mutable state that
// needs resetting across a Restart (PreStart/PreRestart still run against
// it normally on every restart); a behavior that accumulates state or
// holds resources should supply a real constructor closure instead, so
// that Restart actually produces a fresh instance.
func Single(b Behavior) Factory {
	return func() Behavior { return b }
}

// Context is the capability set a Behavior is given on every hook
// invocation. It is scoped to the single Cell the Behavior drives: there is
// deliberately no way to reach an arbitrary other actor except through a Ref
// already held or resolved via Node.Resolve from outside.
type Context interface {
	context.Context

	// Self returns a Ref addressing the Cell this Context belongs to.
	Self() Ref

	// Parent returns a Ref addressing the Cell's supervisor, or nil for
	// the guardian.
	Parent() Ref

	// Sender returns the Ref that sent the message currently being
	// processed by Receive, or nil for signals and for hooks other than
	// Receive.
	Sender() Ref

	// Spawn creates a new child Cell running a Behavior built by factory
	// under name, returning its Ref. It fails with a KindNameConflict
	// KernelError if name is already taken among this Cell's children. If
	// name is "", a name is autogenerated using a monotonically
	// increasing counter scoped to this Cell.
	Spawn(name string, factory Factory, opts ...SpawnOption) (Ref, error)

	// Watch registers the Cell's own Ref to be notified with a
	// Terminated message when target stops.
	Watch(target Ref)

	// Unwatch reverses a prior Watch.
	Unwatch(target Ref)

	// Stop requests termination of target. If target is this Cell's own
	// Ref, this is equivalent to calling Become's sibling, (*Cell).Stop.
	Stop(target Ref)

	// Become replaces the Cell's Behavior with next, effective from the
	// very next message (the message currently being processed still
	// runs against the *old* Behavior's Receive, mirroring Erlang/Akka
	// become semantics).
	Become(next Behavior)

	// Log returns a logger pre-tagged with this Cell's path.
	Log() btclog.Logger
}

// SpawnOption configures a child Cell at spawn time.
type SpawnOption func(*cellOptions)

type cellOptions struct {
	mailboxCapacity int
	strategy        Strategy
}

const defaultMailboxCapacity = 256

func defaultCellOptions() cellOptions {
	return cellOptions{
		mailboxCapacity: defaultMailboxCapacity,
		strategy:        OneForOneStrategy(Restart),
	}
}

// WithMailboxCapacity overrides the default bounded user-mailbox capacity
// (256, larger than the generic engine's own default of 1 and
// actorutil.Pool's default of 100, to give supervision trees with bursty
// fan-in more headroom before MailboxOverflow kicks in).
func WithMailboxCapacity(n int) SpawnOption {
	return func(o *cellOptions) { o.mailboxCapacity = n }
}

// WithStrategy overrides the default one-for-one Restart strategy a child's
// parent applies to its faults.
func WithStrategy(s Strategy) SpawnOption {
	return func(o *cellOptions) { o.strategy = s }
}
