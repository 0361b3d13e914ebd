package actor

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/btcsuite/btclog/v2"
)

// State is a Cell's position in its lifecycle state machine.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateSuspended
	StateRestarting
	StateStopping
	StateTerminated
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateRestarting:
		return "restarting"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Cell is the kernel's unit of concurrency, isolation, and supervision: one
// goroutine, one mailbox, one Behavior, a set of children it owns, and a
// reference up to the parent that supervises it. This generalizes the
// generic engine's Actor[M, R] (see actor.go) from "run a pure function over
// a bounded FIFO channel" to the full spec'd lifecycle: a priority mailbox,
// an explicit state machine, parent/child ownership, and directive-driven
// fault handling.
type Cell struct {
	path   Path
	node   *Node
	parent *Cell

	mu       sync.Mutex
	factory  Factory
	behavior Behavior
	state    atomic.Int32
	children map[string]*Cell
	nextAuto atomic.Int64

	watchers *watcherSet
	strategy Strategy

	mailbox *priorityMailbox
	ctx     context.Context
	cancel  context.CancelFunc

	startOnce sync.Once
	done      chan struct{}

	logger btclog.Logger

	selfOnce sync.Once
	self     Ref
}

func newCell(path Path, node *Node, parent *Cell, factory Factory, opts cellOptions) *Cell {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Cell{
		path:     path,
		node:     node,
		parent:   parent,
		factory:  factory,
		behavior: factory(),
		children: make(map[string]*Cell),
		watchers: newWatcherSet(),
		strategy: opts.strategy,
		mailbox:  newPriorityMailbox(ctx, opts.mailboxCapacity),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		logger:   log.Logger,
	}

	return c
}

// Ref returns a Ref addressing this Cell. The same *localRef is returned on
// every call: watch/unwatch registration keys on Ref identity (watcherSet),
// so a Cell's address must be stable for Unwatch to ever find what Watch
// inserted.
func (c *Cell) Ref() Ref {
	c.selfOnce.Do(func() { c.self = &localRef{cell: c} })
	return c.self
}

// Start launches the Cell's goroutine. Safe to call more than once; only the
// first call has effect.
func (c *Cell) Start() {
	c.startOnce.Do(func() {
		if c.node != nil && c.node.wg != nil {
			c.node.wg.Add(1)
		}

		if c.node != nil && c.node.executor != nil {
			c.node.executor.Go(c.run)
			return
		}
		go c.run()
	})
}

func (c *Cell) setState(s State) {
	c.state.Store(int32(s))
}

// CurrentState returns the Cell's current lifecycle state.
func (c *Cell) CurrentState() State {
	return State(c.state.Load())
}

// Path returns the Cell's own address.
func (c *Cell) Path() Path { return c.path }

// childSnapshot returns a snapshot of the Cell's current children, safe to range
// over without holding any lock. Used by Node.Snapshot to walk the whole
// tree for introspection.
func (c *Cell) childSnapshot() []*Cell {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Cell, 0, len(c.children))
	for _, child := range c.children {
		out = append(out, child)
	}
	return out
}

func (c *Cell) run() {
	if c.node != nil && c.node.wg != nil {
		defer c.node.wg.Done()
	}

	c.setState(StateStarting)
	if err := c.invokePreStart(); err != nil {
		c.handleFault(err)
	} else {
		c.setState(StateRunning)
		if c.node != nil {
			c.node.events.Publish(Spawned{Path: c.path})
		}
	}

	for c.CurrentState() != StateTerminated && c.CurrentState() != StateStopping {
		env, ok := c.receiveOne()
		if !ok {
			break
		}

		if env.isSystem() {
			c.handleSignal(env.sig)
			continue
		}

		if c.CurrentState() != StateRunning {
			// Suspended/Restarting cells don't process user
			// messages; redeliver to dead letters rather than
			// silently drop.
			c.toDeadLetter(env, "cell not running")
			continue
		}

		c.dispatch(env)
	}

	if c.CurrentState() != StateTerminated {
		c.finish(nil)
	}
}

// receiveOne pulls the next envelope (system-priority) from the mailbox, or
// reports false once the mailbox iterator stops (cell context cancelled).
func (c *Cell) receiveOne() (cellEnvelope, bool) {
	for env := range c.mailbox.Receive(c.ctx) {
		return env, true
	}
	return cellEnvelope{}, false
}

func (c *Cell) dispatch(env cellEnvelope) {
	cause := c.safeReceive(env)
	if cause != nil {
		c.handleFault(cause)
	}
}

func (c *Cell) safeReceive(env cellEnvelope) (faultErr error) {
	defer func() {
		if r := recover(); r != nil {
			faultErr = ErrUserFailure(fmt.Errorf("panic: %v", r))
		}
	}()

	ctx := &cellContext{Context: c.ctx, cell: c, sender: env.sender}
	if err := c.currentBehavior().Receive(ctx, env.payload); err != nil {
		return ErrUserFailure(err)
	}
	return nil
}

func (c *Cell) currentBehavior() Behavior {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.behavior
}

func (c *Cell) invokePreStart() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrUserFailure(fmt.Errorf("panic in PreStart: %v", r))
		}
	}()

	if starter, ok := c.currentBehavior().(PreStarter); ok {
		ctx := &cellContext{Context: c.ctx, cell: c}
		if e := starter.PreStart(ctx); e != nil {
			return ErrUserFailure(e)
		}
	}
	return nil
}

func (c *Cell) handleSignal(sig signal) {
	switch s := sig.(type) {
	case stopSignal:
		c.beginStop(nil)

	case restartSignal:
		c.handleFault(ErrUserFailure(s.cause))

	case resumeSignal:
		c.setState(StateRunning)

	case watchSignal:
		c.watchers.add(s.watcher)

	case unwatchSignal:
		c.watchers.remove(s.watcher)

	case childFaultSignal:
		c.handleFault(s.cause)

	case childTerminatedSignal:
		c.mu.Lock()
		name := s.child.Path().Name()
		if cur, ok := c.children[name]; ok && cur.Ref() == s.child {
			delete(c.children, name)
		}
		c.mu.Unlock()
	}
}

// handleFault applies the Cell's Strategy to cause and carries out the
// resulting Directive.
func (c *Cell) handleFault(cause error) {
	c.setState(StateSuspended)

	directive := c.strategy(cause)
	log.WarnS(c.ctx, "cell fault", cause, "path", c.path.String(),
		"directive", directive.String())

	switch directive {
	case Resume:
		c.setState(StateRunning)

	case Restart:
		c.restart(cause)

	case Stop:
		c.beginStop(cause)

	case Escalate:
		if c.parent == nil {
			// The guardian has nowhere to escalate to: treat as a
			// fatal stop so the process-level runner (cmd/cellmesh)
			// can observe it and exit non-zero.
			c.beginStop(cause)
			return
		}
		if c.node != nil {
			c.node.events.Publish(Escalated{Path: c.path, Cause: cause})
		}
		c.parent.mailbox.Send(
			context.Background(),
			sysEnvelope(childFaultSignal{child: c.Ref(), cause: cause}),
		)
	}
}

// restart carries out the Restart directive exactly as the supervision
// contract requires: every child is fully stopped first, PreRestart runs on
// the faulted instance, a brand new instance is then built from the Factory
// captured at spawn, PreStart runs on that new instance, and only then does
// the Cell resume processing. Queued user messages in the Cell's own
// mailbox survive (restart only tears down the behavior instance and the
// children, never the mailbox).
func (c *Cell) restart(cause error) {
	c.setState(StateRestarting)

	c.stopChildren()

	func() {
		defer func() { recover() }() //nolint:errcheck

		if restarter, ok := c.currentBehavior().(PreRestarter); ok {
			ctx := &cellContext{Context: c.ctx, cell: c}
			if err := restarter.PreRestart(ctx, cause); err != nil {
				log.WarnS(c.ctx, "PreRestart error", err, "path", c.path.String())
			}
		}
	}()

	c.mu.Lock()
	c.behavior = c.factory()
	c.mu.Unlock()

	if err := c.invokePreStart(); err != nil {
		// A fault during restart's PreStart re-applies the strategy;
		// if that strategy is itself Restart this could loop, which
		// is the same tradeoff a real supervisor accepts and is why
		// production strategies usually bound restarts with a
		// backoff/limit (left to the application's Strategy).
		c.handleFault(err)
		return
	}

	c.setState(StateRunning)
	if c.node != nil {
		c.node.events.Publish(Restarted{Path: c.path, Cause: cause})
	}
}

// stopChildren asks every current child to stop and blocks until all of
// them have fully terminated. Shared by beginStop (permanent shutdown) and
// restart (temporary teardown before a fresh behavior instance takes over).
func (c *Cell) stopChildren() {
	c.mu.Lock()
	children := make([]*Cell, 0, len(c.children))
	for _, child := range c.children {
		children = append(children, child)
	}
	c.mu.Unlock()

	for _, child := range children {
		child.requestStop()
	}
	for _, child := range children {
		<-child.done

		c.mu.Lock()
		if c.children[child.path.Name()] == child {
			delete(c.children, child.path.Name())
		}
		c.mu.Unlock()
	}
}

// beginStop drives the Cell through Stopping to Terminated: children are
// asked to stop first and waited on, then the mailbox is closed and drained,
// then PostStop runs.
func (c *Cell) beginStop(cause error) {
	if c.CurrentState() == StateStopping || c.CurrentState() == StateTerminated {
		return
	}
	c.setState(StateStopping)

	c.stopChildren()

	c.finish(cause)
}

// requestStop asks the cell to stop asynchronously via the system queue, so
// a parent stopping multiple children doesn't need direct access to each
// child's cancel function.
func (c *Cell) requestStop() {
	c.mailbox.Send(context.Background(), sysEnvelope(stopSignal{}))
}

// Stop requests the Cell (and transitively its children) to terminate. It
// does not block; watch the Cell's Ref for the resulting Terminated
// notification, or call Wait.
func (c *Cell) Stop() {
	c.requestStop()
}

// Wait blocks until the Cell has fully terminated.
func (c *Cell) Wait() {
	<-c.done
}

func (c *Cell) finish(cause error) {
	c.mailbox.Close()

	for env := range c.mailbox.Drain() {
		c.toDeadLetter(env, "cell terminated")
	}

	func() {
		defer func() { recover() }() //nolint:errcheck

		if stopper, ok := c.currentBehavior().(PostStopper); ok {
			ctx := &cellContext{Context: context.Background(), cell: c}
			if err := stopper.PostStop(ctx); err != nil {
				log.WarnS(c.ctx, "PostStop error", err, "path", c.path.String())
			}
		}
	}()

	c.cancel()
	c.setState(StateTerminated)
	if c.node != nil {
		c.node.forget(c.path)
	}
	close(c.done)

	c.watchers.notify(c.Ref(), cause)

	if c.parent != nil {
		c.parent.mailbox.Send(
			context.Background(),
			sysEnvelope(childTerminatedSignal{child: c.Ref()}),
		)
	}

	if c.node != nil {
		c.node.events.Publish(Stopped{Path: c.path, Cause: cause})
	}
}

func (c *Cell) toDeadLetter(env cellEnvelope, reason string) {
	if c.node == nil {
		return
	}
	c.node.deadLetters.tell(context.Background(), c.path, env.payload, env.sender, reason)
}

func (c *Cell) addWatcher(watcher Ref) {
	c.mailbox.Send(context.Background(), sysEnvelope(watchSignal{watcher: watcher}))
}

func (c *Cell) removeWatcher(watcher Ref) {
	c.mailbox.Send(context.Background(), sysEnvelope(unwatchSignal{watcher: watcher}))
}

// deliver enqueues a user message addressed to this Cell. Failure to enqueue
// (mailbox full or closed) routes the message to the dead-letter office
// rather than blocking the caller forever or silently dropping it.
func (c *Cell) deliver(ctx context.Context, msg any, sender Ref) {
	env := userEnvelope(msg, sender)
	if !c.mailbox.TrySend(env) {
		if c.node != nil {
			reason := "mailbox full"
			if c.mailbox.IsClosed() {
				reason = "cell terminated"
			}
			c.node.deadLetters.tell(ctx, c.path, msg, sender, reason)
		}
	}
}

// spawnChild creates, registers, and starts a new child Cell named name. It
// is the implementation behind Context.Spawn and Node.Spawn.
func (c *Cell) spawnChild(name string, factory Factory, opts ...SpawnOption) (Ref, error) {
	cfg := defaultCellOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	c.mu.Lock()
	if name == "" {
		name = "$" + strconv.FormatInt(c.nextAuto.Add(1), 10)
	}
	if _, exists := c.children[name]; exists {
		c.mu.Unlock()
		return nil, ErrNameConflict(name)
	}

	childPath := c.path.Child(name)
	child := newCell(childPath, c.node, c, factory, cfg)
	c.children[name] = child
	c.mu.Unlock()

	if c.node != nil {
		c.node.register(child)
	}
	child.Start()

	return child.Ref(), nil
}

// cellContext is the concrete Context implementation handed to Behavior
// hooks.
type cellContext struct {
	context.Context
	cell   *Cell
	sender Ref
}

func (c *cellContext) Self() Ref {
	return c.cell.Ref()
}

func (c *cellContext) Parent() Ref {
	if c.cell.parent == nil {
		return nil
	}
	return c.cell.parent.Ref()
}

func (c *cellContext) Sender() Ref {
	return c.sender
}

func (c *cellContext) Spawn(name string, factory Factory, opts ...SpawnOption) (Ref, error) {
	return c.cell.spawnChild(name, factory, opts...)
}

func (c *cellContext) Watch(target Ref) {
	target.watch(c.cell.Ref())
}

func (c *cellContext) Unwatch(target Ref) {
	target.unwatch(c.cell.Ref())
}

// Stop terminates target. Only a Cell's own node may stop it directly; a
// remote Ref can't be stopped from afar (that would require the remote
// node's own owner to decide), so Stop on a remote target is a no-op logged
// at warn level rather than silently doing nothing.
func (c *cellContext) Stop(target Ref) {
	local, ok := target.(*localRef)
	if !ok {
		log.WarnS(c.Context, "Stop called on non-local ref", nil,
			"path", target.Path().String())
		return
	}
	local.cell.Stop()
}

func (c *cellContext) Become(next Behavior) {
	c.cell.mu.Lock()
	defer c.cell.mu.Unlock()
	c.cell.behavior = next
}

func (c *cellContext) Log() btclog.Logger {
	return c.cell.logger
}

var _ Context = (*cellContext)(nil)
