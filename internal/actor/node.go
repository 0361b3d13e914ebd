package actor

import (
	"context"
	"fmt"
	"sync"
)

// Node is the root of a local supervision tree: it owns the guardian Cell,
// a path->Cell registry used to implement Resolve without walking the tree
// on every lookup, the dead-letter office, the event bus, and (when
// remoting is enabled) a Hub. Nothing ties a Node to the process: several
// Nodes can run side by side in one process, each with its own tree.
type Node struct {
	id ID

	guardian *Cell

	mu       sync.RWMutex
	registry map[string]*Cell

	deadLetters *DeadLetterOffice
	events      *EventBus
	hub         *Hub

	executor Executor
	clock    Clock

	wg *sync.WaitGroup
}

// ID is the node's own identity, used to qualify the paths of actors it
// hosts and to address it from a remote peer.
type ID = NodeID

// NodeConfig configures a new Node.
type NodeConfig struct {
	// ID identifies this node. Defaults to "local" when empty. Remote
	// peers dial a node by its ID, so a node taking part in remoting uses
	// its host:port here.
	ID NodeID

	// GuardianStrategy is the guardian's own Strategy: it decides the
	// directive for faults that reach the guardian, i.e. faults a
	// top-level actor escalates to it. It is not applied to a top-level
	// actor's own faults; those use the strategy the actor was spawned
	// with (OneForOneStrategy(Restart) unless Spawn is given
	// WithStrategy). Defaults to OneForOneStrategy(Restart). It is
	// configured from the CLI's --supervise flag in cmd/cellmesh.
	GuardianStrategy Strategy

	// Executor runs every Cell's processing goroutine. Defaults to
	// NewGoroutineExecutor (one goroutine per Cell).
	Executor Executor

	// Clock drives the Hub's heartbeat timers when remoting is enabled.
	// Defaults to NewRealClock.
	Clock Clock
}

// NewNode creates a Node with its guardian Cell started, ready to Spawn
// top-level actors.
func NewNode(cfg NodeConfig) *Node {
	id := cfg.ID
	if id == "" {
		id = "local"
	}

	strategy := cfg.GuardianStrategy
	if strategy == nil {
		strategy = OneForOneStrategy(Restart)
	}

	executor := cfg.Executor
	if executor == nil {
		executor = NewGoroutineExecutor()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = NewRealClock()
	}

	n := &Node{
		id:       id,
		registry: make(map[string]*Cell),
		events:   NewEventBus(),
		executor: executor,
		clock:    clock,
		wg:       &sync.WaitGroup{},
	}

	n.deadLetters = NewDeadLetterOffice(Path{Node: id, Segments: []string{"dead-letters"}}, n.events)

	guardianPath := Path{Node: id, Segments: nil}
	n.guardian = newCell(guardianPath, n, nil, Single(guardianBehavior{}), cellOptions{
		mailboxCapacity: defaultMailboxCapacity,
		strategy:        strategy,
	})
	n.register(n.guardian)
	n.guardian.Start()

	return n
}

// guardianBehavior is the do-nothing Behavior driving the root Cell: all it
// does is host children spawned via Node.Spawn and apply GuardianStrategy to
// their escalated faults.
type guardianBehavior struct{}

func (guardianBehavior) Receive(ctx Context, msg any) error {
	return nil
}

// ID returns the node's identity.
func (n *Node) ID() NodeID { return n.id }

// DeadLetters returns a Ref addressing this node's dead-letter office.
func (n *Node) DeadLetters() Ref { return n.deadLetters.Ref() }

// Events returns the node's event bus.
func (n *Node) Events() *EventBus { return n.events }

// EnableRemoting starts a Hub bound to transport, allowing this node to send
// to and receive from remote peers. It is an error to call this twice.
func (n *Node) EnableRemoting(transport Transport) (*Hub, error) {
	if n.hub != nil {
		return nil, fmt.Errorf("remoting already enabled")
	}

	n.hub = NewHub(n, transport, n.clock)
	n.hub.Start()

	return n.hub, nil
}

// Spawn creates a top-level actor (a direct child of the guardian) named
// name, built by factory.
func (n *Node) Spawn(name string, factory Factory, opts ...SpawnOption) (Ref, error) {
	return n.guardian.spawnChild(name, factory, opts...)
}

// Resolve looks up path on this node. If path names a remote node and
// remoting is enabled, a remoteRef is returned unconditionally (existence
// can only be confirmed by attempting delivery, consistent with the
// fire-and-forget send model); if path names a remote node and remoting is
// disabled, KindInvalidNodeID is returned. If path is local but no Cell is
// currently registered there — never spawned, or already terminated — a
// DeadLetter ref bound to that path is returned instead of an error, so a
// stale or speculative Ref is always safe to Send to.
func (n *Node) Resolve(path Path) (Ref, error) {
	if path.IsRemote(n.id) {
		if n.hub == nil {
			return nil, ErrInvalidNodeID(
				string(path.Node), fmt.Errorf("remoting not enabled"),
			)
		}
		return &remoteRef{path: path, hub: n.hub}, nil
	}

	n.mu.RLock()
	cell, ok := n.registry[path.Local().String()]
	n.mu.RUnlock()

	if !ok {
		return &deadLetterRef{office: n.deadLetters, path: path}, nil
	}

	return cell.Ref(), nil
}

// Watch registers watcher to be notified when the actor at target
// terminates. It is a thin wrapper so callers outside a Behavior's Context
// (e.g. the CLI runner watching the top-level actor) can watch without
// needing a Context.
func (n *Node) Watch(target, watcher Ref) {
	target.watch(watcher)
}

// Unwatch reverses a prior Watch.
func (n *Node) Unwatch(target, watcher Ref) {
	target.unwatch(watcher)
}

// Shutdown stops the guardian (and therefore, transitively, every actor on
// this node) and blocks until the whole tree has terminated or ctx is
// cancelled, whichever comes first.
func (n *Node) Shutdown(ctx context.Context) error {
	if n.hub != nil {
		n.hub.Stop()
	}

	n.guardian.Stop()

	done := make(chan struct{})
	go func() {
		n.guardian.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// lookupLocal returns the Cell registered at path's local form, if any. It
// is used by the Hub to service an inbound remote-watch request.
func (n *Node) lookupLocal(path Path) (*Cell, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	cell, ok := n.registry[path.Local().String()]
	return cell, ok
}

// CellSnapshot is a point-in-time description of one Cell, returned by
// Node.Snapshot for introspection (the admin package's list_cells/tree MCP
// tools in particular). It intentionally exposes no live handle: a
// snapshot is a value, not a Ref, so holding one can't be used to bypass
// the mailbox.
type CellSnapshot struct {
	Path     Path
	State    State
	Children []CellSnapshot
}

// Snapshot walks the whole local supervision tree from the guardian down
// and returns it as a value tree, for read-only introspection.
func (n *Node) Snapshot() CellSnapshot {
	return snapshotCell(n.guardian)
}

func snapshotCell(c *Cell) CellSnapshot {
	children := c.childSnapshot()
	out := CellSnapshot{
		Path:  c.Path(),
		State: c.CurrentState(),
	}
	for _, child := range children {
		out.Children = append(out.Children, snapshotCell(child))
	}
	return out
}

func (n *Node) register(c *Cell) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.registry[c.path.Local().String()] = c
}

func (n *Node) forget(path Path) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.registry, path.Local().String())
}
