package actor

import "context"

// Ref is a location-transparent handle to an actor. It may point at a Cell
// hosted on the local node, at an actor hosted on a remote node (reached
// through a Hub), or at the dead-letter office. Send is always
// fire-and-forget: the only feedback a caller can observe is a synthetic
// Terminated message delivered to anything that previously called Watch on
// this Ref.
type Ref interface {
	// Path returns the fully qualified path this Ref addresses.
	Path() Path

	// Send delivers msg to the addressed actor's mailbox, or to the
	// dead-letter office if delivery is not currently possible (mailbox
	// full, actor terminated, peer unreachable). sender is attached to
	// the envelope so the receiving behavior can reply without needing a
	// Node handle, per the design note calling for an explicit context
	// parameter instead of global node state.
	Send(ctx context.Context, msg any, sender Ref)

	// watch and unwatch are the internal half of the watch protocol
	// invoked by Node.Watch/Unwatch (see watch.go); they are
	// unexported because application code should never need to call
	// them directly and because remote refs require a Hub round-trip
	// that only the watch registry knows how to drive.
	watch(watcher Ref)
	unwatch(watcher Ref)
}

// localRef addresses a Cell hosted directly on this node.
type localRef struct {
	cell *Cell
}

func (r *localRef) Path() Path { return r.cell.path }

func (r *localRef) Send(ctx context.Context, msg any, sender Ref) {
	r.cell.deliver(ctx, msg, sender)
}

func (r *localRef) watch(watcher Ref)   { r.cell.addWatcher(watcher) }
func (r *localRef) unwatch(watcher Ref) { r.cell.removeWatcher(watcher) }

// remoteRef addresses an actor hosted on a different node, reached through
// the local node's Hub.
type remoteRef struct {
	path Path
	hub  *Hub
}

func (r *remoteRef) Path() Path { return r.path }

func (r *remoteRef) Send(ctx context.Context, msg any, sender Ref) {
	r.hub.sendRemote(ctx, r.path, msg, sender)
}

func (r *remoteRef) watch(watcher Ref) {
	r.hub.watchRemote(r.path, watcher)
}

func (r *remoteRef) unwatch(watcher Ref) {
	r.hub.unwatchRemote(r.path, watcher)
}

// deadLetterRef is the terminal sink for undeliverable messages. Watching it
// is a no-op: the dead-letter office itself never terminates while the node
// is up.
type deadLetterRef struct {
	office *DeadLetterOffice
	path   Path
}

func (r *deadLetterRef) Path() Path { return r.path }

func (r *deadLetterRef) Send(ctx context.Context, msg any, sender Ref) {
	r.office.record(DeadLetter{
		Path:      r.path,
		Message:   msg,
		Sender:    sender,
		Reason:    "undeliverable",
	})
}

func (r *deadLetterRef) watch(Ref)   {}
func (r *deadLetterRef) unwatch(Ref) {}

var (
	_ Ref = (*localRef)(nil)
	_ Ref = (*remoteRef)(nil)
	_ Ref = (*deadLetterRef)(nil)
)
