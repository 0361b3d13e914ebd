package actor

import "fmt"

// signal is the sealed tagged-variant type carried on a Cell's system queue.
// Unlike user messages, signals are never visible to a Behavior's Receive
// hook directly; the Cell interprets them to drive its own lifecycle and
// supervision state machine (see cell.go). This follows the design note
// calling for explicit, tagged-variant event typing instead of an untyped
// control-message channel.
type signal interface {
	signalMarker()
}

// stopSignal requests that the target cell begin graceful shutdown.
type stopSignal struct{}

func (stopSignal) signalMarker() {}

// restartSignal requests that the target cell restart due to a supervisor
// directive, carrying the fault that triggered it.
type restartSignal struct {
	cause error
}

func (restartSignal) signalMarker() {}

// resumeSignal requests that the target cell resume processing after a
// fault, discarding the message that caused it but preserving state.
type resumeSignal struct{}

func (resumeSignal) signalMarker() {}

// childFaultSignal is delivered to a parent cell when one of its children
// faults and the child's own decision escalates to the parent.
type childFaultSignal struct {
	child Ref
	cause error
}

func (childFaultSignal) signalMarker() {}

// childTerminatedSignal is delivered to a parent cell when one of its
// children has fully terminated, so the parent can drop it from its
// children set.
type childTerminatedSignal struct {
	child Ref
}

func (childTerminatedSignal) signalMarker() {}

// watchSignal registers watcher as an observer of the receiving cell's
// termination.
type watchSignal struct {
	watcher Ref
}

func (watchSignal) signalMarker() {}

// unwatchSignal removes watcher from the receiving cell's observer set.
type unwatchSignal struct {
	watcher Ref
}

func (unwatchSignal) signalMarker() {}

// Terminated is the notification delivered to a watcher's mailbox (as a
// regular user-visible message, not a signal) when a watched Ref stops,
// whether cleanly, due to an unhandled fault, or because its hosting node
// was declared lost.
type Terminated struct {
	// Who identifies the Ref that stopped.
	Who Ref

	// Cause is nil for a clean stop, or the fault/NodeLost error that
	// caused the termination.
	Cause error
}

// String implements fmt.Stringer for convenient logging.
func (t Terminated) String() string {
	if t.Cause == nil {
		return fmt.Sprintf("Terminated{who=%s}", t.Who.Path())
	}
	return fmt.Sprintf("Terminated{who=%s, cause=%v}", t.Who.Path(), t.Cause)
}

// cellEnvelope is the concrete message type carried by a Cell's mailbox. It
// is a disjoint union of a system signal and a user payload; exactly one of
// the two fields is set. BaseMessage satisfies the sealed Message interface
// so cellEnvelope can flow through the generic Mailbox[M, R] abstraction
// (see priority_mailbox.go) without the engine needing to know about user
// payload types at all.
type cellEnvelope struct {
	BaseMessage

	sig     signal
	payload any
	sender  Ref
}

// MessageType implements Message.
func (e cellEnvelope) MessageType() string {
	if e.sig != nil {
		return fmt.Sprintf("signal:%T", e.sig)
	}
	return fmt.Sprintf("user:%T", e.payload)
}

func sysEnvelope(sig signal) cellEnvelope {
	return cellEnvelope{sig: sig}
}

func userEnvelope(payload any, sender Ref) cellEnvelope {
	return cellEnvelope{payload: payload, sender: sender}
}

func (e cellEnvelope) isSystem() bool {
	return e.sig != nil
}
