package actor

import "context"

// DeadLetterOffice is the terminal sink for messages the kernel could not
// deliver: sends to a terminated Cell, sends that overflow a full mailbox,
// and remote sends to an unreachable peer all land here rather than being
// silently discarded, matching the dead-letter office module in the data
// model.
type DeadLetterOffice struct {
	path Path
	bus  *EventBus
}

// NewDeadLetterOffice creates a DeadLetterOffice that publishes every
// recorded letter to bus as a DeadLetter event.
func NewDeadLetterOffice(path Path, bus *EventBus) *DeadLetterOffice {
	return &DeadLetterOffice{path: path, bus: bus}
}

// Ref returns a Ref addressing this office, so it can be wired in wherever
// the kernel needs a delivery target of last resort.
func (d *DeadLetterOffice) Ref() Ref {
	return &deadLetterRef{office: d, path: d.path}
}

// record publishes letter to the event bus. It never blocks: Publish is
// itself the only synchronization point, and the office holds no further
// state of its own (any retained history is the responsibility of a
// subscriber, e.g. the admin package's rolling buffer).
func (d *DeadLetterOffice) record(letter DeadLetter) {
	d.bus.Publish(letter)
}

// tell is a convenience used internally by the kernel (mailbox overflow,
// terminated-cell delivery) so callers don't need to reach for record's
// struct literal directly.
func (d *DeadLetterOffice) tell(_ context.Context, path Path, msg any, sender Ref, reason string) {
	d.record(DeadLetter{
		Path:    path,
		Message: msg,
		Sender:  sender,
		Reason:  reason,
	})
}
