package actor

import "fmt"

// Directive is the action a supervisor takes in response to a child's
// unhandled fault.
type Directive int

const (
	// Resume tells the child to keep its current state and continue
	// processing the next message. The message that caused the fault is
	// dropped.
	Resume Directive = iota

	// Restart tells the child to discard its in-flight work and recover
	// to a clean slate: every child of the faulted Cell is fully stopped,
	// PreRestart is invoked on the old behavior instance, a brand new
	// instance is built from the Factory captured at spawn, and PreStart
	// is invoked on that new instance before the Cell resumes processing.
	// Queued messages in the Cell's own mailbox are preserved; its
	// children and their state are not.
	Restart

	// Stop tells the child to terminate permanently.
	Stop

	// Escalate forwards the fault to the supervisor's own parent, which
	// applies its own strategy (potentially to the whole subtree rooted
	// at the supervisor, not just the original child).
	Escalate
)

// String implements fmt.Stringer.
func (d Directive) String() string {
	switch d {
	case Resume:
		return "resume"
	case Restart:
		return "restart"
	case Stop:
		return "stop"
	case Escalate:
		return "escalate"
	default:
		return fmt.Sprintf("directive(%d)", int(d))
	}
}

// ParseDirective maps the CLI's --supervise flag values onto a Directive.
func ParseDirective(s string) (Directive, error) {
	switch s {
	case "stop":
		return Stop, nil
	case "restart":
		return Restart, nil
	case "resume":
		return Resume, nil
	default:
		return 0, fmt.Errorf("unknown supervision directive %q", s)
	}
}

// Strategy decides the Directive to apply given the error a child's Receive
// hook produced. cause is always non-nil; it is the panic value (wrapped)
// or the error the behavior returned.
type Strategy func(cause error) Directive

// OneForOneStrategy returns a Strategy that always applies directive,
// regardless of the fault, affecting only the faulting child. A Cell spawned
// without WithStrategy uses OneForOneStrategy(Restart). The CLI's --supervise
// flag (see cmd/cellmesh) builds one of these as NodeConfig.GuardianStrategy,
// which handles faults that reach the guardian itself (faults a top-level
// actor escalates); it is not applied to a top-level actor's own faults.
func OneForOneStrategy(directive Directive) Strategy {
	return func(error) Directive { return directive }
}
