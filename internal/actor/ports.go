package actor

import (
	"context"
	"time"
)

// Clock abstracts wall-clock access so the Hub's heartbeat/liveness timers
// (see hub.go) can be driven deterministically in tests instead of racing
// real time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc schedules f to run after d elapses, returning a Timer
	// that can cancel the scheduled call if it hasn't fired yet.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the cancellation handle returned by Clock.AfterFunc.
type Timer interface {
	// Stop prevents the timer from firing, if it hasn't already. It
	// returns true if the stop was effective.
	Stop() bool
}

// realClock is the default Clock, backed directly by the time package.
type realClock struct{}

// NewRealClock returns the default, wall-clock-backed Clock.
func NewRealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Executor abstracts "run this function concurrently" so the scheduler
// adapter binding Cell goroutines to the runtime can be swapped — e.g. for
// a bounded worker-pool executor in a process hosting many thousands of
// Cells, versus the default goroutine-per-Cell executor appropriate for
// most deployments.
type Executor interface {
	// Go runs fn concurrently with the caller. The default
	// implementation is simply `go fn()`.
	Go(fn func())
}

// goroutineExecutor is the default Executor: one goroutine per task.
type goroutineExecutor struct{}

// NewGoroutineExecutor returns the default, unbounded goroutine-per-task
// Executor.
func NewGoroutineExecutor() Executor { return goroutineExecutor{} }

func (goroutineExecutor) Go(fn func()) { go fn() }

// Transport is the port the Hub (see hub.go) consumes to exchange framed
// bytes with remote peers. Concrete bindings live under
// internal/transport/... (in-memory, gRPC, WebSocket); the Hub itself never
// depends on a specific networking library.
type Transport interface {
	// Listen begins accepting inbound connections at addr. The returned
	// channel yields one Conn per accepted connection and is closed when
	// the listener stops (Close or ctx cancellation).
	Listen(ctx context.Context, addr string) (<-chan Conn, error)

	// Dial establishes an outbound connection to addr.
	Dial(ctx context.Context, addr string) (Conn, error)
}

// Conn is a single bidirectional, message-framed connection to a peer. A
// Transport implementation is responsible only for carrying opaque byte
// frames; the Hub is responsible for interpreting them per the wire format.
type Conn interface {
	// Send writes one frame. Implementations must be safe for
	// concurrent use with Recv but not necessarily with concurrent Send.
	Send(ctx context.Context, frame []byte) error

	// Recv blocks until the next frame arrives, the connection closes,
	// or ctx is cancelled.
	Recv(ctx context.Context) ([]byte, error)

	// Close tears down the connection.
	Close() error

	// RemoteAddr identifies the peer, for logging and for the Hub's peer
	// state machine.
	RemoteAddr() string
}
