package actor

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// priorityMailbox is the Cell's mailbox implementation. It satisfies
// Mailbox[cellEnvelope, any] (see interface.go, whose doc comment calls out
// "different mailbox strategies...such as priority queues" as the intended
// extension point) by keeping two separate bounded channels, one for system
// signals and one for user messages, and always draining the system channel
// first. This gives the supervision machinery priority delivery of
// Stop/Restart/Resume/Watch/Unwatch signals even when a user mailbox is
// saturated, matching the system-queue-priority draining spec'd for
// dispatch.
//
// The close/shutdown protocol mirrors ChannelMailbox in channel_mailbox.go:
// an RWMutex guards against sending on a closed channel, a closed atomic.Bool
// provides a fast IsClosed check, and Drain only operates after Close.
type priorityMailbox struct {
	sysCh  chan cellEnvelope
	userCh chan cellEnvelope

	mu        sync.RWMutex
	closed    atomic.Bool
	closeOnce sync.Once

	cellCtx context.Context
}

// newPriorityMailbox creates a priority mailbox bounded at userCapacity user
// messages. The system channel is sized generously (8x) since system
// signals are small, infrequent relative to user traffic, and must never be
// the bottleneck that prevents a Stop from being observed.
func newPriorityMailbox(cellCtx context.Context, userCapacity int) *priorityMailbox {
	if userCapacity <= 0 {
		userCapacity = 1
	}

	return &priorityMailbox{
		sysCh:   make(chan cellEnvelope, userCapacity*8),
		userCh:  make(chan cellEnvelope, userCapacity),
		cellCtx: cellCtx,
	}
}

// Send implements Mailbox. System envelopes always use the (much larger)
// system channel; user envelopes block on the user channel until accepted,
// the caller's context is cancelled, or the cell's own context is cancelled.
func (m *priorityMailbox) Send(ctx context.Context, env cellEnvelope) bool {
	if ctx.Err() != nil || m.cellCtx.Err() != nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	ch := m.userCh
	if env.isSystem() {
		ch = m.sysCh
	}

	select {
	case ch <- env:
		return true
	case <-ctx.Done():
		return false
	case <-m.cellCtx.Done():
		return false
	}
}

// TrySend implements Mailbox.
func (m *priorityMailbox) TrySend(env cellEnvelope) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	ch := m.userCh
	if env.isSystem() {
		ch = m.sysCh
	}

	select {
	case ch <- env:
		return true
	default:
		return false
	}
}

// Receive implements Mailbox. Each iteration prefers a pending system
// envelope over a pending user envelope; only when no system envelope is
// immediately available does it fall back to waiting on either channel.
func (m *priorityMailbox) Receive(ctx context.Context) iter.Seq[cellEnvelope] {
	return func(yield func(cellEnvelope) bool) {
		for {
			if ctx.Err() != nil {
				return
			}

			select {
			case env := <-m.sysCh:
				if !yield(env) {
					return
				}
				continue
			default:
			}

			select {
			case env := <-m.sysCh:
				if !yield(env) {
					return
				}
			case env := <-m.userCh:
				if !yield(env) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close implements Mailbox.
func (m *priorityMailbox) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.closed.Store(true)
		close(m.sysCh)
		close(m.userCh)
	})
}

// IsClosed implements Mailbox.
func (m *priorityMailbox) IsClosed() bool {
	return m.closed.Load()
}

// Drain implements Mailbox, yielding any remaining system envelopes before
// any remaining user envelopes.
func (m *priorityMailbox) Drain() iter.Seq[cellEnvelope] {
	return func(yield func(cellEnvelope) bool) {
		if !m.closed.Load() {
			return
		}

		for env := range m.sysCh {
			if !yield(env) {
				return
			}
		}
		for env := range m.userCh {
			if !yield(env) {
				return
			}
		}
	}
}

var _ Mailbox[cellEnvelope, any] = (*priorityMailbox)(nil)
