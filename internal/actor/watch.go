package actor

import (
	"context"
	"sync"
)

// watcherSet tracks the Refs that have asked to be notified when a Cell
// terminates. It is intentionally dumb: it holds no opinion about *why* a
// watch was requested (local or remote, direct or via Node.Watch), it just
// fans out a single Terminated message to everyone registered at the moment
// the watched Cell finishes its shutdown sequence.
//
// Remote watches (a watcher on node B observing a Cell on node A) are
// layered on top of this by the Hub: the Hub registers an internal local Ref
// as the watcher here, and on notification relays the Terminated message
// across the wire to the real remote watcher. Per the resolved open
// question on reconnect semantics, a remote watch does not survive the
// watched peer's connection dropping and recovering: Hub.watchRemote always
// re-registers against the live connection, and a NodeLost in between
// synthesizes its own Terminated (see hub.go) rather than silently
// preserving the old registration.
type watcherSet struct {
	mu       sync.Mutex
	watchers map[Ref]struct{}
}

func newWatcherSet() *watcherSet {
	return &watcherSet{watchers: make(map[Ref]struct{})}
}

func (w *watcherSet) add(watcher Ref) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watchers[watcher] = struct{}{}
}

func (w *watcherSet) remove(watcher Ref) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.watchers, watcher)
}

// notify delivers a Terminated message, as an ordinary user-visible message,
// to every currently registered watcher, then clears the set (a terminated
// Cell has nothing left to notify watchers about a second time).
func (w *watcherSet) notify(who Ref, cause error) {
	w.mu.Lock()
	watchers := make([]Ref, 0, len(w.watchers))
	for ref := range w.watchers {
		watchers = append(watchers, ref)
	}
	w.watchers = make(map[Ref]struct{})
	w.mu.Unlock()

	msg := Terminated{Who: who, Cause: cause}
	for _, watcher := range watchers {
		watcher.Send(context.Background(), msg, who)
	}
}
