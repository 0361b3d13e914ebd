package actor

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"sync"
	"time"
)

// PeerState is a remote peer connection's position in the Hub's liveness
// state machine.
type PeerState int32

const (
	PeerConnecting PeerState = iota
	PeerConnected
	PeerUnreachable
)

func (s PeerState) String() string {
	switch s {
	case PeerConnecting:
		return "connecting"
	case PeerConnected:
		return "connected"
	case PeerUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

const (
	heartbeatInterval = 5 * time.Second
	heartbeatTimeout  = 15 * time.Second
	outboundCapacity  = 256
)

// remoteSignal is the gob payload of a Kind=system Frame, used to drive
// remote watch registration and termination notification across the wire.
type remoteSignal struct {
	Op    string // "watch", "unwatch", or "terminated"
	Path  string
	Cause string
}

func encodeSignal(s remoteSignal) []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

func decodeSignal(raw []byte) (remoteSignal, error) {
	var s remoteSignal
	err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&s)
	return s, err
}

// peer tracks one remote node's connection, outbound buffer, liveness
// state, and the set of local watchers waiting on remote paths hosted by
// that peer.
type peer struct {
	node NodeID

	mu    sync.Mutex
	conn  Conn
	state PeerState

	outbound chan Frame

	remoteWatchers map[string][]Ref // keyed by local-path string

	lastPong  time.Time
	heartbeat Timer
}

// Hub implements the remoting module: it owns one connection per peer node,
// drives a ping/pong liveness check on each, and delivers Frames to/from the
// local Node. Delivery is at-most-once: a Frame that can't currently be
// written (peer unreachable, outbound buffer full) is dropped to the
// dead-letter office rather than retried, matching the Non-goal that
// excludes durable/exactly-once cross-node delivery.
type Hub struct {
	node      *Node
	transport Transport
	clock     Clock

	mu    sync.Mutex
	peers map[NodeID]*peer

	ctx    context.Context
	cancel context.CancelFunc

	stopOnce sync.Once
}

// NewHub creates a Hub bound to transport for sending and clock for driving
// heartbeat timers. Call Listen to begin accepting inbound connections;
// Start itself does nothing.
func NewHub(node *Node, transport Transport, clock Clock) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		node:      node,
		transport: transport,
		clock:     clock,
		peers:     make(map[NodeID]*peer),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start is a no-op placeholder for symmetry with Cell/Node's Start/Stop
// lifecycle; peer connections are established lazily on first send or
// accepted inbound via Listen.
func (h *Hub) Start() {}

// Listen begins accepting inbound peer connections at addr (normally the
// Node's own NodeID, since NodeID doubles as a dial address in the
// host:port form).
func (h *Hub) Listen(addr string) error {
	conns, err := h.transport.Listen(h.ctx, addr)
	if err != nil {
		return fmt.Errorf("hub listen: %w", err)
	}

	go func() {
		for conn := range conns {
			h.adopt(conn, "")
		}
	}()

	return nil
}

// Stop tears down every peer connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()

		h.mu.Lock()
		defer h.mu.Unlock()
		for _, p := range h.peers {
			p.mu.Lock()
			if p.heartbeat != nil {
				p.heartbeat.Stop()
			}
			if p.conn != nil {
				_ = p.conn.Close()
			}
			p.mu.Unlock()
		}
	})
}

// adopt registers conn as the connection for node (dialed) or for whatever
// NodeID the peer announces on its first Ping (accepted inbound, where node
// is initially unknown).
func (h *Hub) adopt(conn Conn, node NodeID) *peer {
	p := &peer{
		conn:           conn,
		node:           node,
		state:          PeerConnecting,
		outbound:       make(chan Frame, outboundCapacity),
		remoteWatchers: make(map[string][]Ref),
	}

	if node != "" {
		h.mu.Lock()
		h.peers[node] = p
		h.mu.Unlock()
	}

	go h.writeLoop(p)
	go h.readLoop(p)
	h.arm(p)

	return p
}

func (h *Hub) arm(p *peer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.heartbeat = h.clock.AfterFunc(heartbeatInterval, func() { h.tick(p) })
}

func (h *Hub) tick(p *peer) {
	p.mu.Lock()
	lastPong := p.lastPong
	node := p.node
	p.mu.Unlock()

	if node != "" && !lastPong.IsZero() && h.clock.Now().Sub(lastPong) > heartbeatTimeout {
		h.declareLost(p)
		return
	}

	h.enqueue(p, Frame{Kind: frameKindPing, Sender: h.node.id})
	h.arm(p)
}

func (h *Hub) declareLost(p *peer) {
	p.mu.Lock()
	p.state = PeerUnreachable
	node := p.node
	watchers := p.remoteWatchers
	p.remoteWatchers = make(map[string][]Ref)
	p.mu.Unlock()

	h.node.events.Publish(PeerDown{Node: node})

	for pathStr, refs := range watchers {
		local, _ := ParsePath(pathStr)
		who := &remoteRef{path: local.WithNode(node), hub: h}
		for _, watcher := range refs {
			watcher.Send(context.Background(), Terminated{Who: who, Cause: ErrNodeLost(node)}, who)
		}
	}

	h.mu.Lock()
	delete(h.peers, node)
	h.mu.Unlock()
}

func (h *Hub) writeLoop(p *peer) {
	for {
		select {
		case <-h.ctx.Done():
			return
		case frame, ok := <-p.outbound:
			if !ok {
				return
			}
			p.mu.Lock()
			conn := p.conn
			p.mu.Unlock()
			if conn == nil {
				continue
			}
			if err := conn.Send(h.ctx, encodeFrame(frame)); err != nil {
				log.WarnS(h.ctx, "hub write failed", err, "peer", p.node)
				h.node.deadLetters.tell(h.ctx, frame.Recipient, frame.Payload, nil, err.Error())
			}
		}
	}
}

func (h *Hub) readLoop(p *peer) {
	for {
		raw, err := p.conn.Recv(h.ctx)
		if err != nil {
			h.declareLost(p)
			return
		}

		frame, err := decodeFrame(raw)
		if err != nil {
			log.WarnS(h.ctx, "hub bad frame", err, "peer", p.conn.RemoteAddr())
			continue
		}

		h.handleFrame(p, frame)
	}
}

func (h *Hub) handleFrame(p *peer, frame Frame) {
	if p.node == "" && frame.Sender != "" {
		p.mu.Lock()
		p.node = frame.Sender
		p.mu.Unlock()

		h.mu.Lock()
		h.peers[frame.Sender] = p
		h.mu.Unlock()
	}

	switch frame.Kind {
	case frameKindPing:
		h.enqueue(p, Frame{Kind: frameKindPong, Sender: h.node.id})

	case frameKindPong:
		p.mu.Lock()
		wasUnreachable := p.state != PeerConnected
		p.lastPong = h.clock.Now()
		p.state = PeerConnected
		p.mu.Unlock()
		if wasUnreachable {
			h.node.events.Publish(PeerUp{Node: p.node})
		}

	case frameKindUser:
		h.deliverInbound(p, frame)

	case frameKindSystem:
		h.handleSignalFrame(p, frame)
	}
}

func (h *Hub) deliverInbound(p *peer, frame Frame) {
	payload, err := decodePayload(frame.Payload)
	if err != nil {
		log.WarnS(h.ctx, "hub bad payload", err, "peer", p.node)
		return
	}

	ref, err := h.node.Resolve(frame.Recipient)
	if err != nil {
		h.node.deadLetters.tell(h.ctx, frame.Recipient, payload, nil, "no such local actor")
		return
	}

	sender := Ref(&remoteRef{path: Path{Node: frame.Sender}, hub: h})
	ref.Send(h.ctx, payload, sender)
}

func (h *Hub) handleSignalFrame(p *peer, frame Frame) {
	sig, err := decodeSignal(frame.Payload)
	if err != nil {
		return
	}

	switch sig.Op {
	case "watch":
		local, err := ParsePath(sig.Path)
		if err != nil {
			return
		}
		cell, ok := h.node.lookupLocal(local)
		if !ok {
			return
		}
		watcherRef := &remoteWatchProxy{hub: h, peer: p, path: local}
		cell.addWatcher(watcherRef)

	case "terminated":
		p.mu.Lock()
		refs := p.remoteWatchers[sig.Path]
		delete(p.remoteWatchers, sig.Path)
		p.mu.Unlock()

		local, _ := ParsePath(sig.Path)
		who := &remoteRef{path: local.WithNode(p.node), hub: h}
		var cause error
		if sig.Cause != "" {
			cause = fmt.Errorf("%s", sig.Cause)
		}
		for _, watcher := range refs {
			watcher.Send(context.Background(), Terminated{Who: who, Cause: cause}, who)
		}
	}
}

// remoteWatchProxy is registered as a local watcher on a Cell when a remote
// peer asks to watch it; when notified, it relays a "terminated" system
// frame back across the wire instead of delivering a local message.
type remoteWatchProxy struct {
	hub  *Hub
	peer *peer
	path Path
}

func (p *remoteWatchProxy) Path() Path                               { return p.path }
func (p *remoteWatchProxy) watch(Ref)                                {}
func (p *remoteWatchProxy) unwatch(Ref)                              {}
func (p *remoteWatchProxy) Send(ctx context.Context, msg any, _ Ref) {
	terminated, ok := msg.(Terminated)
	if !ok {
		return
	}
	cause := ""
	if terminated.Cause != nil {
		cause = terminated.Cause.Error()
	}
	p.hub.enqueue(p.peer, Frame{
		Kind:    frameKindSystem,
		Sender:  p.hub.node.id,
		Payload: encodeSignal(remoteSignal{Op: "terminated", Path: p.path.Local().String(), Cause: cause}),
	})
}

var _ Ref = (*remoteWatchProxy)(nil)

// getOrDialPeer returns the existing peer for node, or dials it fresh since
// NodeID doubles as a transport dial address in host:port form.
func (h *Hub) getOrDialPeer(node NodeID) (*peer, error) {
	h.mu.Lock()
	p, ok := h.peers[node]
	h.mu.Unlock()
	if ok {
		return p, nil
	}

	conn, err := h.transport.Dial(h.ctx, string(node))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", node, err)
	}

	p = h.adopt(conn, node)
	h.enqueue(p, Frame{Kind: frameKindPing, Sender: h.node.id})

	return p, nil
}

func (h *Hub) enqueue(p *peer, frame Frame) {
	select {
	case p.outbound <- frame:
	default:
		h.node.deadLetters.tell(h.ctx, frame.Recipient, frame.Payload, nil, "outbound buffer full")
	}
}

// sendRemote is the Hub half of remoteRef.Send.
func (h *Hub) sendRemote(ctx context.Context, path Path, msg any, sender Ref) {
	p, err := h.getOrDialPeer(path.Node)
	if err != nil {
		h.node.deadLetters.tell(ctx, path, msg, sender, err.Error())
		return
	}

	payload, err := encodePayload(msg)
	if err != nil {
		h.node.deadLetters.tell(ctx, path, msg, sender, err.Error())
		return
	}

	h.enqueue(p, Frame{
		Kind:      frameKindUser,
		Sender:    h.node.id,
		Recipient: path,
		Payload:   payload,
	})
}

// watchRemote registers watcher with the Hub so it is notified (via a
// relayed Terminated message) when the actor at path, hosted on a remote
// peer, terminates. Per the resolved open question on reconnect semantics,
// this registration does not survive the peer connection dropping: a
// NodeLost synthesizes its own Terminated and clears the registration (see
// declareLost), so a caller that wants to keep watching after reconnection
// must call Watch again.
func (h *Hub) watchRemote(path Path, watcher Ref) {
	p, err := h.getOrDialPeer(path.Node)
	if err != nil {
		watcher.Send(context.Background(), Terminated{
			Who: &remoteRef{path: path, hub: h}, Cause: ErrNodeLost(path.Node),
		}, nil)
		return
	}

	key := path.Local().String()

	p.mu.Lock()
	p.remoteWatchers[key] = append(p.remoteWatchers[key], watcher)
	p.mu.Unlock()

	h.enqueue(p, Frame{
		Kind:   frameKindSystem,
		Sender: h.node.id,
		Payload: encodeSignal(remoteSignal{
			Op: "watch", Path: key,
		}),
	})
}

func (h *Hub) unwatchRemote(path Path, watcher Ref) {
	h.mu.Lock()
	p, ok := h.peers[path.Node]
	h.mu.Unlock()
	if !ok {
		return
	}

	key := path.Local().String()

	p.mu.Lock()
	refs := p.remoteWatchers[key]
	filtered := refs[:0]
	for _, r := range refs {
		if r != watcher {
			filtered = append(filtered, r)
		}
	}
	p.remoteWatchers[key] = filtered
	p.mu.Unlock()

	h.enqueue(p, Frame{
		Kind:    frameKindSystem,
		Sender:  h.node.id,
		Payload: encodeSignal(remoteSignal{Op: "unwatch", Path: key}),
	})
}
