// Package wsremote implements actor.Transport over a single persistent
// WebSocket connection per peer, for environments where only HTTP egress is
// available (a plain TCP dial, as internal/transport/grpcremote makes, is
// blocked). Each Frame (see internal/actor/frame.go) is sent as one binary
// WebSocket message; the self-describing length prefix inside the frame is
// redundant over WebSocket's own message framing but kept so the same
// bytes work unchanged across every Transport binding.
package wsremote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/cellmesh/cellmesh/internal/actor"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Transport is an actor.Transport backed by one http.Server per Listen call
// upgrading every inbound request to a WebSocket connection.
type Transport struct {
	mu      sync.Mutex
	servers map[string]*http.Server
}

// New returns an empty Transport, ready to Listen and Dial.
func New() *Transport {
	return &Transport{servers: make(map[string]*http.Server)}
}

// Listen starts an HTTP server on addr that upgrades every request to a
// WebSocket connection and hands it to the returned channel as a Conn. The
// server is shut down when ctx is cancelled.
func (t *Transport) Listen(ctx context.Context, addr string) (<-chan actor.Conn, error) {
	accept := make(chan actor.Conn, 16)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		c := &conn{ws: wsConn, remoteAddr: wsConn.RemoteAddr().String()}
		select {
		case accept <- c:
		case <-ctx.Done():
			wsConn.Close()
		}
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	lnErrCh := make(chan error, 1)
	go func() {
		lnErrCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-lnErrCh:
		if err != nil && err != http.ErrServerClosed {
			return nil, fmt.Errorf("wsremote: listen %s: %w", addr, err)
		}
	default:
	}

	t.mu.Lock()
	t.servers[addr] = srv
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		srv.Close()
		close(accept)

		t.mu.Lock()
		delete(t.servers, addr)
		t.mu.Unlock()
	}()

	return accept, nil
}

// Dial opens a WebSocket connection to addr (a bare host:port, turned into
// a ws:// URL).
func (t *Transport) Dial(ctx context.Context, addr string) (actor.Conn, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/"}

	wsConn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("wsremote: dial %s: %w", addr, err)
	}

	return &conn{ws: wsConn, remoteAddr: addr}, nil
}

type conn struct {
	ws         *websocket.Conn
	remoteAddr string

	writeMu sync.Mutex
}

func (c *conn) Send(ctx context.Context, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *conn) Recv(ctx context.Context) ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *conn) Close() error {
	return c.ws.Close()
}

func (c *conn) RemoteAddr() string { return c.remoteAddr }

var _ actor.Transport = (*Transport)(nil)
var _ actor.Conn = (*conn)(nil)
