// Package grpcremote implements actor.Transport over a hand-written
// bidirectional gRPC streaming service. There is no .proto file behind it:
// the wire format in internal/actor/frame.go is already self-describing
// (a 1-byte kind, a length prefix, and NUL-terminated addressing), so the
// service registers a literal grpc.ServiceDesc with a single streaming
// method and a codec that skips protobuf marshaling entirely, passing Frame
// bytes through verbatim. This is the network-crossing Transport binding;
// internal/transport/inmem is its in-process sibling used in tests.
package grpcremote

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/cellmesh/cellmesh/internal/actor"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/peer"
)

const (
	serviceName = "cellmesh.Hub"
	methodName  = "/cellmesh.Hub/Frames"
	codecName   = "cellmesh-raw"
)

func init() {
	encoding.RegisterCodec(rawCodec{})
}

// rawCodec passes already-encoded Frame bytes straight through, bypassing
// protobuf marshaling. It is registered globally under codecName and
// selected per call via grpc.CallContentSubtype.
type rawCodec struct{}

func (rawCodec) Name() string { return codecName }

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	b, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("grpcremote: unsupported message type %T", v)
	}
	return *b, nil
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("grpcremote: unsupported message type %T", v)
	}
	out := make([]byte, len(data))
	copy(out, data)
	*b = out
	return nil
}

// Transport is an actor.Transport backed by one gRPC server per Listen
// call and one gRPC client connection per Dial call.
type Transport struct {
	mu      sync.Mutex
	servers map[string]*grpc.Server
}

// New returns an empty Transport, ready to Listen and Dial.
func New() *Transport {
	return &Transport{servers: make(map[string]*grpc.Server)}
}

// Listen starts a gRPC server on addr and returns the channel accepted
// streams arrive on as Conns. The server is stopped and the channel closed
// when ctx is cancelled.
func (t *Transport) Listen(ctx context.Context, addr string) (<-chan actor.Conn, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpcremote: listen %s: %w", addr, err)
	}

	accept := make(chan actor.Conn, 16)
	srv := grpc.NewServer()

	desc := &grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*any)(nil),
		Streams: []grpc.StreamDesc{
			{
				StreamName:    "Frames",
				Handler:       framesHandler(accept),
				ServerStreams: true,
				ClientStreams: true,
			},
		},
		Metadata: "cellmesh/hub.proto",
	}
	srv.RegisterService(desc, nil)

	t.mu.Lock()
	t.servers[addr] = srv
	t.mu.Unlock()

	go func() {
		_ = srv.Serve(lis)
	}()

	go func() {
		<-ctx.Done()
		srv.Stop()
		close(accept)

		t.mu.Lock()
		delete(t.servers, addr)
		t.mu.Unlock()
	}()

	return accept, nil
}

// framesHandler adapts an accepted gRPC stream into a Conn and hands it to
// accept, then blocks until the Conn is closed so gRPC keeps the stream
// open for its lifetime.
func framesHandler(accept chan<- actor.Conn) func(any, grpc.ServerStream) error {
	return func(_ any, stream grpc.ServerStream) error {
		remote := "unknown"
		if p, ok := peer.FromContext(stream.Context()); ok {
			remote = p.Addr.String()
		}

		c := &conn{stream: stream, remoteAddr: remote, done: make(chan struct{})}

		select {
		case accept <- c:
		case <-stream.Context().Done():
			return stream.Context().Err()
		}

		<-c.done
		return nil
	}
}

// Dial opens a new bidirectional stream to addr.
func (t *Transport) Dial(ctx context.Context, addr string) (actor.Conn, error) {
	cc, err := grpc.NewClient(
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("grpcremote: dial %s: %w", addr, err)
	}

	stream, err := cc.NewStream(
		ctx,
		&grpc.StreamDesc{StreamName: "Frames", ServerStreams: true, ClientStreams: true},
		methodName,
		grpc.CallContentSubtype(codecName),
	)
	if err != nil {
		cc.Close()
		return nil, fmt.Errorf("grpcremote: open stream to %s: %w", addr, err)
	}

	return &conn{stream: stream, clientConn: cc, remoteAddr: addr}, nil
}

// rawStream is the subset of grpc.ClientStream and grpc.ServerStream conn
// needs; both satisfy it structurally without an explicit adapter.
type rawStream interface {
	SendMsg(m any) error
	RecvMsg(m any) error
}

type conn struct {
	stream     rawStream
	clientConn *grpc.ClientConn
	remoteAddr string

	done      chan struct{}
	closeOnce sync.Once
}

func (c *conn) Send(ctx context.Context, frame []byte) error {
	return c.stream.SendMsg(&frame)
}

func (c *conn) Recv(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := c.stream.RecvMsg(&buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		if c.done != nil {
			close(c.done)
		}
		if c.clientConn != nil {
			c.clientConn.Close()
		}
	})
	return nil
}

func (c *conn) RemoteAddr() string { return c.remoteAddr }

var _ actor.Transport = (*Transport)(nil)
var _ actor.Conn = (*conn)(nil)
