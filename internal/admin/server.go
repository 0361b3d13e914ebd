// Package admin exposes a running Node's supervision tree and dead-letter
// history as a read-only set of MCP tools, grounded on the teacher's own
// mcp.Server/mcp.AddTool wiring (there servicing mail operations; here
// servicing introspection only — nothing in this package can Tell, Stop, or
// otherwise mutate the tree it reports on).
package admin

import (
	"context"
	"fmt"
	"sync"

	"github.com/cellmesh/cellmesh/internal/actor"
	"github.com/cellmesh/cellmesh/internal/actorutil"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps an mcp.Server bound to a single Node, plus a rolling buffer
// of dead letters accumulated from the Node's event bus (the bus itself is
// fire-and-forget to its subscribers; retaining history is this package's
// job, not DeadLetterOffice's, per its own doc comment).
type Server struct {
	server *mcp.Server
	node   *actor.Node

	mu          sync.Mutex
	deadLetters []DeadLetterRecord
	maxRecords  int

	// recorders fans incoming dead-letter events out across a small pool
	// of workers, so a burst of faults never serializes behind a single
	// append-under-mutex on the event bus's own dispatch goroutine.
	recorders *actorutil.Pool[recordJob, any]

	subID actor.SubscriptionID
}

const defaultMaxRecords = 256

const recorderPoolSize = 4

// recordJob carries one DeadLetterRecord to a recorderBehavior worker.
type recordJob struct {
	actor.BaseMessage

	record DeadLetterRecord
}

// MessageType implements actor.Message.
func (recordJob) MessageType() string { return "admin.recordJob" }

// recorderBehavior appends the record it's handed onto its owning Server's
// rolling buffer. Every pool member shares the same Server, so the buffer
// and its cap stay correct regardless of which worker handles a given
// dead letter.
type recorderBehavior struct {
	server *Server
}

func (b *recorderBehavior) Receive(ctx context.Context, job recordJob) fn.Result[any] {
	b.server.mu.Lock()
	defer b.server.mu.Unlock()

	b.server.deadLetters = append(b.server.deadLetters, job.record)
	if over := len(b.server.deadLetters) - b.server.maxRecords; over > 0 {
		b.server.deadLetters = b.server.deadLetters[over:]
	}

	return fn.Ok[any](nil)
}

var _ actor.ActorBehavior[recordJob, any] = (*recorderBehavior)(nil)

// NewServer creates an admin MCP server bound to node. Call Close when done
// to unsubscribe from node's event bus.
func NewServer(node *actor.Node) *Server {
	s := &Server{
		node:       node,
		maxRecords: defaultMaxRecords,
	}

	s.recorders = actorutil.NewPool(actorutil.PoolConfig[recordJob, any]{
		ID:   "admin-dead-letter-recorder",
		Size: recorderPoolSize,
		Factory: func(idx int) actor.ActorBehavior[recordJob, any] {
			return &recorderBehavior{server: s}
		},
	})

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "cellmesh-admin",
		Version: "0.1.0",
	}, nil)

	s.subID = node.Events().Subscribe(s.onEvent)
	s.registerTools()

	return s
}

// Run starts the MCP server on transport, blocking until ctx is cancelled or
// the transport closes.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// Close unsubscribes from the Node's event bus and stops the recorder pool.
// The underlying Node is otherwise untouched.
func (s *Server) Close() {
	s.node.Events().Unsubscribe(s.subID)
	s.recorders.Stop()
}

// onEvent runs on the Node's event-bus dispatch goroutine, so it must not
// block: recording is handed off to the recorder pool rather than done
// inline here.
func (s *Server) onEvent(ev actor.Event) {
	letter, ok := ev.(actor.DeadLetter)
	if !ok {
		return
	}

	record := DeadLetterRecord{
		Path:    letter.Path.String(),
		Reason:  letter.Reason,
		Sender:  refPath(letter.Sender),
		Message: fmt.Sprintf("%v", letter.Message),
	}

	s.recorders.Tell(context.Background(), recordJob{record: record})
}

func refPath(r actor.Ref) string {
	if r == nil {
		return ""
	}
	return r.Path().String()
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_cells",
		Description: "List every actor currently alive on this node, flattened, with its lifecycle state",
	}, s.handleListCells)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "tree",
		Description: "Return the node's supervision tree rooted at the guardian",
	}, s.handleTree)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "dead_letters",
		Description: "Return the most recent undeliverable messages recorded on this node",
	}, s.handleDeadLetters)
}
