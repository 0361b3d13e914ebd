package actorutil

import (
	"context"
	"fmt"

	"github.com/cellmesh/cellmesh/internal/actor"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Request wraps a value sent to a Behavior that expects to reply to a
// one-shot caller spawned by Ask. A Behavior servicing Ask calls type-asserts
// its incoming message to Request[Req] and sends its response directly to
// ReplyTo.
type Request[Req any] struct {
	ReplyTo actor.Ref
	Body    Req
}

// Ask sends body to target and blocks until either a reply of type Resp
// arrives or target terminates before replying, whichever comes first. It
// works around the kernel's fire-and-forget Ref.Send by spawning a
// short-lived reply Cell under node's guardian, watching target from it, and
// resolving once either path completes; the reply Cell then stops itself.
//
// target's Behavior must recognize Request[Req] and Tell its response back
// to the envelope's ReplyTo Ref.
func Ask[Req any, Resp any](
	ctx context.Context,
	node *actor.Node,
	target actor.Ref,
	body Req,
) (Resp, error) {

	var zero Resp

	promise := actor.NewPromise[Resp]()
	behavior := &askReplyBehavior[Resp]{promise: promise, target: target}

	replyRef, err := node.Spawn("", actor.Single(behavior))
	if err != nil {
		return zero, fmt.Errorf("ask: spawn reply cell: %w", err)
	}

	node.Watch(target, replyRef)
	target.Send(ctx, Request[Req]{ReplyTo: replyRef, Body: body}, replyRef)

	result := promise.Future().Await(ctx)
	return result.Unpack()
}

// askReplyBehavior is the reply Cell's Behavior: it expects exactly one
// message, either the application's Resp value or a Terminated signal if
// target died before replying, completes promise, and then stops itself.
type askReplyBehavior[Resp any] struct {
	promise actor.Promise[Resp]
	target  actor.Ref
}

func (b *askReplyBehavior[Resp]) Receive(ctx actor.Context, msg any) error {
	defer func() {
		ctx.Unwatch(b.target)
		ctx.Stop(ctx.Self())
	}()

	if terminated, ok := msg.(actor.Terminated); ok {
		b.promise.Complete(fn.Err[Resp](
			fmt.Errorf("ask: target terminated before replying: %w", terminated.Cause),
		))
		return nil
	}

	resp, ok := msg.(Resp)
	if !ok {
		b.promise.Complete(fn.Err[Resp](
			fmt.Errorf("ask: unexpected reply type %T", msg),
		))
		return nil
	}

	b.promise.Complete(fn.Ok(resp))
	return nil
}
