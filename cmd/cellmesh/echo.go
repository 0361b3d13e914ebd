package main

import (
	"github.com/cellmesh/cellmesh/internal/actor"
)

// echoBehavior is the runner's built-in demonstration actor: it logs
// whatever it receives and, if the message came from a known sender, Tells
// the same payload straight back. It stands in for whatever application
// Behavior a real embedder of internal/actor would spawn at --name;
// the CLI itself has no notion of "user code" to load, so this is what
// "the runner, a thin collaborator using the core" has to run.
type echoBehavior struct{}

func (echoBehavior) PreStart(ctx actor.Context) error {
	ctx.Log().Infof("echo actor starting at %s", ctx.Self().Path())
	return nil
}

func (echoBehavior) Receive(ctx actor.Context, msg any) error {
	ctx.Log().Infof("echo received %T: %v", msg, msg)

	if sender := ctx.Sender(); sender != nil {
		sender.Send(ctx, msg, ctx.Self())
	}

	return nil
}

func (echoBehavior) PostStop(ctx actor.Context) error {
	ctx.Log().Infof("echo actor stopped at %s", ctx.Self().Path())
	return nil
}

var (
	_ actor.Behavior    = echoBehavior{}
	_ actor.PreStarter  = echoBehavior{}
	_ actor.PostStopper = echoBehavior{}
)
