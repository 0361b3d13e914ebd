package main

import "github.com/cellmesh/cellmesh/internal/actor"

// wrapperBehavior mirrors the original source's Wrapper actor: it spawns
// the named demonstration actor as its own child, watches it, and either
// respawns it on Terminated (--keep-running) or triggers shutdown.
// Unlike the original, there is no initial message to forward — the CLI
// has no notion of a caller-supplied payload, only a named actor to host.
type wrapperBehavior struct {
	spawnAt     string
	keepRunning bool
	onFatal     func()

	child actor.Ref
}

func (w *wrapperBehavior) PreStart(ctx actor.Context) error {
	return w.spawnChild(ctx)
}

func (w *wrapperBehavior) spawnChild(ctx actor.Context) error {
	ref, err := ctx.Spawn(w.spawnAt, func() actor.Behavior { return echoBehavior{} })
	if err != nil {
		return err
	}

	ctx.Watch(ref)
	w.child = ref

	return nil
}

func (w *wrapperBehavior) Receive(ctx actor.Context, msg any) error {
	terminated, ok := msg.(actor.Terminated)
	if !ok {
		if w.child != nil {
			w.child.Send(ctx, msg, ctx.Self())
		}
		return nil
	}

	ctx.Log().Infof("hosted actor %s terminated: %v", terminated.Who.Path(), terminated.Cause)

	if w.keepRunning {
		return w.spawnChild(ctx)
	}

	w.onFatal()
	return nil
}

var (
	_ actor.Behavior   = (*wrapperBehavior)(nil)
	_ actor.PreStarter = (*wrapperBehavior)(nil)
)
