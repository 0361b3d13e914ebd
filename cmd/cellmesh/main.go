// Command cellmesh is the runner: a thin collaborator that wires up a Node,
// optionally enables remoting over a chosen Transport, spawns a single
// named actor under the guardian, and keeps the process alive until that
// actor's tree shuts down or a signal arrives. It mirrors the shape of the
// original source's ActorRunner/Wrapper pair: Wrapper watches the spawned
// actor and, depending on --keep-running, either respawns it on Terminated
// or stops the whole runner.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/btcsuite/btclog/v2"
	"github.com/cellmesh/cellmesh/internal/actor"
	"github.com/cellmesh/cellmesh/internal/admin"
	"github.com/cellmesh/cellmesh/internal/build"
	"github.com/cellmesh/cellmesh/internal/transport/grpcremote"
	"github.com/cellmesh/cellmesh/internal/transport/wsremote"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	flagRemoting       string
	flagName           string
	flagSupervise      string
	flagKeepRunning    bool
	flagAdmin          bool
	flagTransport      string
	flagConfig         string
	flagLogDir         string
	flagMaxLogFiles    int
	flagMaxLogFileSize int
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cellmesh",
		Short: "Run a cellmesh node hosting one supervised actor tree",
		RunE:  runRoot,
	}

	flags := cmd.Flags()
	flags.StringVar(&flagRemoting, "remoting", "", "host:port to bind the Hub to (empty disables remoting)")
	flags.StringVar(&flagName, "name", "/echo", "path of the top-level actor to spawn")
	flags.StringVar(&flagSupervise, "supervise", "restart", "guardian directive on fault: stop, restart, or resume")
	flags.BoolVar(&flagKeepRunning, "keep-running", false, "respawn the named actor if it terminates, instead of exiting")
	flags.BoolVar(&flagAdmin, "admin", false, "serve the read-only admin MCP tools over stdio")
	flags.StringVar(&flagTransport, "transport", "grpc", "remoting transport when --remoting is set: grpc or ws")
	flags.StringVar(&flagConfig, "config", "", "path to a YAML config file; flags override its values")
	flags.StringVar(&flagLogDir, "log-dir", "", "directory for rotating log files (empty disables file logging)")
	flags.IntVar(&flagMaxLogFiles, "max-log-files", build.DefaultMaxLogFiles, "maximum number of rotated log files to keep")
	flags.IntVar(&flagMaxLogFileSize, "max-log-file-size", build.DefaultMaxLogFileSize, "maximum log file size in MB before rotation")

	return cmd
}

// applyFileConfig fills in any flag the user didn't explicitly pass on the
// command line from cfg.
func applyFileConfig(cmd *cobra.Command, cfg *fileConfig) {
	set := cmd.Flags().Changed

	if !set("remoting") && cfg.Remoting != "" {
		flagRemoting = cfg.Remoting
	}
	if !set("name") && cfg.Name != "" {
		flagName = cfg.Name
	}
	if !set("supervise") && cfg.Supervise != "" {
		flagSupervise = cfg.Supervise
	}
	if !set("keep-running") && cfg.KeepRunning {
		flagKeepRunning = cfg.KeepRunning
	}
	if !set("admin") && cfg.Admin {
		flagAdmin = cfg.Admin
	}
	if !set("transport") && cfg.Transport != "" {
		flagTransport = cfg.Transport
	}
	if !set("log-dir") && cfg.LogDir != "" {
		flagLogDir = cfg.LogDir
	}
	if !set("max-log-files") && cfg.MaxLogFiles != 0 {
		flagMaxLogFiles = cfg.MaxLogFiles
	}
	if !set("max-log-file-size") && cfg.MaxLogFileSize != 0 {
		flagMaxLogFileSize = cfg.MaxLogFileSize
	}
}

func runRoot(cmd *cobra.Command, _ []string) error {
	if flagConfig != "" {
		cfg, err := loadFileConfig(flagConfig)
		if err != nil {
			return err
		}
		applyFileConfig(cmd, cfg)
	}

	logger, closeLog, err := setupLogging()
	if err != nil {
		return err
	}
	defer closeLog()
	actor.UseLogger(logger)

	directive, err := actor.ParseDirective(flagSupervise)
	if err != nil {
		return fmt.Errorf("--supervise: %w", err)
	}

	nodeCfg := actor.NodeConfig{
		GuardianStrategy: actor.OneForOneStrategy(directive),
	}

	if flagRemoting != "" {
		nodeID, err := actor.ParseNodeID(flagRemoting)
		if err != nil {
			return fmt.Errorf("--remoting: %w", err)
		}
		nodeCfg.ID = nodeID
	}

	node := actor.NewNode(nodeCfg)

	if flagRemoting != "" {
		tr, err := buildTransport(flagTransport)
		if err != nil {
			return err
		}

		hub, err := node.EnableRemoting(tr)
		if err != nil {
			return fmt.Errorf("enable remoting: %w", err)
		}

		if err := hub.Listen(flagRemoting); err != nil {
			return fmt.Errorf("listen on %s: %w", flagRemoting, err)
		}
	}

	path, err := actor.ParsePath(flagName)
	if err != nil {
		return fmt.Errorf("--name: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("received %v, shutting down", sig)
		cancel()
	}()

	var escalated atomic.Bool
	subID := node.Events().Subscribe(func(ev actor.Event) {
		stopped, ok := ev.(actor.Stopped)
		if !ok || stopped.Cause == nil {
			return
		}
		if stopped.Path.Local().String() == "/_runner" {
			escalated.Store(true)
			cancel()
		}
	})
	defer node.Events().Unsubscribe(subID)

	_, err = node.Spawn("_runner", func() actor.Behavior {
		return &wrapperBehavior{
			spawnAt:     path.Name(),
			keepRunning: flagKeepRunning,
			onFatal:     cancel,
		}
	})
	if err != nil {
		return fmt.Errorf("spawn runner: %w", err)
	}

	if flagAdmin {
		adminSrv := admin.NewServer(node)
		defer adminSrv.Close()

		go func() {
			if err := adminSrv.Run(ctx, &sdkmcp.StdioTransport{}); err != nil {
				logger.Errorf("admin server stopped: %v", err)
			}
		}()
	}

	<-ctx.Done()

	if err := node.Shutdown(context.Background()); err != nil {
		return err
	}

	if escalated.Load() {
		return fmt.Errorf("guardian escalation: runner actor faulted past its supervisor")
	}

	return nil
}

func buildTransport(name string) (actor.Transport, error) {
	switch name {
	case "grpc", "":
		return grpcremote.New(), nil
	case "ws":
		return wsremote.New(), nil
	default:
		return nil, fmt.Errorf("unknown --transport %q (want grpc or ws)", name)
	}
}

func setupLogging() (btclog.Logger, func(), error) {
	var handlers []btclog.Handler
	handlers = append(handlers, btclog.NewDefaultHandler(os.Stderr))

	closeFn := func() {}

	if flagLogDir != "" {
		rotator := build.NewRotatingLogWriter()
		err := rotator.InitLogRotator(&build.LogRotatorConfig{
			LogDir:         flagLogDir,
			MaxLogFiles:    flagMaxLogFiles,
			MaxLogFileSize: flagMaxLogFileSize,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init log rotator: %w", err)
		}
		handlers = append(handlers, btclog.NewDefaultHandler(rotator))
		closeFn = func() { rotator.Close() }
	}

	combined := build.NewHandlerSet(handlers...)
	return btclog.NewSLogger(combined), closeFn, nil
}
