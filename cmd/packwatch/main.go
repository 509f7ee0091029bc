package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/packwatch/internal/config"
	"git.home.luguber.info/inful/packwatch/internal/daemon"
	ferrors "git.home.luguber.info/inful/packwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/packwatch/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"packwatch.yaml"`
	Project string `short:"p" help:"Project directory (used when no config file exists)" default:"."`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Daemon struct {
	} `cmd:"" help:"Watch the project and reconcile its dependency state"`

	Status struct {
		Addr string `help:"Daemon API address" default:""`
	} `cmd:"" help:"Show the running daemon's status"`

	Context struct {
		Addr string `help:"Daemon API address" default:""`
	} `cmd:"" help:"Show the dependency-management context for the project"`

	Actions struct {
		Addr string `help:"Daemon API address" default:""`
	} `cmd:"" help:"List pending snapshot/restore/clean actions"`

	Bootstrap struct {
		Enter bool `help:"Activate management mode after initializing"`
	} `cmd:"" help:"Place the project under dependency management"`

	Install struct {
	} `cmd:"" help:"Install the dependency manager package"`

	Version struct {
	} `cmd:"" help:"Print version information"`
}

func main() {
	kctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	errAdapter := ferrors.NewCLIErrorAdapter(CLI.Verbose, logger)

	if kctx.Command() == "version" {
		fmt.Printf("packwatch %s (commit %s, built %s)\n",
			version.Version, version.GitCommit, version.BuildTime)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		errAdapter.HandleError(err)
	}

	switch kctx.Command() {
	case "daemon":
		errAdapter.HandleError(runDaemon(cfg, logger))
	case "status":
		errAdapter.HandleError(runStatus(cfg, CLI.Status.Addr))
	case "context":
		errAdapter.HandleError(runContext(cfg, CLI.Context.Addr))
	case "actions":
		errAdapter.HandleError(runActions(cfg, CLI.Actions.Addr))
	case "bootstrap":
		errAdapter.HandleError(runBootstrap(cfg, CLI.Bootstrap.Enter, logger))
	case "install":
		errAdapter.HandleError(runInstall(cfg, logger))
	}
}

// loadConfig reads the config file when present and otherwise falls back
// to defaults rooted at the --project directory.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(CLI.Config); err == nil {
		return config.Load(CLI.Config)
	}
	dir, err := os.Getwd()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to resolve working directory").Build()
	}
	if CLI.Project != "." && CLI.Project != "" {
		dir = CLI.Project
	}
	return config.Default(dir), nil
}

func runDaemon(cfg *config.Config, logger *slog.Logger) error {
	svc, err := daemon.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return svc.Run(ctx)
}
