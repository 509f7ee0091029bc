package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"git.home.luguber.info/inful/packwatch/internal/config"
	ferrors "git.home.luguber.info/inful/packwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/packwatch/internal/interp"
)

// apiGet fetches a JSON document from the running daemon and pretty-prints
// it to stdout.
func apiGet(addr, path string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get("http://" + addr + path)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "daemon not reachable").
			WithContext("addr", addr).
			Build()
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to read daemon response").Build()
	}
	if resp.StatusCode != http.StatusOK {
		return ferrors.DaemonError("daemon returned an error").
			WithContext("status", resp.Status).
			WithContext("body", string(body)).
			Build()
	}

	var pretty any
	if err := json.Unmarshal(body, &pretty); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "daemon returned malformed JSON").Build()
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to render response").Build()
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}

func resolveAddr(cfg *config.Config, override string) string {
	if override != "" {
		return override
	}
	return cfg.Daemon.ListenAddr
}

func runStatus(cfg *config.Config, addr string) error {
	return apiGet(resolveAddr(cfg, addr), "/api/status")
}

func runContext(cfg *config.Config, addr string) error {
	return apiGet(resolveAddr(cfg, addr), "/api/context")
}

func runActions(cfg *config.Config, addr string) error {
	return apiGet(resolveAddr(cfg, addr), "/api/actions")
}

// runBootstrap and runInstall invoke the manager directly rather than
// through the daemon, so they work before a daemon has ever been started.
func runBootstrap(cfg *config.Config, enter bool, logger *slog.Logger) error {
	runner := interp.NewExecRunner(interp.ExecRunnerConfig{
		Binary:       cfg.Interp.Binary,
		QueryTimeout: cfg.QueryTimeoutDuration(),
	})
	logger.Info("bootstrapping project", "project", cfg.Project.Dir)
	if err := runner.Bootstrap(context.Background(), cfg.Project.Dir, enter); err != nil {
		return err
	}
	logger.Info("project is now under dependency management")
	return nil
}

func runInstall(cfg *config.Config, logger *slog.Logger) error {
	runner := interp.NewExecRunner(interp.ExecRunnerConfig{
		Binary:       cfg.Interp.Binary,
		QueryTimeout: cfg.QueryTimeoutDuration(),
	})
	logger.Info("installing dependency manager")
	if err := runner.InstallManager(context.Background()); err != nil {
		return err
	}
	logger.Info("dependency manager installed")
	return nil
}
