package interp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/packwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/packwatch/internal/logfields"
)

// requiredManagerVersion is the minimum manager package version packwatch
// can drive.
const requiredManagerVersion = "0.2.0.109"

// ExecRunner implements Runner by invoking the R interpreter as a
// subprocess. Every call is a fresh short-lived process; the manager's own
// state lives in the project directory, not in this process.
type ExecRunner struct {
	binary       string
	queryTimeout time.Duration
}

// ExecRunnerConfig configures an ExecRunner.
type ExecRunnerConfig struct {
	// Binary is the interpreter executable. Defaults to "Rscript".
	Binary string

	// QueryTimeout bounds read-only queries (availability, pending actions,
	// options). Captures and bootstraps are bounded only by the caller's
	// context. Defaults to 30s.
	QueryTimeout time.Duration
}

// NewExecRunner creates an ExecRunner.
func NewExecRunner(cfg ExecRunnerConfig) *ExecRunner {
	if cfg.Binary == "" {
		cfg.Binary = "Rscript"
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	return &ExecRunner{binary: cfg.Binary, queryTimeout: cfg.QueryTimeout}
}

// rQuote renders a Go string as a double-quoted R string literal.
func rQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// eval runs a single R expression and returns its trimmed stdout.
func (r *ExecRunner) eval(ctx context.Context, dir, expr string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binary, "--vanilla", "-e", expr)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryInterp, "interpreter call failed").
			WithContext("expr", expr).
			WithContext("stderr", strings.TrimSpace(stderr.String())).
			Build()
	}
	return strings.TrimSpace(stdout.String()), nil
}

// evalBool runs an expression expected to print TRUE or FALSE.
func (r *ExecRunner) evalBool(ctx context.Context, dir, expr string) (bool, error) {
	out, err := r.eval(ctx, dir, expr)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(out, "TRUE"), nil
}

func (r *ExecRunner) Available(ctx context.Context) bool {
	expr := fmt.Sprintf(
		`cat(requireNamespace("packrat", quietly = TRUE) && utils::packageVersion("packrat") >= %s)`,
		rQuote(requiredManagerVersion))
	ok, err := r.evalBool(ctx, "", expr)
	if err != nil {
		slog.Debug("manager availability probe failed", logfields.Error(err))
		return false
	}
	return ok
}

func (r *ExecRunner) BuildToolsAvailable(ctx context.Context) bool {
	ok, err := r.evalBool(ctx, "", `cat(nzchar(Sys.which("make")))`)
	if err != nil {
		slog.Debug("build tools probe failed", logfields.Error(err))
		return false
	}
	return ok
}

func (r *ExecRunner) IsPackified(ctx context.Context, project string) (bool, error) {
	expr := fmt.Sprintf(`cat(packrat:::checkPackified(project = %s, quiet = TRUE))`, rQuote(project))
	return r.evalBool(ctx, project, expr)
}

func (r *ExecRunner) IsModeOn(ctx context.Context, project string) (bool, error) {
	expr := fmt.Sprintf(`cat(packrat:::isPackratModeOn(project = %s))`, rQuote(project))
	return r.evalBool(ctx, project, expr)
}

func (r *ExecRunner) PendingActions(ctx context.Context, action, project string) ([]Action, error) {
	expr := fmt.Sprintf(
		`cat(jsonlite::toJSON(packrat:::pendingActions(%s, project = %s), auto_unbox = TRUE))`,
		rQuote(action), rQuote(project))
	out, err := r.eval(ctx, project, expr)
	if err != nil {
		return nil, err
	}
	if out == "" || out == "[]" || out == "{}" {
		return nil, nil
	}

	var actions []Action
	if err := json.Unmarshal([]byte(out), &actions); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInterp, "decode pending actions").
			WithContext("action", action).
			Build()
	}
	return actions, nil
}

func (r *ExecRunner) RunCapture(ctx context.Context, project string) error {
	// Deliberately not bounded by queryTimeout; a capture can legitimately
	// run for minutes on a large library.
	expr := fmt.Sprintf(`packrat::snapshot(project = %s, prompt = FALSE)`, rQuote(project))
	cmd := exec.CommandContext(ctx, r.binary, "--vanilla", "-e", expr)
	cmd.Dir = project
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return ferrors.WrapError(err, ferrors.CategorySnapshot, "capture process failed").
			WithContext("stderr", strings.TrimSpace(stderr.String())).
			Build()
	}
	return nil
}

func (r *ExecRunner) Bootstrap(ctx context.Context, project string, enter bool) error {
	// Bounded only by the caller's context; a bootstrap downloads and
	// installs packages.
	expr := fmt.Sprintf(
		`packrat:::bootstrap(project = %s, enter = %s, restart = FALSE)`,
		rQuote(project), rLogical(enter))
	cmd := exec.CommandContext(ctx, r.binary, "--vanilla", "-e", expr)
	cmd.Dir = project
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInterp, "bootstrap process failed").
			WithContext("stderr", strings.TrimSpace(stderr.String())).
			Build()
	}
	return nil
}

func (r *ExecRunner) InstallManager(ctx context.Context) error {
	_, err := r.eval(ctx, "", `utils::install.packages("packrat", repos = "https://cloud.r-project.org")`)
	return err
}

func (r *ExecRunner) ProjectOptions(ctx context.Context, project string) (Options, error) {
	expr := fmt.Sprintf(
		`opts <- packrat:::get_opts(project = %s, simplify = FALSE); `+
			`cat(jsonlite::toJSON(list(`+
			`auto_snapshot = isTRUE(opts[["auto.snapshot"]]), `+
			`vcs_ignore_lib = isTRUE(opts[["vcs.ignore.lib"]]), `+
			`vcs_ignore_src = isTRUE(opts[["vcs.ignore.src"]])), auto_unbox = TRUE))`,
		rQuote(project))
	out, err := r.eval(ctx, project, expr)
	if err != nil {
		return DefaultOptions(), err
	}

	opts := DefaultOptions()
	if err := json.Unmarshal([]byte(out), &opts); err != nil {
		return DefaultOptions(), ferrors.WrapError(err, ferrors.CategoryInterp, "decode project options").Build()
	}
	return opts, nil
}

func rLogical(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
