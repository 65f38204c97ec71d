// Package runner executes the external commands netmoded drives the
// operating system with (nmcli, iw, ping).  Every invocation carries a
// hard deadline, so a wedged network stack can stall one transition but
// never the daemon.
//
// Commands are specified as argv vectors and never pass through a
// shell, so profile names with spaces or quotes need no escaping.
package runner

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	nmerr "netmoded/internal/errors"
	"netmoded/internal/metrics"
	"netmoded/util"
)

// Spec describes a single command invocation.
type Spec struct {
	Name    string        // program to run, resolved via $PATH
	Args    []string      // argv[1:]
	Stdin   []byte        // fed to the child's stdin when non-empty
	Timeout time.Duration // hard deadline; 0 means inherit the context's
}

// String returns the space-joined command line for logs and errors.
func (s Spec) String() string {
	if len(s.Args) == 0 {
		return s.Name
	}
	return s.Name + " " + strings.Join(s.Args, " ")
}

// Output carries what a finished command produced.  It is populated on
// failure too, so callers can inspect stderr of a non-zero exit.
type Output struct {
	Stdout   string
	Stderr   string // trimmed of surrounding whitespace
	Duration time.Duration
}

// Runner executes commands.  The production implementation shells out
// to the host; tests substitute scripted fakes.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Output, error)
}

// ExecRunner runs commands on the host via os/exec.
type ExecRunner struct {
	log     *util.Logger
	metrics *metrics.Collector
}

// NewExecRunner returns an ExecRunner logging command lines at debug
// level. metrics may be nil.
func NewExecRunner(log *util.Logger, m *metrics.Collector) *ExecRunner {
	return &ExecRunner{log: log, metrics: m}
}

// Run executes the command and waits for it to finish.  On deadline the
// child is killed and the error unwraps to ErrTimeout; a non-zero exit
// yields an ExecError carrying the exit code and a stderr tail.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) (Output, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(spec.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(spec.Stdin)
	}

	r.log.Debug("exec: %s", spec)
	start := time.Now()
	err := cmd.Run()
	out := Output{
		Stdout:   stdout.String(),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}
	r.metrics.CommandFinished(err == nil)
	if err == nil {
		r.log.Debug("exec: %s finished in %v", spec.Name, out.Duration.Truncate(time.Millisecond))
		return out, nil
	}

	execErr := &nmerr.ExecError{
		Cmd:      spec.String(),
		ExitCode: -1,
		Stderr:   lastLine(out.Stderr),
		Err:      err,
	}
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		execErr.Err = nmerr.ErrTimeout
	case ctx.Err() != nil:
		execErr.Err = ctx.Err()
	default:
		var exitErr *exec.ExitError
		if nmerr.As(err, &exitErr) {
			execErr.ExitCode = exitErr.ExitCode()
		}
	}
	return out, execErr
}

// lastLine returns the final non-empty line of s.  Tools like nmcli put
// the actionable message on the last line of a multi-line complaint.
func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
