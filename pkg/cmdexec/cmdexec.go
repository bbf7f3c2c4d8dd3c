// Package cmdexec wraps the external programs the control plane shells out
// to (ip, brctl, a container composition tool) behind small typed command
// builders, all executed inside the host network namespace.
package cmdexec

import (
	"context"
	"os/exec"
	"regexp"

	"github.com/naumachia-labs/clustermanager/pkg/util"
)

// netnsExec prefixes every command with "ip netns exec host", matching the
// subprocess surface the control plane runs against (spec.md §6).
var netnsExec = []string{"ip", "netns", "exec", "host"}

// Runner executes a command and returns its combined output, letting tests
// substitute a fake without invoking real subprocesses.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

// DefaultRunner is the production Runner, backed by os/exec.
var DefaultRunner Runner = execRunner{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// run executes name+args under the host netns prefix, wrapping a non-nil
// error as a util.CommandError carrying the captured output and exit code.
func run(ctx context.Context, r Runner, name string, args ...string) ([]byte, error) {
	full := append(append([]string{}, netnsExec...), append([]string{name}, args...)...)
	out, err := r.Run(ctx, full[0], full[1:]...)
	if err == nil {
		return out, nil
	}
	exitCode := -1
	if exitErr, ok := err.(interface{ ExitCode() int }); ok {
		exitCode = exitErr.ExitCode()
	}
	return out, &util.CommandError{
		Name:     name,
		Args:     args,
		ExitCode: exitCode,
		Output:   string(out),
		Err:      err,
	}
}

// ErrorMatch classifies a command error as an expected precondition
// mismatch: an exit code (when code >= 0) and/or a regexp over the
// captured output must match. Either check can be skipped by passing a
// negative code or a nil pattern (spec.md §4.2, §7).
func ErrorMatch(err error, code int, pattern *regexp.Regexp) bool {
	cmdErr, ok := err.(*util.CommandError)
	if !ok {
		return false
	}
	if code >= 0 && cmdErr.ExitCode != code {
		return false
	}
	if pattern != nil && !pattern.MatchString(cmdErr.Output) {
		return false
	}
	return true
}
