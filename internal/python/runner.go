package python

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Result captures one interpreter invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes an interpreter binary with arguments. Implementations must
// return a Result for commands that started but exited non-zero; an error is
// reserved for commands that could not run at all (missing binary, killed by
// context).
type Runner interface {
	Run(ctx context.Context, exe string, args ...string) (*Result, error)
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

// Run executes exe with args, capturing stdout and stderr.
func (ExecRunner) Run(ctx context.Context, exe string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, exe, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to run %s: %w", exe, err)
	}

	return res, nil
}
