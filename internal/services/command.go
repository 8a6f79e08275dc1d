package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandResult captures the output of an external tool invocation.
type CommandResult struct {
	Stdout string
	Stderr string
}

// RunCommand executes an external tool and tags failures with the appropriate
// sentinel so the retry engine can classify them. A missing binary is a
// configuration error; a context deadline is a timeout.
func RunCommand(ctx context.Context, stage, operation, binary string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return result, nil
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return result, Wrap(ErrTimeout, stage, operation, binary+" timed out", err)
	case errors.Is(ctx.Err(), context.Canceled):
		// No classifying sentinel: a plain cancellation is not a network
		// fault, so it falls through classification as unknown.
		return result, fmt.Errorf("%s: %w", buildDetail(stage, operation, binary+" canceled"), ctx.Err())
	case errors.Is(err, exec.ErrNotFound):
		return result, Wrap(ErrConfiguration, stage, operation, binary+" not installed", err)
	}

	detail := strings.TrimSpace(stderr.String())
	if detail == "" {
		detail = err.Error()
	}
	return result, Wrap(ErrExternalTool, stage, operation, detail, err)
}
