// Package command runs external tools (gphoto2, lpr, lpstat) behind a replaceable Runner.
package command

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/Zahlii/photobooth/pkg/errors"
)

// ErrNotInstalled is returned when the tool is not on PATH.
var ErrNotInstalled = errors.New("command not found")

// Runner executes a command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}

// Exec runs commands on the host.
type Exec struct{}

// Run executes name with args. A failing command's stderr is part of the error.
func (Exec) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	slog.Debug("command_run", "cmd", name, "args", args)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, errors.Wrap(ErrNotInstalled, name)
		}
		msg := strings.TrimSpace(stderr.String())
		slog.Error("command_failed", "cmd", name, "error", err, "stderr", msg)
		if msg != "" {
			return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return stdout.Bytes(), errors.Wrap(err, name)
	}
	return stdout.Bytes(), nil
}
