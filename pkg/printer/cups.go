// Package printer sends composites to a CUPS printer and tracks print jobs.
package printer

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Zahlii/photobooth/pkg/command"
	"github.com/Zahlii/photobooth/pkg/errors"
)

// Options are the lpr settings of one print.
type Options struct {
	Printer   string
	Copies    int
	Landscape bool
	Extra     []string
}

// Spooler is the print system the pipeline submits to.
type Spooler interface {
	DefaultPrinter(ctx context.Context) (string, error)
	Print(ctx context.Context, file string, opts Options) error
}

// CUPS talks to the local print system through lpstat and lpr.
type CUPS struct {
	runner command.Runner
}

// NewCUPS creates a spooler running commands through runner.
func NewCUPS(runner command.Runner) *CUPS {
	return &CUPS{runner: runner}
}

// Printers lists the configured printers.
func (c *CUPS) Printers(ctx context.Context) ([]string, error) {
	out, err := c.runner.Run(ctx, "lpstat", "-p")
	if err != nil {
		return nil, errors.Wrap(err, "failed to get printer list")
	}
	return parsePrinters(out), nil
}

// DefaultPrinter returns the system default destination, or "" when none is set.
func (c *CUPS) DefaultPrinter(ctx context.Context) (string, error) {
	out, err := c.runner.Run(ctx, "lpstat", "-d")
	if err != nil {
		return "", errors.Wrap(err, "failed to get default printer")
	}
	return parseDefault(out), nil
}

// Print queues file.
func (c *CUPS) Print(ctx context.Context, file string, opts Options) error {
	args := Args(opts, file)
	slog.Info("print_submit", "printer", opts.Printer, "copies", opts.Copies, "file", file)
	if _, err := c.runner.Run(ctx, "lpr", args...); err != nil {
		return errors.Wrap(err, "failed to print image")
	}
	return nil
}

// Args builds the lpr argument list for file.
func Args(opts Options, file string) []string {
	var args []string
	if opts.Printer != "" {
		args = append(args, "-P", opts.Printer)
	}
	if opts.Copies > 1 {
		args = append(args, "-#", strconv.Itoa(opts.Copies))
	}
	if opts.Landscape {
		args = append(args, "-o", "landscape")
	}
	args = append(args, opts.Extra...)
	return append(args, file)
}

// parsePrinters reads lines like "printer Canon_SELPHY is idle.  enabled since ...".
func parsePrinters(out []byte) []string {
	var printers []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "printer ") {
			continue
		}
		name, _, ok := strings.Cut(strings.TrimPrefix(line, "printer "), " is ")
		if ok && strings.TrimSpace(name) != "" {
			printers = append(printers, strings.TrimSpace(name))
		}
	}
	return printers
}

// parseDefault reads "system default destination: NAME" or "no system default destination".
func parseDefault(out []byte) string {
	text := strings.TrimSpace(string(out))
	if strings.Contains(strings.ToLower(text), "no default destination") ||
		strings.Contains(strings.ToLower(text), "no system default destination") {
		return ""
	}
	_, name, ok := strings.Cut(text, ":")
	if !ok {
		return ""
	}
	return strings.TrimSpace(name)
}
