package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Zahlii/photobooth/pkg/command"
	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/Zahlii/photobooth/pkg/printer"
	"github.com/spf13/cobra"
)

var printersCmd = &cobra.Command{
	Use:   "printers",
	Short: "List the CUPS printers known to this machine",
	RunE:  runPrinters,
}

func init() {
	rootCmd.AddCommand(printersCmd)
}

func runPrinters(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cups := printer.NewCUPS(command.Exec{})

	printers, err := cups.Printers(ctx)
	if err != nil {
		return errors.Wrap(err, "list printers failed")
	}

	def, err := cups.DefaultPrinter(ctx)
	if err != nil {
		slog.Warn("default_printer_unknown", "error", err)
	}

	if len(printers) == 0 {
		fmt.Println("No printers found")
		return nil
	}

	for _, p := range printers {
		marker := " "
		if p == def {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, p)
	}
	return nil
}
