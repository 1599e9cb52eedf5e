package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Zahlii/photobooth/pkg/booth"
	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/Zahlii/photobooth/pkg/security"
	"github.com/spf13/cobra"
)

var (
	reprintCopies   int
	reprintPrinter  string
	reprintPortrait bool
	reprintArgs     []string
)

var reprintCmd = &cobra.Command{
	Use:   "reprint <image-path>",
	Short: "Print an image of the event folder through the print pipeline and wait for it",
	Args:  cobra.ExactArgs(1),
	RunE:  runReprint,
}

func init() {
	rootCmd.AddCommand(reprintCmd)
	reprintCmd.Flags().IntVar(&reprintCopies, "copies", 1, "Number of copies")
	reprintCmd.Flags().StringVar(&reprintPrinter, "printer", "", "Printer name (default: configured or CUPS default)")
	reprintCmd.Flags().BoolVar(&reprintPortrait, "portrait", false, "Print in portrait orientation")
	reprintCmd.Flags().StringArrayVar(&reprintArgs, "print-arg", nil, "Extra lpr argument (repeatable)")
}

func runReprint(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	images, err := security.NewValidator(cfg.ImageDir(), cfg.MaxFileSize)
	if err != nil {
		return errors.Wrap(err, "image folder")
	}

	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	pipeline, shutdown, err := startPipeline(ctx, cfg, repo, images)
	if err != nil {
		return err
	}
	defer shutdown()

	job, err := pipeline.Print(ctx, booth.PrintRequest{
		ImagePath:   args[0],
		Copies:      reprintCopies,
		Landscape:   !reprintPortrait,
		PrinterName: reprintPrinter,
		CmdArgs:     reprintArgs,
	})
	if err != nil {
		return errors.Wrap(err, "reprint failed")
	}

	fmt.Printf("✅ Printed %s (%d copies) on %s, job %s\n", job.ImagePath, job.Copies, dash(job.Printer), job.ID)
	if job.ArchiveKey != "" {
		fmt.Printf("   archived as %s\n", job.ArchiveKey)
	}
	return nil
}
