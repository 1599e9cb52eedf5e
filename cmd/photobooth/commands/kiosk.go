package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Zahlii/photobooth/internal/tui"
	"github.com/Zahlii/photobooth/pkg/backend"
	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	kioskAutoStart    bool
	kioskInitialDelay int
	kioskPrintArgs    []string
)

var kioskCmd = &cobra.Command{
	Use:   "kiosk",
	Short: "Run the kiosk terminal UI against a camera backend",
	RunE:  runKiosk,
}

func init() {
	rootCmd.AddCommand(kioskCmd)
	kioskCmd.Flags().BoolVar(&kioskAutoStart, "auto-start", true, "Start the first countdown as soon as a layout is chosen")
	kioskCmd.Flags().IntVar(&kioskInitialDelay, "initial-delay", -1, "Seconds before the first shot of a session (-1 uses the configured countdown)")
	kioskCmd.Flags().StringArrayVar(&kioskPrintArgs, "print-arg", nil, "Extra lpr argument passed with every print (repeatable)")
	kioskCmd.Flags().String("log-file", ".artifacts/kiosk.log", "Log file (the terminal belongs to the UI)")

	viper.BindPFlag("log-file", kioskCmd.Flags().Lookup("log-file"))
}

func runKiosk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := ensureDirectories("", "", filepath.Dir(cfg.LogFile)); err != nil {
		return err
	}
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "open log file")
	}
	defer logFile.Close()
	if err := setupLogging(logFile, logLevel); err != nil {
		return err
	}

	client, err := backend.New(cfg.BackendURL)
	if err != nil {
		return err
	}

	opts := tui.DefaultOptions()
	opts.AutoStart = kioskAutoStart
	opts.InitialDelay = kioskInitialDelay
	opts.PrintArgs = kioskPrintArgs

	slog.Info("kiosk_starting", "backend", cfg.BackendURL, "auto_start", opts.AutoStart)
	return tui.Run(ctx, client, opts)
}
