package commands

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "photobooth",
	Short: "Photo booth kiosk and camera backend",
	Long: `Runs a photo booth: the camera backend (capture, layouts, printing) and the
terminal kiosk that walks guests through countdown, capture and print.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environment variables win over it.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrap(err, "failed to load .env")
		}
		return setupLogging(os.Stdout, logLevel)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("backend-url", "http://127.0.0.1:8000", "Camera backend URL")
	rootCmd.PersistentFlags().String("image-root", "", "Root folder of the event image folders (default ~/dslr-tool)")
	rootCmd.PersistentFlags().String("folder-name", "new-event", "Image folder of the current event")
	rootCmd.PersistentFlags().String("sqlite-path", ".artifacts/booth.db", "SQLite database path")
	rootCmd.PersistentFlags().String("fsm-db-path", ".artifacts/fsm", "FSM BoltDB path")
	rootCmd.PersistentFlags().String("s3-bucket", "", "S3 bucket archiving printed images (disabled when empty)")
	rootCmd.PersistentFlags().String("s3-region", "us-east-1", "S3 region")

	viper.BindPFlag("backend-url", rootCmd.PersistentFlags().Lookup("backend-url"))
	viper.BindPFlag("folder-name", rootCmd.PersistentFlags().Lookup("folder-name"))
	viper.BindPFlag("sqlite-path", rootCmd.PersistentFlags().Lookup("sqlite-path"))
	viper.BindPFlag("fsm-db-path", rootCmd.PersistentFlags().Lookup("fsm-db-path"))
	viper.BindPFlag("s3-bucket", rootCmd.PersistentFlags().Lookup("s3-bucket"))
	viper.BindPFlag("s3-region", rootCmd.PersistentFlags().Lookup("s3-region"))
	viper.BindPFlag("image-root", rootCmd.PersistentFlags().Lookup("image-root"))
}
