package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/Zahlii/photobooth/pkg/backend"
	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/spf13/cobra"
)

var layoutsCmd = &cobra.Command{
	Use:   "layouts",
	Short: "List the layouts offered by the camera backend",
	RunE:  runLayouts,
}

func init() {
	rootCmd.AddCommand(layoutsCmd)
}

func runLayouts(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := backend.New(cfg.BackendURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	layouts, err := client.AvailableLayouts(ctx)
	if err != nil {
		return errors.Wrap(err, "list layouts failed")
	}

	if len(layouts) == 0 {
		fmt.Println("No layouts found")
		return nil
	}

	fmt.Printf("%-20s %-24s %-6s %-7s %-30s\n", "ID", "NAME", "GRID", "IMAGES", "TEMPLATE")
	fmt.Println("------------------------------------------------------------------------------------------")

	for _, l := range layouts {
		grid := l.Grid
		if grid == "" {
			grid = "1"
		}
		fmt.Printf("%-20s %-24s %-6s %-7d %-30s\n",
			l.LayoutID, l.Name, grid, l.Images(), dash(l.TemplateFile))
	}

	return nil
}
