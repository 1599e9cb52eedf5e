package commands

import (
	"context"
	"fmt"

	"github.com/Zahlii/photobooth/internal/config"
	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	jobsLimit    int
	jobsArchived bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List print jobs and their status",
	RunE:  runJobs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 50, "Maximum number of jobs to show")
	jobsCmd.Flags().BoolVar(&jobsArchived, "archived", false, "List the archived images in S3 instead")
}

func runJobs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if jobsArchived {
		return listArchived(cmd.Context(), cfg)
	}

	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	jobs, err := repo.ListJobs(jobsLimit)
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	if len(jobs) == 0 {
		fmt.Println("No print jobs found")
		return nil
	}

	fmt.Printf("%-36s %-30s %-7s %-10s %-24s %-20s\n", "JOB", "IMAGE", "COPIES", "STATUS", "PRINTER", "CREATED")
	fmt.Println("------------------------------------------------------------------------------------------------------------------------------")

	for _, job := range jobs {
		fmt.Printf("%-36s %-30s %-7d %-10s %-24s %-20s\n",
			job.ID, job.ImagePath, job.Copies, job.Status, dash(job.Printer), job.CreatedAt)
		if job.ErrorMessage != "" {
			fmt.Printf("    error: %s\n", job.ErrorMessage)
		}
	}

	return nil
}

func listArchived(ctx context.Context, cfg *config.Config) error {
	client, err := newArchive(ctx, cfg)
	if err != nil {
		return err
	}
	if client == nil {
		return fmt.Errorf("no archive configured, set --s3-bucket")
	}

	keys, err := client.ListObjects(ctx, "")
	if err != nil {
		return errors.Wrap(err, "list archive failed")
	}
	if len(keys) == 0 {
		fmt.Println("No archived images found")
		return nil
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	return nil
}
