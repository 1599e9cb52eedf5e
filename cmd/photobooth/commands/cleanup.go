package commands

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Zahlii/photobooth/internal/config"
	"github.com/Zahlii/photobooth/pkg/db"
	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	cleanupSession   string
	cleanupOrphaned  bool
	cleanupOlderThan time.Duration
	cleanupDryRun    bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete snapshot files that were never printed",
	Long: `Delete snapshot files that were never printed:
  --session <folder>     Clean unprinted snapshots of one event folder
  --older-than <dur>     Clean unprinted snapshots older than the duration (all events)
  --orphaned             Clean files in the event folder not tracked in the database`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().StringVar(&cleanupSession, "session", "", "Clean a specific event folder")
	cleanupCmd.Flags().BoolVar(&cleanupOrphaned, "orphaned", false, "Clean untracked files")
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 0, "Only clean files older than this")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Only print what would be removed")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if cleanupSession == "" && !cleanupOrphaned && cleanupOlderThan <= 0 {
		return fmt.Errorf("must specify --session, --older-than, or --orphaned")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	cutoff := time.Now().Add(-cleanupOlderThan)

	if cleanupOrphaned {
		return cleanupOrphanedFiles(repo, cfg, cutoff)
	}
	return cleanupUnprinted(repo, cfg, cleanupSession, cutoff)
}

func cleanupUnprinted(repo *db.Repository, cfg *config.Config, session string, cutoff time.Time) error {
	snapshots, err := repo.ListUnprinted(session, cutoff)
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	fmt.Printf("🧹 Cleaning up %d unprinted snapshots...\n", len(snapshots))

	removed := 0
	for _, s := range snapshots {
		path := filepath.Join(cfg.ImageRoot, s.Session, filepath.FromSlash(s.Path))
		if cleanupDryRun {
			fmt.Printf("would remove %s\n", path)
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Printf("⚠️  Failed to remove %s: %v\n", path, err)
			continue
		}
		if err := repo.DeleteSnapshot(s.Path); err != nil {
			fmt.Printf("⚠️  Failed to forget %s: %v\n", s.Path, err)
			continue
		}
		removed++
	}

	fmt.Printf("✅ Removed %d snapshots\n", removed)
	return nil
}

func cleanupOrphanedFiles(repo *db.Repository, cfg *config.Config, cutoff time.Time) error {
	fmt.Println("🔍 Scanning for orphaned files...")

	entries, err := os.ReadDir(cfg.ImageDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Println("✅ Removed 0 orphaned files")
			return nil
		}
		return errors.Wrap(err, "read image folder")
	}

	orphanCount := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		// Check if this file is tracked in the database
		tracked, err := repo.GetSnapshot(entry.Name())
		if err != nil {
			return errors.Wrap(err, "lookup failed")
		}
		if tracked != nil {
			continue
		}

		orphanPath := filepath.Join(cfg.ImageDir(), entry.Name())
		if cleanupDryRun {
			fmt.Printf("would remove %s\n", orphanPath)
			continue
		}
		if err := os.Remove(orphanPath); err != nil {
			fmt.Printf("⚠️  Failed to remove orphaned file %s: %v\n", entry.Name(), err)
		} else {
			fmt.Printf("🗑️  Removed orphaned file: %s\n", entry.Name())
			orphanCount++
		}
	}

	fmt.Printf("✅ Removed %d orphaned files\n", orphanCount)
	return nil
}
