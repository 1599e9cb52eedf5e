package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Zahlii/photobooth/pkg/camera"
	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/Zahlii/photobooth/pkg/layout"
	"github.com/Zahlii/photobooth/pkg/security"
	"github.com/Zahlii/photobooth/pkg/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the camera backend HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "127.0.0.1", "Listen address")
	serveCmd.Flags().Int("port", 8000, "Listen port")
	serveCmd.Flags().String("camera", camera.KindSynthetic, "Camera device (synthetic, gphoto2)")
	serveCmd.Flags().String("layouts-dir", "layouts", "Folder holding layouts.json or layouts.yaml and the templates")

	viper.BindPFlag("host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("camera", serveCmd.Flags().Lookup("camera"))
	viper.BindPFlag("layouts-dir", serveCmd.Flags().Lookup("layouts-dir"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Ensure all necessary directories exist
	if err := ensureDirectories(cfg.SQLitePath, cfg.FSMDBPath, cfg.WorkDir, cfg.ImageDir(), cfg.LayoutsDir); err != nil {
		return err
	}

	images, err := security.NewValidator(cfg.ImageDir(), cfg.MaxFileSize)
	if err != nil {
		return errors.Wrap(err, "image folder")
	}

	dev, err := camera.Open(cfg.Camera, camera.Options{Width: cfg.CameraWidth, Height: cfg.CameraHeight})
	if err != nil {
		return errors.Wrap(err, "camera init failed")
	}
	cam := camera.NewOverlayDevice(dev, cfg.MirrorImage)
	defer cam.Close()

	catalog, err := layout.LoadCatalog(cfg.LayoutsDir)
	if err != nil {
		return errors.Wrap(err, "layouts load failed")
	}
	if err := catalog.Watch(ctx); err != nil {
		slog.Warn("layouts_watch_unavailable", "dir", catalog.Dir(), "error", err)
	}
	engine := layout.NewEngine(images, catalog, cam)

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

	srvCfg := server.DefaultConfig()
	srvCfg.Host = cfg.Host
	srvCfg.Port = cfg.Port
	srvCfg.CORSOrigins = cfg.CORSOrigins
	srvCfg.Stream = cfg.StreamLimits()
	srvCfg.Booth = cfg.Booth()

	slog.Info("backend_starting",
		"camera", cam.Name(),
		"image_dir", images.Root(),
		"layouts", len(catalog.Layouts()),
		"archive", cfg.S3Bucket != "")

	srv := server.New(srvCfg, server.Deps{
		Camera:  cam,
		Images:  images,
		Catalog: catalog,
		Engine:  engine,
		Printer: pipeline,
		Repo:    repo,
	})
	return srv.Start(ctx)
}
