// Package config loads the photobooth settings from flags, environment and config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Zahlii/photobooth/pkg/booth"
	"github.com/Zahlii/photobooth/pkg/camera"
	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/Zahlii/photobooth/pkg/mjpeg"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Kiosk
	BackendURL string `mapstructure:"backend-url"`
	LogFile    string `mapstructure:"log-file"`

	// HTTP server
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors-origins"`

	// Folders
	ImageRoot  string `mapstructure:"image-root"`
	LayoutsDir string `mapstructure:"layouts-dir"`
	WorkDir    string `mapstructure:"work-dir"`

	// Database paths
	SQLitePath string `mapstructure:"sqlite-path"`
	FSMDBPath  string `mapstructure:"fsm-db-path"`

	// Camera
	Camera       string `mapstructure:"camera"`
	CameraWidth  int    `mapstructure:"camera-width"`
	CameraHeight int    `mapstructure:"camera-height"`

	// Booth behaviour, served on /config
	CountdownCaptureSeconds int    `mapstructure:"countdown-capture-seconds"`
	InactivityReturnSeconds int    `mapstructure:"inactivity-return-seconds"`
	BoothTitle              string `mapstructure:"booth-title"`
	DefaultPrinter          string `mapstructure:"default-printer"`
	FolderName              string `mapstructure:"folder-name"`
	MirrorImage             bool   `mapstructure:"mirror-image"`

	// Printing
	PrintBorder     int `mapstructure:"print-border"`
	PrintMaxRetries int `mapstructure:"print-max-retries"`

	// S3 archive of printed images (disabled without a bucket)
	S3Bucket   string `mapstructure:"s3-bucket"`
	S3Region   string `mapstructure:"s3-region"`
	S3Prefix   string `mapstructure:"s3-prefix"`
	S3Endpoint string `mapstructure:"s3-endpoint"`

	// Preview stream
	StreamMaxFPS      int           `mapstructure:"stream-max-fps"`
	StreamMaxDuration time.Duration `mapstructure:"stream-max-duration"`

	// Security limits
	MaxFileSize int64 `mapstructure:"max-file-size"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	defaults := booth.DefaultBoothConfig()

	v.SetDefault("backend-url", "http://127.0.0.1:8000")
	v.SetDefault("log-file", ".artifacts/kiosk.log")
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8000)
	v.SetDefault("cors-origins", []string{"http://localhost:4200", "http://127.0.0.1:4200"})
	v.SetDefault("image-root", filepath.Join(home, "dslr-tool"))
	v.SetDefault("layouts-dir", "layouts")
	v.SetDefault("work-dir", filepath.Join(os.TempDir(), "photobooth"))
	v.SetDefault("sqlite-path", ".artifacts/booth.db")
	v.SetDefault("fsm-db-path", ".artifacts/fsm")
	v.SetDefault("camera", camera.KindSynthetic)
	v.SetDefault("camera-width", 1200)
	v.SetDefault("camera-height", 800)
	v.SetDefault("countdown-capture-seconds", defaults.CountdownCaptureSeconds)
	v.SetDefault("inactivity-return-seconds", defaults.InactivityReturnSeconds)
	v.SetDefault("booth-title", defaults.BoothTitle)
	v.SetDefault("default-printer", defaults.DefaultPrinter)
	v.SetDefault("folder-name", defaults.FolderName)
	v.SetDefault("mirror-image", defaults.MirrorImage)
	v.SetDefault("print-border", 75)
	v.SetDefault("print-max-retries", 3)
	v.SetDefault("s3-bucket", "")
	v.SetDefault("s3-region", "us-east-1")
	v.SetDefault("s3-prefix", "")
	v.SetDefault("s3-endpoint", "")
	v.SetDefault("stream-max-fps", mjpeg.DefaultLimits.MaxFPS)
	v.SetDefault("stream-max-duration", mjpeg.DefaultLimits.MaxDuration)
	v.SetDefault("max-file-size", 50*1024*1024)
}

// Load reads configuration from environment, config file, and defaults
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads configuration through v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	// Environment variables (will be PHOTOBOOTH_BACKEND_URL, etc.)
	v.SetEnvPrefix("PHOTOBOOTH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.photobooth")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.ImageRoot == "" {
		return fmt.Errorf("image-root cannot be empty")
	}
	if c.FolderName == "" || strings.ContainsAny(c.FolderName, `/\`) || c.FolderName == ".." {
		return fmt.Errorf("folder-name must be a plain directory name")
	}
	if c.LayoutsDir == "" {
		return fmt.Errorf("layouts-dir cannot be empty")
	}
	if c.SQLitePath == "" {
		return fmt.Errorf("sqlite-path cannot be empty")
	}
	if c.FSMDBPath == "" {
		return fmt.Errorf("fsm-db-path cannot be empty")
	}
	if c.Camera != camera.KindSynthetic && c.Camera != camera.KindGPhoto2 {
		return fmt.Errorf("camera must be %q or %q", camera.KindSynthetic, camera.KindGPhoto2)
	}
	if c.CountdownCaptureSeconds < 0 {
		return fmt.Errorf("countdown-capture-seconds must be non-negative")
	}
	if c.InactivityReturnSeconds < 0 {
		return fmt.Errorf("inactivity-return-seconds must be non-negative")
	}
	if c.PrintBorder < 0 {
		return fmt.Errorf("print-border must be non-negative")
	}
	if c.PrintMaxRetries < 0 {
		return fmt.Errorf("print-max-retries must be non-negative")
	}
	if c.StreamMaxFPS < 0 {
		return fmt.Errorf("stream-max-fps must be non-negative")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max-file-size must be positive")
	}
	return nil
}

// ImageDir is the folder of the current event.
func (c *Config) ImageDir() string {
	return filepath.Join(c.ImageRoot, c.FolderName)
}

// Booth returns the settings the kiosk reads from /config.
func (c *Config) Booth() booth.BoothConfig {
	return booth.BoothConfig{
		CountdownCaptureSeconds: c.CountdownCaptureSeconds,
		InactivityReturnSeconds: c.InactivityReturnSeconds,
		BoothTitle:              c.BoothTitle,
		DefaultPrinter:          c.DefaultPrinter,
		FolderName:              c.FolderName,
		MirrorImage:             c.MirrorImage,
	}
}

// StreamLimits returns the preview stream caps.
func (c *Config) StreamLimits() mjpeg.Limits {
	return mjpeg.Limits{MaxFPS: c.StreamMaxFPS, MaxDuration: c.StreamMaxDuration}
}
