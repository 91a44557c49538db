// Package config loads GenStudio capture configuration from YAML files and
// environment variables, with defaults layered underneath.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Default configuration values exported for documentation and validation
const (
	DefaultDebugPort      = 9222
	DefaultWidth          = 800
	DefaultHeight         = 600
	DefaultScale          = 1.0
	DefaultStartupTimeout = 10 * time.Second
	DefaultFPS            = 24
	DefaultFFmpegPath     = "ffmpeg"
	DefaultLogLevel       = "info"
)

// Config is the complete GenStudio capture configuration.
type Config struct {
	Chrome  ChromeConfig  `yaml:"chrome"`
	Viewer  ViewerConfig  `yaml:"viewer"`
	Capture CaptureConfig `yaml:"capture"`
	Logging LoggingConfig `yaml:"logging"`
}

// ChromeConfig controls how the browser process is launched and addressed.
type ChromeConfig struct {
	// ExecutablePath overrides executable discovery. Empty means search the
	// usual install locations and PATH.
	ExecutablePath string        `yaml:"executable_path"`
	Port           int           `yaml:"port"`
	Width          int           `yaml:"width"`
	Height         int           `yaml:"height"`
	Scale          float64       `yaml:"scale"`
	Debug          bool          `yaml:"debug"` // show the browser window
	StartupTimeout time.Duration `yaml:"startup_timeout"`
}

// ViewerConfig selects where the viewer runtime assets come from.
type ViewerConfig struct {
	ScriptURL  string `yaml:"script_url"`
	StyleURL   string `yaml:"style_url"`
	ScriptPath string `yaml:"script_path"` // local file served next to the document
	StylePath  string `yaml:"style_path"`
}

// CaptureConfig controls the capture driver and video encoder.
type CaptureConfig struct {
	FFmpegPath     string `yaml:"ffmpeg_path"`
	FPS            int    `yaml:"fps"`
	PacingFPS      int    `yaml:"pacing_fps"` // 0 disables wall-clock pacing
	VerboseEncoder bool   `yaml:"verbose_encoder"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"` // debug, info, warn, error
	Dir     string `yaml:"dir"`   // empty means stderr
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Chrome: ChromeConfig{
			Port:           DefaultDebugPort,
			Width:          DefaultWidth,
			Height:         DefaultHeight,
			Scale:          DefaultScale,
			StartupTimeout: DefaultStartupTimeout,
		},
		Capture: CaptureConfig{
			FFmpegPath: DefaultFFmpegPath,
			FPS:        DefaultFPS,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   DefaultLogLevel,
		},
	}
}

// Load loads configuration from default locations with proper precedence:
// defaults, then ~/.genstudio/config.yaml, then ./.genstudio/config.yaml,
// then environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".genstudio", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}

	projectConfigPath := filepath.Join(".", ".genstudio", "config.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Chrome.Port <= 0 || c.Chrome.Port > 65535 {
		return fmt.Errorf("chrome.port must be in 1-65535, got %d", c.Chrome.Port)
	}
	if c.Chrome.Width <= 0 || c.Chrome.Height <= 0 {
		return fmt.Errorf("chrome viewport must be positive, got %dx%d", c.Chrome.Width, c.Chrome.Height)
	}
	if c.Chrome.Scale <= 0 {
		return fmt.Errorf("chrome.scale must be positive, got %g", c.Chrome.Scale)
	}
	if c.Chrome.StartupTimeout <= 0 {
		return fmt.Errorf("chrome.startup_timeout must be positive, got %s", c.Chrome.StartupTimeout)
	}
	if c.Capture.FPS <= 0 {
		return fmt.Errorf("capture.fps must be positive, got %d", c.Capture.FPS)
	}
	if c.Capture.PacingFPS < 0 {
		return fmt.Errorf("capture.pacing_fps must not be negative, got %d", c.Capture.PacingFPS)
	}
	if c.Capture.FFmpegPath == "" {
		return fmt.Errorf("capture.ffmpeg_path must not be empty")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if c.Viewer.ScriptURL != "" && c.Viewer.ScriptPath != "" {
		return fmt.Errorf("viewer.script_url and viewer.script_path are mutually exclusive")
	}
	if c.Viewer.StyleURL != "" && c.Viewer.StylePath != "" {
		return fmt.Errorf("viewer.style_url and viewer.style_path are mutually exclusive")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHROME_PATH"); v != "" {
		cfg.Chrome.ExecutablePath = v
	}
	if v := strings.TrimSpace(os.Getenv("GENSTUDIO_CHROME_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Chrome.Port = n
		}
	}
	if v, ok := envBool("GENSTUDIO_CHROME_DEBUG"); ok {
		cfg.Chrome.Debug = v
	}
	if v := strings.TrimSpace(os.Getenv("GENSTUDIO_STARTUP_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Chrome.StartupTimeout = d
		}
	}
	if v := os.Getenv("GENSTUDIO_FFMPEG_PATH"); v != "" {
		cfg.Capture.FFmpegPath = v
	}
	if v := strings.TrimSpace(os.Getenv("GENSTUDIO_FPS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Capture.FPS = n
		}
	}
	if v := os.Getenv("GENSTUDIO_SCRIPT_URL"); v != "" {
		cfg.Viewer.ScriptURL = v
	}
	if v := os.Getenv("GENSTUDIO_STYLE_URL"); v != "" {
		cfg.Viewer.StyleURL = v
	}
	if v, ok := envBool("GENSTUDIO_LOG_ENABLED"); ok {
		cfg.Logging.Enabled = v
	}
	if v := os.Getenv("GENSTUDIO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GENSTUDIO_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
}

func envBool(key string) (bool, bool) {
	val := os.Getenv(key)
	if val == "" {
		return false, false
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
