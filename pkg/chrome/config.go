package chrome

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/frogrocketlabs/genstudio/pkg/logging"
)

// Config controls how a Session launches and drives headless Chrome.
type Config struct {
	// ExecutablePath overrides executable discovery when set.
	ExecutablePath string
	// Port is the remote debugging port Chrome listens on.
	Port int
	// Width and Height set the initial window and capture viewport size.
	Width  int
	Height int
	// Scale is the device scale factor applied via device metrics override.
	Scale float64
	// Debug runs Chrome with a visible window instead of headless mode.
	Debug bool
	// StartupTimeout bounds the discovery poll after process launch.
	StartupTimeout time.Duration
	// Logger receives structured session events. Nil discards them.
	Logger *logging.Logger
	// BrowserOutput receives the Chrome process's stdout and stderr. Nil
	// discards the output.
	BrowserOutput io.Writer
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Port:           9222,
		Width:          800,
		Height:         600,
		Scale:          1.0,
		StartupTimeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(c.ExecutablePath) != "" {
		defaults.ExecutablePath = c.ExecutablePath
	}
	if c.Port != 0 {
		defaults.Port = c.Port
	}
	if c.Width != 0 {
		defaults.Width = c.Width
	}
	if c.Height != 0 {
		defaults.Height = c.Height
	}
	if c.Scale != 0 {
		defaults.Scale = c.Scale
	}
	defaults.Debug = c.Debug
	if c.StartupTimeout != 0 {
		defaults.StartupTimeout = c.StartupTimeout
	}
	defaults.Logger = c.Logger
	defaults.BrowserOutput = c.BrowserOutput
	return defaults
}

// Validate checks whether the config is usable.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return errors.New("viewport dimensions must be greater than zero")
	}
	if c.Scale <= 0 {
		return errors.New("scale must be greater than zero")
	}
	if c.StartupTimeout < 0 {
		return errors.New("startup_timeout must be zero or positive")
	}
	return nil
}
