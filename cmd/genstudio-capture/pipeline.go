package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/frogrocketlabs/genstudio/pkg/capture"
	"github.com/frogrocketlabs/genstudio/pkg/chrome"
	"github.com/frogrocketlabs/genstudio/pkg/config"
	"github.com/frogrocketlabs/genstudio/pkg/logging"
	"github.com/frogrocketlabs/genstudio/pkg/studio"
)

// pipeline ties one browser session, viewer context and capture driver
// together for the lifetime of a command.
type pipeline struct {
	cfg        *config.Config
	logger     *logging.Logger
	browserLog *logging.BrowserLogger
	session    *chrome.Session
	view       *studio.Context
	driver     *capture.Driver
	quiet      bool
}

func newPipeline(ctx context.Context, cf commonFlags) (*pipeline, error) {
	var cfg *config.Config
	var err error
	if cf.configPath != "" {
		cfg, err = config.LoadFromPath(cf.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, withExitCode(err, 2)
	}

	if cf.width > 0 {
		cfg.Chrome.Width = cf.width
	}
	if cf.height > 0 {
		cfg.Chrome.Height = cf.height
	}
	if cf.debug {
		cfg.Chrome.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, withExitCode(err, 2)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return nil, err
	}

	var browserLog *logging.BrowserLogger
	if cfg.Logging.Enabled && cfg.Logging.Dir != "" {
		browserLog, err = logging.NewBrowserLogger(cfg.Logging.Dir)
		if err != nil {
			logger.Close()
			return nil, err
		}
	}

	chromeCfg := chrome.Config{
		ExecutablePath: cfg.Chrome.ExecutablePath,
		Port:           cfg.Chrome.Port,
		Width:          cfg.Chrome.Width,
		Height:         cfg.Chrome.Height,
		Scale:          cfg.Chrome.Scale,
		Debug:          cfg.Chrome.Debug,
		StartupTimeout: cfg.Chrome.StartupTimeout,
		Logger:         logger,
	}
	if browserLog != nil {
		chromeCfg.BrowserOutput = browserLog
	}
	session, err := chrome.NewSession(chromeCfg)
	if err != nil {
		browserLog.Close()
		logger.Close()
		return nil, err
	}
	if err := session.Start(ctx); err != nil {
		browserLog.Close()
		logger.Close()
		return nil, err
	}

	viewerCfg, err := viewerConfig(cfg)
	if err != nil {
		session.Stop()
		browserLog.Close()
		logger.Close()
		return nil, withExitCode(err, 2)
	}
	view := studio.NewContext(session, viewerCfg, logger)

	driver := capture.NewDriver(view, capture.Options{
		Logger:         logger,
		Metrics:        capture.NewMetrics(),
		FFmpegPath:     cfg.Capture.FFmpegPath,
		PacingFPS:      cfg.Capture.PacingFPS,
		VerboseEncoder: cfg.Capture.VerboseEncoder,
	})

	return &pipeline{
		cfg:        cfg,
		logger:     logger,
		browserLog: browserLog,
		session:    session,
		view:       view,
		driver:     driver,
		quiet:      cf.quiet,
	}, nil
}

// Close stops the browser and releases the logger. Safe to call once per
// pipeline; the session itself tolerates repeated stops.
func (p *pipeline) Close() {
	if p.session != nil {
		p.session.Stop()
	}
	p.browserLog.Close()
	p.logger.Close()
}

// status prints progress to stderr when attached to a terminal.
func (p *pipeline) status(format string, args ...any) {
	if p.quiet || !term.IsTerminal(int(os.Stderr.Fd())) {
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func buildLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return nil, nil
	}
	sessionID := uuid.NewString()
	var logger *logging.Logger
	if cfg.Logging.Dir != "" {
		var err error
		logger, err = logging.NewFileLogger(cfg.Logging.Dir, sessionID)
		if err != nil {
			return nil, err
		}
	} else {
		logger = logging.NewLogger(os.Stderr, sessionID)
	}
	logger.SetMinLevel(logging.Level(cfg.Logging.Level))
	return logger, nil
}

// viewerConfig resolves viewer assets, reading local files when configured.
func viewerConfig(cfg *config.Config) (studio.ViewerConfig, error) {
	out := studio.ViewerConfig{
		ScriptURL: cfg.Viewer.ScriptURL,
		StyleURL:  cfg.Viewer.StyleURL,
	}
	if cfg.Viewer.ScriptPath != "" {
		data, err := os.ReadFile(cfg.Viewer.ScriptPath)
		if err != nil {
			return studio.ViewerConfig{}, fmt.Errorf("read viewer script: %w", err)
		}
		out.Script = data
	}
	if cfg.Viewer.StylePath != "" {
		data, err := os.ReadFile(cfg.Viewer.StylePath)
		if err != nil {
			return studio.ViewerConfig{}, fmt.Errorf("read viewer style: %w", err)
		}
		out.Style = data
	}
	return out, nil
}
