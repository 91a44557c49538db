package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base. Booleans and zero-ambiguous fields
// only apply when the key is present in the raw document.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if override.Chrome.ExecutablePath != "" {
		base.Chrome.ExecutablePath = override.Chrome.ExecutablePath
	}
	if override.Chrome.Port != 0 {
		base.Chrome.Port = override.Chrome.Port
	}
	if override.Chrome.Width != 0 {
		base.Chrome.Width = override.Chrome.Width
	}
	if override.Chrome.Height != 0 {
		base.Chrome.Height = override.Chrome.Height
	}
	if override.Chrome.Scale != 0 {
		base.Chrome.Scale = override.Chrome.Scale
	}
	if fieldSet(raw, "chrome", "debug") {
		base.Chrome.Debug = override.Chrome.Debug
	}
	if override.Chrome.StartupTimeout != 0 {
		base.Chrome.StartupTimeout = override.Chrome.StartupTimeout
	}

	if override.Viewer.ScriptURL != "" {
		base.Viewer.ScriptURL = override.Viewer.ScriptURL
	}
	if override.Viewer.StyleURL != "" {
		base.Viewer.StyleURL = override.Viewer.StyleURL
	}
	if override.Viewer.ScriptPath != "" {
		base.Viewer.ScriptPath = override.Viewer.ScriptPath
	}
	if override.Viewer.StylePath != "" {
		base.Viewer.StylePath = override.Viewer.StylePath
	}

	if override.Capture.FFmpegPath != "" {
		base.Capture.FFmpegPath = override.Capture.FFmpegPath
	}
	if override.Capture.FPS != 0 {
		base.Capture.FPS = override.Capture.FPS
	}
	if fieldSet(raw, "capture", "pacing_fps") {
		base.Capture.PacingFPS = override.Capture.PacingFPS
	}
	if fieldSet(raw, "capture", "verbose_encoder") {
		base.Capture.VerboseEncoder = override.Capture.VerboseEncoder
	}

	if fieldSet(raw, "logging", "enabled") {
		base.Logging.Enabled = override.Logging.Enabled
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Dir != "" {
		base.Logging.Dir = override.Logging.Dir
	}
}

func fieldSet(raw map[string]any, path ...string) bool {
	if len(path) == 0 || raw == nil {
		return false
	}
	current := any(raw)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return false
		}
		val, ok := m[key]
		if !ok {
			return false
		}
		current = val
	}
	return true
}
