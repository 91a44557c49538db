// Package capture orchestrates apply-state-then-capture steps over a live
// page, producing screenshot batches or piping frames into an external
// encoder to build videos.
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/frogrocketlabs/genstudio/pkg/logging"
)

// Page is the surface the driver needs from a rendered page. It is satisfied
// by *studio.Context.
type Page interface {
	ApplyState(ctx context.Context, update json.RawMessage) error
	CaptureScreenshot(ctx context.Context) ([]byte, error)
}

// Options configures a Driver.
type Options struct {
	Logger  *logging.Logger
	Metrics *Metrics
	// FFmpegPath overrides the encoder binary; defaults to "ffmpeg" on PATH.
	FFmpegPath string
	// PacingFPS throttles captures to a wall-clock rate. Zero captures as
	// fast as the page renders and the encoder consumes.
	PacingFPS int
	// VerboseEncoder passes encoder diagnostics through to stderr.
	VerboseEncoder bool
}

// Driver captures frames from one page in input order. It is not safe for
// concurrent use; captures are sequential by design.
type Driver struct {
	page       Page
	logger     *logging.Logger
	metrics    *Metrics
	ffmpegPath string
	verbose    bool
	pace       *rate.Limiter
	runID      string
}

// NewDriver creates a capture driver over a page.
func NewDriver(page Page, opts Options) *Driver {
	ffmpegPath := opts.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = defaultFFmpegPath
	}
	var pace *rate.Limiter
	if opts.PacingFPS > 0 {
		pace = rate.NewLimiter(rate.Limit(opts.PacingFPS), 1)
	}
	return &Driver{
		page:       page,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		ffmpegPath: ffmpegPath,
		verbose:    opts.VerboseEncoder,
		pace:       pace,
		runID:      ulid.Make().String(),
	}
}

// RunID identifies this driver's captures in logs.
func (d *Driver) RunID() string { return d.runID }

// CaptureOne optionally applies a state update, then captures one frame.
func (d *Driver) CaptureOne(ctx context.Context, update json.RawMessage) ([]byte, error) {
	if update != nil {
		if err := validateUpdates([]json.RawMessage{update}); err != nil {
			return nil, err
		}
		if err := d.applyState(ctx, update); err != nil {
			return nil, err
		}
	}
	return d.captureFrame(ctx)
}

// CaptureSequence applies each update and captures in order. The output
// always has one frame per update; the first failure aborts the whole
// sequence rather than returning a silently short result.
func (d *Driver) CaptureSequence(ctx context.Context, updates []json.RawMessage) ([][]byte, error) {
	if err := validateUpdates(updates); err != nil {
		return nil, err
	}

	frames := make([][]byte, 0, len(updates))
	for i, update := range updates {
		if err := d.wait(ctx); err != nil {
			return nil, err
		}
		if err := d.applyState(ctx, update); err != nil {
			return nil, fmt.Errorf("state update %d: %w", i, err)
		}
		frame, err := d.captureFrame(ctx)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// SaveImage captures one frame (after an optional state update) and writes it
// to outputPath, creating parent directories as needed.
func (d *Driver) SaveImage(ctx context.Context, outputPath string, update json.RawMessage) (string, error) {
	frame, err := d.CaptureOne(ctx, update)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, frame, 0644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	d.logger.Info(logging.CategoryCapture, "image_saved", "", map[string]any{
		"run": d.runID, "path": outputPath, "bytes": len(frame),
	})
	return outputPath, nil
}

// SaveImageSequence captures one image per state update into outputDir.
// Filenames may be supplied explicitly; a count mismatch fails before any
// browser interaction occurs.
func (d *Driver) SaveImageSequence(ctx context.Context, updates []json.RawMessage, outputDir string, filenames []string, filenameBase string) ([]string, error) {
	if filenames != nil && len(filenames) != len(updates) {
		return nil, newValidationError("number of filenames (%d) must match number of state updates (%d)",
			len(filenames), len(updates))
	}
	if err := validateUpdates(updates); err != nil {
		return nil, err
	}

	if filenameBase == "" {
		filenameBase = "screenshot"
	}
	if filenames == nil {
		filenames = make([]string, len(updates))
		for i := range updates {
			filenames[i] = fmt.Sprintf("%s_%d.png", filenameBase, i)
		}
	}

	frames, err := d.CaptureSequence(ctx, updates)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	paths := make([]string, 0, len(frames))
	for i, frame := range frames {
		path := filepath.Join(outputDir, filenames[i])
		if err := os.WriteFile(path, frame, 0644); err != nil {
			return nil, fmt.Errorf("write image %d: %w", i, err)
		}
		paths = append(paths, path)
	}
	d.logger.Info(logging.CategoryCapture, "sequence_saved", "", map[string]any{
		"run": d.runID, "dir": outputDir, "count": len(paths),
	})
	return paths, nil
}

// CaptureVideo applies each update in order, streaming every captured frame
// into an encoder subprocess over its stdin pipe. Writes are synchronous, so
// a slow encoder throttles capture instead of buffering frames. The pipe is
// closed and the encoder reaped on every exit path.
func (d *Driver) CaptureVideo(ctx context.Context, updates []json.RawMessage, fps int, outputPath string) error {
	if err := validateUpdates(updates); err != nil {
		return err
	}
	if fps <= 0 {
		fps = 24
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	cmd := exec.Command(d.ffmpegPath, encoderArgs(outputPath, fps, d.verbose)...)
	if d.verbose {
		cmd.Stderr = os.Stderr
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open encoder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start encoder: %w", err)
	}

	d.logger.Info(logging.CategoryEncoder, "encoder_started", "", map[string]any{
		"run": d.runID, "path": outputPath, "fps": fps, "frames": len(updates),
	})
	start := time.Now()

	abort := func(cause error) error {
		_ = stdin.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return cause
	}

	for i, update := range updates {
		if err := d.wait(ctx); err != nil {
			return abort(err)
		}
		if err := d.applyState(ctx, update); err != nil {
			return abort(fmt.Errorf("state update %d: %w", i, err))
		}
		frame, err := d.captureFrame(ctx)
		if err != nil {
			return abort(fmt.Errorf("frame %d: %w", i, err))
		}
		if _, err := stdin.Write(frame); err != nil {
			return abort(fmt.Errorf("write frame %d to encoder: %w", i, err))
		}
	}

	if err := stdin.Close(); err != nil {
		return abort(fmt.Errorf("close encoder pipe: %w", err))
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("encoder exited: %w", err)
	}

	d.metrics.RecordVideo()
	elapsed := time.Since(start)
	d.logger.Info(logging.CategoryEncoder, "video_encoded", "", map[string]any{
		"run":        d.runID,
		"path":       outputPath,
		"frames":     len(updates),
		"elapsed_ms": elapsed.Milliseconds(),
	})
	return nil
}

func (d *Driver) applyState(ctx context.Context, update json.RawMessage) error {
	if err := d.page.ApplyState(ctx, update); err != nil {
		d.metrics.RecordFailure()
		return err
	}
	d.metrics.RecordStateUpdate()
	return nil
}

func (d *Driver) captureFrame(ctx context.Context) ([]byte, error) {
	start := time.Now()
	frame, err := d.page.CaptureScreenshot(ctx)
	if err != nil {
		d.metrics.RecordFailure()
		return nil, err
	}
	d.metrics.RecordFrame(len(frame), time.Since(start))
	d.logger.Debug(logging.CategoryCapture, "frame_captured", "", map[string]any{
		"run": d.runID, "bytes": len(frame),
	})
	return frame, nil
}

// wait applies optional wall-clock pacing between captures.
func (d *Driver) wait(ctx context.Context) error {
	if d.pace == nil {
		return nil
	}
	return d.pace.Wait(ctx)
}
