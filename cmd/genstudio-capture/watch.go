package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces editor write bursts into one re-capture.
const debounceDelay = 200 * time.Millisecond

// watchAndCapture renders the plot once, then re-renders and re-captures
// whenever the plot file changes, until the context is cancelled.
func watchAndCapture(ctx context.Context, p *pipeline, plotPath, outPath string, measure bool) error {
	if err := renderAndSave(ctx, p, plotPath, outPath, measure); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory; editors often replace the file, which would drop
	// a watch on the file itself.
	if err := watcher.Add(filepath.Dir(plotPath)); err != nil {
		return err
	}
	p.status("watching %s", plotPath)

	absPlot, err := filepath.Abs(plotPath)
	if err != nil {
		return err
	}

	var debounce *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || abs != absPlot {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceDelay)
			} else {
				debounce.Reset(debounceDelay)
			}
			fire = debounce.C
		case <-fire:
			fire = nil
			if err := renderAndSave(ctx, p, plotPath, outPath, measure); err != nil {
				p.status("capture failed: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func renderAndSave(ctx context.Context, p *pipeline, plotPath, outPath string, measure bool) error {
	plot, err := readPlot(plotPath)
	if err != nil {
		return err
	}
	if err := p.view.Render(ctx, plot, nil, measure); err != nil {
		return err
	}
	path, err := p.driver.SaveImage(ctx, outPath, nil)
	if err != nil {
		return err
	}
	p.status("wrote %s", path)
	return nil
}
