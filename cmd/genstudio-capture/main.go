// Command genstudio-capture renders GenStudio plots in headless Chrome and
// captures screenshots, image sequences, videos and PDFs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}
	switch args[0] {
	case "help", "-h", "--help":
		printUsage()
		return 0
	case "version", "--version":
		fmt.Printf("genstudio-capture %s (commit %s, built %s)\n", version, commit, buildDate)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch args[0] {
	case "screenshot":
		err = cmdScreenshot(ctx, args[1:])
	case "sequence":
		err = cmdSequence(ctx, args[1:])
	case "video":
		err = cmdVideo(ctx, args[1:])
	case "pdf":
		err = cmdPDF(ctx, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", args[0])
		printUsage()
		return 2
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCodeForError(err)
	}
	return 0
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: genstudio-capture <command> [flags]

Commands:
  screenshot   Render a plot and save a single PNG
  sequence     Render a plot, apply state updates and save one PNG per update
  video        Render a plot, apply state updates and encode an MP4 or GIF
  pdf          Render a plot and print the page to PDF
  version      Print version information
  help         Print this help

Run 'genstudio-capture <command> -h' for command flags.
`)
}

// commonFlags are shared by every capture command.
type commonFlags struct {
	configPath string
	plotPath   string
	width      int
	height     int
	measure    bool
	debug      bool
	quiet      bool
}

func addCommonFlags(fs *flag.FlagSet, cf *commonFlags) {
	fs.StringVar(&cf.configPath, "config", "", "path to a config.yaml (default: standard locations)")
	fs.StringVar(&cf.plotPath, "plot", "", "path to the plot payload JSON (required)")
	fs.IntVar(&cf.width, "width", 0, "viewport width override")
	fs.IntVar(&cf.height, "height", 0, "viewport height override")
	fs.BoolVar(&cf.measure, "measure", false, "resize the viewport to the rendered content")
	fs.BoolVar(&cf.debug, "debug", false, "show the browser window")
	fs.BoolVar(&cf.quiet, "quiet", false, "suppress progress output")
}

func cmdScreenshot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("screenshot", flag.ContinueOnError)
	var cf commonFlags
	addCommonFlags(fs, &cf)
	outPath := fs.String("out", "screenshot.png", "output PNG path")
	watch := fs.Bool("watch", false, "re-capture whenever the plot file changes")
	if err := fs.Parse(args); err != nil {
		return withExitCode(err, 2)
	}
	if cf.plotPath == "" {
		return withExitCode(fmt.Errorf("-plot is required"), 2)
	}

	p, err := newPipeline(ctx, cf)
	if err != nil {
		return err
	}
	defer p.Close()

	if *watch {
		return watchAndCapture(ctx, p, cf.plotPath, *outPath, cf.measure)
	}

	plot, err := readPlot(cf.plotPath)
	if err != nil {
		return withExitCode(err, 2)
	}
	if err := p.view.Render(ctx, plot, nil, cf.measure); err != nil {
		return err
	}
	path, err := p.driver.SaveImage(ctx, *outPath, nil)
	if err != nil {
		return err
	}
	p.status("wrote %s", path)
	return nil
}

func cmdSequence(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sequence", flag.ContinueOnError)
	var cf commonFlags
	addCommonFlags(fs, &cf)
	updatesPath := fs.String("updates", "", "path to the state updates JSON array (required)")
	outDir := fs.String("out-dir", ".", "output directory")
	base := fs.String("base", "screenshot", "filename base for numbered output")
	if err := fs.Parse(args); err != nil {
		return withExitCode(err, 2)
	}
	if cf.plotPath == "" || *updatesPath == "" {
		return withExitCode(fmt.Errorf("-plot and -updates are required"), 2)
	}

	plot, err := readPlot(cf.plotPath)
	if err != nil {
		return withExitCode(err, 2)
	}
	updates, err := readUpdates(*updatesPath)
	if err != nil {
		return withExitCode(err, 2)
	}

	p, err := newPipeline(ctx, cf)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.view.Render(ctx, plot, nil, cf.measure); err != nil {
		return err
	}
	paths, err := p.driver.SaveImageSequence(ctx, updates, *outDir, nil, *base)
	if err != nil {
		return err
	}
	p.status("wrote %d images to %s", len(paths), *outDir)
	return nil
}

func cmdVideo(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("video", flag.ContinueOnError)
	var cf commonFlags
	addCommonFlags(fs, &cf)
	updatesPath := fs.String("updates", "", "path to the state updates JSON array (required)")
	outPath := fs.String("out", "capture.mp4", "output video path (.mp4 or .gif)")
	fps := fs.Int("fps", 0, "output frame rate (default: config)")
	if err := fs.Parse(args); err != nil {
		return withExitCode(err, 2)
	}
	if cf.plotPath == "" || *updatesPath == "" {
		return withExitCode(fmt.Errorf("-plot and -updates are required"), 2)
	}

	plot, err := readPlot(cf.plotPath)
	if err != nil {
		return withExitCode(err, 2)
	}
	updates, err := readUpdates(*updatesPath)
	if err != nil {
		return withExitCode(err, 2)
	}

	p, err := newPipeline(ctx, cf)
	if err != nil {
		return err
	}
	defer p.Close()

	rate := *fps
	if rate <= 0 {
		rate = p.cfg.Capture.FPS
	}

	if err := p.view.Render(ctx, plot, nil, cf.measure); err != nil {
		return err
	}
	if err := p.driver.CaptureVideo(ctx, updates, rate, *outPath); err != nil {
		return err
	}
	p.status("wrote %s (%d frames at %d fps)", *outPath, len(updates), rate)
	return nil
}

func cmdPDF(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pdf", flag.ContinueOnError)
	var cf commonFlags
	addCommonFlags(fs, &cf)
	outPath := fs.String("out", "capture.pdf", "output PDF path")
	if err := fs.Parse(args); err != nil {
		return withExitCode(err, 2)
	}
	if cf.plotPath == "" {
		return withExitCode(fmt.Errorf("-plot is required"), 2)
	}

	plot, err := readPlot(cf.plotPath)
	if err != nil {
		return withExitCode(err, 2)
	}

	p, err := newPipeline(ctx, cf)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.view.Render(ctx, plot, nil, cf.measure); err != nil {
		return err
	}
	data, err := p.view.CapturePDF(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outPath, data, 0644); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	p.status("wrote %s (%d bytes)", *outPath, len(data))
	return nil
}

// readPlot reads a plot payload and verifies it is JSON.
func readPlot(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plot: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("plot file %s is not valid JSON", path)
	}
	return data, nil
}

// readUpdates reads a JSON array of state update records.
func readUpdates(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read updates: %w", err)
	}
	var updates []json.RawMessage
	if err := json.Unmarshal(data, &updates); err != nil {
		return nil, fmt.Errorf("updates file %s must be a JSON array: %w", path, err)
	}
	return updates, nil
}
