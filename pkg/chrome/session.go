package chrome

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/frogrocketlabs/genstudio/pkg/content"
	"github.com/frogrocketlabs/genstudio/pkg/logging"
)

const stopGracePeriod = 5 * time.Second

// Session owns one headless Chrome process and one devtools connection.
// Commands are strictly sequential: a Session must not be shared across
// goroutines issuing commands concurrently.
type Session struct {
	cfg    Config
	logger *logging.Logger

	mu      sync.Mutex
	started bool
	closed  bool

	cmd      *exec.Cmd
	waitDone chan struct{}
	conn     *websocket.Conn
	nextID   int64

	// Unsolicited events read while waiting for an id-matched response are
	// parked here so a later named-event wait cannot miss them.
	events []wireMessage

	width  int
	height int
	scale  float64
}

// NewSession creates a session from the given config without starting Chrome.
func NewSession(cfg Config) (*Session, error) {
	merged := cfg.withDefaults()
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		cfg:    merged,
		logger: merged.Logger,
		width:  merged.Width,
		height: merged.Height,
		scale:  merged.Scale,
	}, nil
}

// Width returns the current capture viewport width.
func (s *Session) Width() int { return s.width }

// Height returns the current capture viewport height.
func (s *Session) Height() int { return s.height }

// Scale returns the current device scale factor.
func (s *Session) Scale() float64 { return s.scale }

// Start launches Chrome, waits for the debugging endpoint to expose a page
// target, connects to it and enables the Page and Runtime event streams.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	execPath := s.cfg.ExecutablePath
	if execPath == "" {
		located, err := LocateExecutable()
		if err != nil {
			return err
		}
		execPath = located
	}

	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", s.cfg.Port),
		"--remote-allow-origins=*",
	}
	if !s.cfg.Debug {
		args = append(args, "--headless=new")
	}
	args = append(args,
		"--no-sandbox",
		"--no-first-run",
		"--hide-scrollbars",
		fmt.Sprintf("--window-size=%d,%d", s.width, s.height),
		blankPageURL,
	)

	cmd := exec.Command(execPath, args...)
	if s.cfg.BrowserOutput != nil {
		cmd.Stdout = s.cfg.BrowserOutput
		cmd.Stderr = s.cfg.BrowserOutput
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start chrome: %w", err)
	}
	waitDone := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(waitDone)
	}()

	s.logger.Info(logging.CategoryBrowser, "browser_started", "chrome process launched", map[string]any{
		"path": execPath,
		"port": s.cfg.Port,
		"pid":  cmd.Process.Pid,
	})

	discoveryURL := fmt.Sprintf("http://127.0.0.1:%d/json", s.cfg.Port)
	target, err := awaitPageTarget(ctx, discoveryURL, s.cfg.StartupTimeout)
	if err != nil {
		terminateProcess(cmd, waitDone)
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, target.WebSocketDebuggerURL, nil)
	if err != nil {
		terminateProcess(cmd, waitDone)
		return fmt.Errorf("connect devtools socket %s: %w", target.WebSocketDebuggerURL, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		terminateProcess(cmd, waitDone)
		return ErrSessionClosed
	}
	s.cmd = cmd
	s.waitDone = waitDone
	s.conn = conn
	s.started = true
	s.mu.Unlock()

	for _, method := range []string{methodPageEnable, methodRuntimeEnable} {
		if _, err := s.send(ctx, method, nil); err != nil {
			_ = s.Stop()
			return err
		}
	}

	s.logger.Info(logging.CategoryProtocol, "session_connected", "devtools connection established", map[string]any{
		"target_url": target.URL,
	})
	return nil
}

// Stop closes the devtools connection and terminates Chrome. It is idempotent
// and safe to call from an error-unwind path or any session state.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	cmd := s.cmd
	waitDone := s.waitDone
	s.conn = nil
	s.cmd = nil
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if cmd != nil {
		terminateProcess(cmd, waitDone)
	}

	s.logger.Info(logging.CategoryBrowser, "browser_stopped", "chrome session stopped", nil)
	return nil
}

// terminateProcess asks the process to exit and kills it after a grace period.
func terminateProcess(cmd *exec.Cmd, waitDone chan struct{}) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	if waitDone != nil {
		select {
		case <-waitDone:
			return
		case <-time.After(stopGracePeriod):
		}
	}
	_ = cmd.Process.Kill()
	if waitDone != nil {
		<-waitDone
	}
}

func (s *Session) ensureOpen() (*websocket.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.conn == nil {
		return nil, fmt.Errorf("%w: session not started", ErrSessionClosed)
	}
	return s.conn, nil
}

// send issues one command and blocks until the response with a matching id
// arrives. Event notifications read in the meantime are parked, not dropped.
func (s *Session) send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	conn, err := s.ensureOpen()
	if err != nil {
		return nil, err
	}
	if err := applyReadDeadline(conn, ctx); err != nil {
		return nil, err
	}

	var rawParams json.RawMessage
	if params != nil {
		rawParams, err = json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal %s params: %w", method, err)
		}
	}

	s.nextID++
	id := s.nextID
	msg := wireMessage{ID: id, Method: method, Params: rawParams}
	if err := conn.WriteJSON(msg); err != nil {
		return nil, fmt.Errorf("%w: write %s: %v", ErrConnectionLost, method, err)
	}

	s.logger.Debug(logging.CategoryProtocol, "command_sent", method, map[string]any{"id": id})

	for {
		var resp wireMessage
		if err := conn.ReadJSON(&resp); err != nil {
			return nil, fmt.Errorf("%w: awaiting %s response: %v", ErrConnectionLost, method, err)
		}
		if resp.ID == id {
			if resp.Error != nil {
				return nil, &ProtocolError{Method: method, Code: resp.Error.Code, Message: resp.Error.Message}
			}
			return resp.Result, nil
		}
		if resp.Method != "" {
			s.events = append(s.events, resp)
		}
	}
}

// waitEvent blocks until the named unsolicited event is observed, consuming
// any parked copy first.
func (s *Session) waitEvent(ctx context.Context, name string) (json.RawMessage, error) {
	conn, err := s.ensureOpen()
	if err != nil {
		return nil, err
	}
	if err := applyReadDeadline(conn, ctx); err != nil {
		return nil, err
	}

	for i, evt := range s.events {
		if evt.Method == name {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return evt.Params, nil
		}
	}

	for {
		var msg wireMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return nil, fmt.Errorf("%w: awaiting %s event: %v", ErrConnectionLost, name, err)
		}
		if msg.Method == name {
			return msg.Params, nil
		}
		if msg.Method != "" {
			s.events = append(s.events, msg)
		}
	}
}

// dropEvents discards parked events with the given name so a stale copy from
// an earlier navigation cannot satisfy a fresh wait.
func (s *Session) dropEvents(name string) {
	kept := s.events[:0]
	for _, evt := range s.events {
		if evt.Method != name {
			kept = append(kept, evt)
		}
	}
	s.events = kept
}

func applyReadDeadline(conn *websocket.Conn, ctx context.Context) error {
	if ctx == nil {
		return conn.SetReadDeadline(time.Time{})
	}
	if deadline, ok := ctx.Deadline(); ok {
		return conn.SetReadDeadline(deadline)
	}
	return conn.SetReadDeadline(time.Time{})
}

// Resize sets the window bounds and the device metrics override so captures
// come out at the requested dimensions.
func (s *Session) Resize(ctx context.Context, width, height int, scale float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("viewport dimensions must be greater than zero")
	}
	if scale <= 0 {
		scale = s.scale
	}

	var window getWindowForTargetResult
	raw, err := s.send(ctx, methodGetWindowForTgt, struct{}{})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, &window); err != nil {
		return fmt.Errorf("decode window id: %w", err)
	}
	if _, err := s.send(ctx, methodSetWindowBounds, setWindowBoundsParams{
		WindowID: window.WindowID,
		Bounds:   windowBounds{Width: width, Height: height},
	}); err != nil {
		return err
	}

	if _, err := s.send(ctx, methodSetDeviceMetrics, setDeviceMetricsParams{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: scale,
		Mobile:            false,
	}); err != nil {
		return err
	}

	s.width = width
	s.height = height
	s.scale = scale

	s.logger.Debug(logging.CategoryBrowser, "viewport_resized", "", map[string]any{
		"width": width, "height": height, "scale": scale,
	})
	return nil
}

// LoadHTML serves the document and auxiliary files from a content server
// scoped to this call, navigates to it, and blocks until the page fires its
// load event. The server is torn down before LoadHTML returns.
func (s *Session) LoadHTML(ctx context.Context, html string, files map[string][]byte) error {
	if _, err := s.ensureOpen(); err != nil {
		return err
	}

	srv, err := content.Serve(html, files)
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Shutdown(); err != nil {
			s.logger.Warn(logging.CategoryServer, "shutdown_failed", err.Error(), nil)
		}
	}()

	s.logger.Info(logging.CategoryServer, "document_served", "", map[string]any{
		"base_url": srv.BaseURL(),
		"files":    len(files),
	})

	s.dropEvents(eventPageLoadFired)

	raw, err := s.send(ctx, methodPageNavigate, navigateParams{URL: srv.BaseURL() + "/index.html"})
	if err != nil {
		return err
	}
	var nav navigateResult
	if err := json.Unmarshal(raw, &nav); err != nil {
		return fmt.Errorf("decode navigate result: %w", err)
	}
	if nav.ErrorText != "" {
		return &ProtocolError{Method: methodPageNavigate, Message: nav.ErrorText}
	}

	if _, err := s.waitEvent(ctx, eventPageLoadFired); err != nil {
		return err
	}
	return nil
}

// EvaluateOptions control script evaluation in the page context.
type EvaluateOptions struct {
	// AwaitPromise resolves an async result remotely before replying. This is
	// the only place page-defined asynchronous work is awaited, and it may
	// block for as long as the page takes.
	AwaitPromise bool
	// ReturnByValue serializes the result back as JSON.
	ReturnByValue bool
}

// Evaluate runs a script expression in the page and returns its value as raw
// JSON. A thrown page exception surfaces as *EvaluationError.
func (s *Session) Evaluate(ctx context.Context, expression string, opts EvaluateOptions) (json.RawMessage, error) {
	raw, err := s.send(ctx, methodRuntimeEvaluate, evaluateParams{
		Expression:    expression,
		AwaitPromise:  opts.AwaitPromise,
		ReturnByValue: opts.ReturnByValue,
	})
	if err != nil {
		return nil, err
	}

	var result evaluateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode evaluate result: %w", err)
	}
	if result.ExceptionDetails != nil {
		evalErr := &EvaluationError{Text: result.ExceptionDetails.Text}
		if exc := result.ExceptionDetails.Exception; exc != nil {
			evalErr.Exception = exc.Description
			if evalErr.Exception == "" && len(exc.Value) > 0 {
				evalErr.Exception = string(exc.Value)
			}
		}
		return nil, evalErr
	}
	return result.Result.Value, nil
}

// CaptureScreenshot captures a PNG of the current viewport sized to the
// session's width, height and scale.
func (s *Session) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	raw, err := s.send(ctx, methodCaptureScreenshot, captureScreenshotParams{
		Format: "png",
		Clip: &viewportClip{
			X:      0,
			Y:      0,
			Width:  float64(s.width),
			Height: float64(s.height),
			Scale:  1,
		},
		CaptureBeyondViewport: true,
	})
	if err != nil {
		return nil, err
	}

	var result captureScreenshotResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode screenshot result: %w", err)
	}
	if result.Data == "" {
		return nil, ErrNoImageData
	}
	data, err := base64.StdEncoding.DecodeString(result.Data)
	if err != nil {
		return nil, fmt.Errorf("decode screenshot payload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoImageData
	}
	return data, nil
}

// CapturePDF prints the current page to PDF bytes.
func (s *Session) CapturePDF(ctx context.Context) ([]byte, error) {
	raw, err := s.send(ctx, methodPrintToPDF, printToPDFParams{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, err
	}

	var result printToPDFResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode pdf result: %w", err)
	}
	if result.Data == "" {
		return nil, fmt.Errorf("%w: empty pdf payload", ErrNoImageData)
	}
	data, err := base64.StdEncoding.DecodeString(result.Data)
	if err != nil {
		return nil, fmt.Errorf("decode pdf payload: %w", err)
	}
	return data, nil
}
