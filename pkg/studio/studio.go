// Package studio drives the GenStudio viewer inside a browser page: it loads
// the viewer shell, renders opaque plot payloads and forwards state updates.
// Plot semantics live entirely in the front-end runtime; this package only
// moves JSON across the evaluate boundary.
package studio

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/frogrocketlabs/genstudio/pkg/chrome"
	"github.com/frogrocketlabs/genstudio/pkg/logging"
)

// PageSession is the page-level surface the studio layer needs. It is
// satisfied by *chrome.Session.
type PageSession interface {
	LoadHTML(ctx context.Context, html string, files map[string][]byte) error
	Evaluate(ctx context.Context, expression string, opts chrome.EvaluateOptions) (json.RawMessage, error)
	Resize(ctx context.Context, width, height int, scale float64) error
	CaptureScreenshot(ctx context.Context) ([]byte, error)
	CapturePDF(ctx context.Context) ([]byte, error)
	Scale() float64
}

// Context binds one viewer instance inside a page session.
type Context struct {
	page   PageSession
	cfg    ViewerConfig
	id     string
	logger *logging.Logger
}

// NewContext creates a studio context over an already-started page session.
func NewContext(page PageSession, cfg ViewerConfig, logger *logging.Logger) *Context {
	return &Context{
		page:   page,
		cfg:    cfg,
		id:     uuid.NewString(),
		logger: logger,
	}
}

// ID returns the viewer instance identifier used in page-side calls.
func (c *Context) ID() string { return c.id }

// EnsureLoaded loads the viewer shell unless the page already carries it.
func (c *Context) EnsureLoaded(ctx context.Context) error {
	value, err := c.page.Evaluate(ctx, `typeof window.genstudio === 'object'`, chrome.EvaluateOptions{
		ReturnByValue: true,
	})
	if err != nil {
		return err
	}
	var loaded bool
	if len(value) > 0 {
		_ = json.Unmarshal(value, &loaded)
	}
	if loaded {
		c.logger.Debug(logging.CategoryStudio, "shell_cached", "viewer already loaded", nil)
		return nil
	}

	html, files := shellDocument(c.cfg)
	if err := c.page.LoadHTML(ctx, html, files); err != nil {
		return err
	}
	c.logger.Info(logging.CategoryStudio, "shell_loaded", "", map[string]any{"instance": c.id})
	return nil
}

// Render loads the viewer shell if needed, renders the plot payload and waits
// for the instance to report readiness. When measure is true the session is
// resized to the rendered container afterwards.
func (c *Context) Render(ctx context.Context, plot json.RawMessage, buffers [][]byte, measure bool) error {
	if len(plot) == 0 {
		return fmt.Errorf("plot payload must not be empty")
	}
	if err := c.EnsureLoaded(ctx); err != nil {
		return err
	}

	if buffers == nil {
		buffers = [][]byte{}
	}
	encodedBuffers, err := json.Marshal(buffers)
	if err != nil {
		return fmt.Errorf("encode buffers: %w", err)
	}

	renderJS := fmt.Sprintf(`
(async () => {
  window.genstudio.renderData('studio', %s, %s, '%s');
  await window.genstudio.whenReady('%s');
})()`, plot, encodedBuffers, c.id, c.id)

	if _, err := c.page.Evaluate(ctx, renderJS, chrome.EvaluateOptions{AwaitPromise: true}); err != nil {
		return err
	}
	c.logger.Info(logging.CategoryStudio, "plot_rendered", "", map[string]any{
		"instance": c.id,
		"buffers":  len(buffers),
	})

	if measure {
		return c.FitToContent(ctx)
	}
	return nil
}

// UpdateState forwards opaque state updates to the live viewer instance and
// waits until it has applied them.
func (c *Context) UpdateState(ctx context.Context, updates []json.RawMessage) (json.RawMessage, error) {
	encoded, err := json.Marshal(updates)
	if err != nil {
		return nil, fmt.Errorf("encode state updates: %w", err)
	}

	updateJS := fmt.Sprintf(`
(async function() {
  const updates = %s;
  const result = window.genstudio.instances['%s'].updateWithBuffers(updates, []);
  await window.genstudio.whenReady('%s');
  return result;
})()`, encoded, c.id, c.id)

	return c.page.Evaluate(ctx, updateJS, chrome.EvaluateOptions{AwaitPromise: true, ReturnByValue: true})
}

// ApplyState applies one state update. It satisfies the capture driver's page
// interface.
func (c *Context) ApplyState(ctx context.Context, update json.RawMessage) error {
	_, err := c.UpdateState(ctx, []json.RawMessage{update})
	return err
}

// CaptureScreenshot captures the current viewport.
func (c *Context) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	return c.page.CaptureScreenshot(ctx)
}

type containerSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// MeasureSize reports the rendered container's dimensions. ok is false when
// no container exists in the page.
func (c *Context) MeasureSize(ctx context.Context) (width, height int, ok bool, err error) {
	value, err := c.page.Evaluate(ctx, `
(function() {
  const container = document.querySelector('.genstudio-container');
  if (!container) return null;
  const rect = container.getBoundingClientRect();
  return { width: Math.ceil(rect.width), height: Math.ceil(rect.height) };
})()`, chrome.EvaluateOptions{ReturnByValue: true})
	if err != nil {
		return 0, 0, false, err
	}
	if len(value) == 0 || string(value) == "null" {
		return 0, 0, false, nil
	}
	var size containerSize
	if err := json.Unmarshal(value, &size); err != nil {
		return 0, 0, false, fmt.Errorf("decode container size: %w", err)
	}
	return size.Width, size.Height, true, nil
}

// FitToContent resizes the session viewport to the rendered container.
func (c *Context) FitToContent(ctx context.Context) error {
	width, height, ok, err := c.MeasureSize(ctx)
	if err != nil {
		return err
	}
	if !ok || width <= 0 || height <= 0 {
		return nil
	}
	c.logger.Debug(logging.CategoryStudio, "container_measured", "", map[string]any{
		"width": width, "height": height,
	})
	return c.page.Resize(ctx, width, height, c.page.Scale())
}

// CapturePDF prints the page to PDF, swapping live 3D canvases for static
// images around the print via the viewer's pdf hooks.
func (c *Context) CapturePDF(ctx context.Context) ([]byte, error) {
	if _, err := c.page.Evaluate(ctx, fmt.Sprintf(`window.genstudio.beforePDF('%s');`, c.id), chrome.EvaluateOptions{AwaitPromise: true}); err != nil {
		return nil, err
	}
	data, err := c.page.CapturePDF(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := c.page.Evaluate(ctx, fmt.Sprintf(`window.genstudio.afterPDF('%s');`, c.id), chrome.EvaluateOptions{AwaitPromise: true}); err != nil {
		return nil, err
	}
	return data, nil
}
