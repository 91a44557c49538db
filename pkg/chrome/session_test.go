package chrome

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandler receives each command sent by the session and drives the fake
// devtools endpoint's side of the conversation.
type fakeHandler func(conn *websocket.Conn, msg wireMessage)

func newTestSession(t *testing.T, handler fakeHandler) *Session {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg wireMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			handler(conn, msg)
		}
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	sess, err := NewSession(Config{})
	require.NoError(t, err)
	sess.conn = conn
	sess.started = true
	return sess
}

func respond(conn *websocket.Conn, id int64, result any) {
	raw, _ := json.Marshal(result)
	_ = conn.WriteJSON(wireMessage{ID: id, Result: raw})
}

func emitEvent(conn *websocket.Conn, method string, params any) {
	raw, _ := json.Marshal(params)
	_ = conn.WriteJSON(wireMessage{Method: method, Params: raw})
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func TestSendParksInterleavedEvents(t *testing.T) {
	sess := newTestSession(t, func(conn *websocket.Conn, msg wireMessage) {
		// An unsolicited event arrives before the command's own response.
		emitEvent(conn, "Page.frameNavigated", map[string]any{"frame": "F1"})
		respond(conn, msg.ID, map[string]any{"ok": true})
	})

	result, err := sess.send(context.Background(), "Custom.command", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))

	// The interleaved event was parked, not dropped.
	params, err := sess.waitEvent(context.Background(), "Page.frameNavigated")
	require.NoError(t, err)
	assert.JSONEq(t, `{"frame":"F1"}`, string(params))
}

func TestSendProtocolError(t *testing.T) {
	sess := newTestSession(t, func(conn *websocket.Conn, msg wireMessage) {
		_ = conn.WriteJSON(wireMessage{ID: msg.ID, Error: &wireError{Code: -32000, Message: "not allowed"}})
	})

	_, err := sess.send(context.Background(), "Page.navigate", navigateParams{URL: "http://x"})
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, "Page.navigate", protoErr.Method)
	assert.Equal(t, int64(-32000), protoErr.Code)
	assert.Contains(t, protoErr.Message, "not allowed")
}

func TestSendAfterStopReturnsSessionClosed(t *testing.T) {
	sess := newTestSession(t, func(conn *websocket.Conn, msg wireMessage) {
		respond(conn, msg.ID, struct{}{})
	})

	require.NoError(t, sess.Stop())
	require.NoError(t, sess.Stop(), "stop must be idempotent")

	_, err := sess.send(context.Background(), "Page.enable", nil)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestEvaluateReturnsValue(t *testing.T) {
	sess := newTestSession(t, func(conn *websocket.Conn, msg wireMessage) {
		var params evaluateParams
		_ = json.Unmarshal(msg.Params, &params)
		if !strings.Contains(params.Expression, "1 + 2") {
			respond(conn, msg.ID, evaluateResult{})
			return
		}
		respond(conn, msg.ID, evaluateResult{Result: remoteObject{Type: "number", Value: json.RawMessage("3")}})
	})

	value, err := sess.Evaluate(context.Background(), "1 + 2", EvaluateOptions{ReturnByValue: true})
	require.NoError(t, err)
	assert.Equal(t, "3", string(value))
}

func TestEvaluateThrownExceptionSurfacesMessage(t *testing.T) {
	sess := newTestSession(t, func(conn *websocket.Conn, msg wireMessage) {
		respond(conn, msg.ID, evaluateResult{
			Result: remoteObject{Type: "object"},
			ExceptionDetails: &exceptionDetails{
				Text:      "Uncaught",
				Exception: &remoteObject{Description: "Error: render failed"},
			},
		})
	})

	_, err := sess.Evaluate(context.Background(), `throw new Error("render failed")`, EvaluateOptions{})
	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Contains(t, evalErr.Error(), "render failed")
}

func TestCaptureScreenshotDecodesPayload(t *testing.T) {
	img := pngBytes(t, 800, 600)
	sess := newTestSession(t, func(conn *websocket.Conn, msg wireMessage) {
		var params captureScreenshotParams
		_ = json.Unmarshal(msg.Params, &params)
		if params.Format != "png" || params.Clip == nil || params.Clip.Width != 800 {
			_ = conn.WriteJSON(wireMessage{ID: msg.ID, Error: &wireError{Message: "bad clip"}})
			return
		}
		respond(conn, msg.ID, captureScreenshotResult{Data: base64.StdEncoding.EncodeToString(img)})
	})

	data, err := sess.CaptureScreenshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, img, data)

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, sess.Width(), cfg.Width)
	assert.Equal(t, sess.Height(), cfg.Height)
}

func TestCaptureScreenshotWithoutDataFails(t *testing.T) {
	sess := newTestSession(t, func(conn *websocket.Conn, msg wireMessage) {
		respond(conn, msg.ID, captureScreenshotResult{})
	})

	_, err := sess.CaptureScreenshot(context.Background())
	assert.ErrorIs(t, err, ErrNoImageData)
}

func TestResizeUpdatesViewport(t *testing.T) {
	var boundsSet, metricsSet bool
	sess := newTestSession(t, func(conn *websocket.Conn, msg wireMessage) {
		switch msg.Method {
		case methodGetWindowForTgt:
			respond(conn, msg.ID, getWindowForTargetResult{WindowID: 7})
		case methodSetWindowBounds:
			var params setWindowBoundsParams
			_ = json.Unmarshal(msg.Params, &params)
			boundsSet = params.WindowID == 7 && params.Bounds.Width == 1024
			respond(conn, msg.ID, struct{}{})
		case methodSetDeviceMetrics:
			var params setDeviceMetricsParams
			_ = json.Unmarshal(msg.Params, &params)
			metricsSet = params.Width == 1024 && params.DeviceScaleFactor == 2
			respond(conn, msg.ID, struct{}{})
		default:
			respond(conn, msg.ID, struct{}{})
		}
	})

	require.NoError(t, sess.Resize(context.Background(), 1024, 768, 2))
	assert.True(t, boundsSet)
	assert.True(t, metricsSet)
	assert.Equal(t, 1024, sess.Width())
	assert.Equal(t, 768, sess.Height())
	assert.Equal(t, 2.0, sess.Scale())
}

func TestLoadHTMLServesFilesUntilLoadEventFires(t *testing.T) {
	sess := newTestSession(t, func(conn *websocket.Conn, msg wireMessage) {
		if msg.Method != methodPageNavigate {
			respond(conn, msg.ID, struct{}{})
			return
		}
		var params navigateParams
		_ = json.Unmarshal(msg.Params, &params)

		// Before load completes, the document and every auxiliary file must
		// be fetchable at its relative path from the served origin.
		base := strings.TrimSuffix(params.URL, "/index.html")
		for _, path := range []string{"/index.html", "/studio.js", "/data/points.json"} {
			resp, err := http.Get(base + path)
			if err != nil || resp.StatusCode != http.StatusOK {
				_ = conn.WriteJSON(wireMessage{ID: msg.ID, Error: &wireError{Message: fmt.Sprintf("missing %s", path)}})
				return
			}
			resp.Body.Close()
		}

		respond(conn, msg.ID, navigateResult{FrameID: "F1"})
		emitEvent(conn, eventPageLoadFired, map[string]any{"timestamp": 1.0})
	})

	err := sess.LoadHTML(context.Background(), "<html><body>plot</body></html>", map[string][]byte{
		"studio.js":        []byte("export {}"),
		"data/points.json": []byte("[1,2,3]"),
	})
	require.NoError(t, err)
}

func TestLoadHTMLLoadEventBeforeNavigateResponse(t *testing.T) {
	sess := newTestSession(t, func(conn *websocket.Conn, msg wireMessage) {
		if msg.Method != methodPageNavigate {
			respond(conn, msg.ID, struct{}{})
			return
		}
		// Fast local loads can announce completion before the navigate
		// acknowledgment is read; the event must not be lost.
		emitEvent(conn, eventPageLoadFired, map[string]any{"timestamp": 2.0})
		respond(conn, msg.ID, navigateResult{FrameID: "F1"})
	})

	err := sess.LoadHTML(context.Background(), "<html></html>", nil)
	require.NoError(t, err)
}

func TestLoadHTMLConnectionLostBeforeLoadEvent(t *testing.T) {
	sess := newTestSession(t, func(conn *websocket.Conn, msg wireMessage) {
		if msg.Method == methodPageNavigate {
			respond(conn, msg.ID, navigateResult{FrameID: "F1"})
			_ = conn.Close()
			return
		}
		respond(conn, msg.ID, struct{}{})
	})

	err := sess.LoadHTML(context.Background(), "<html></html>", nil)
	assert.ErrorIs(t, err, ErrConnectionLost)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}, wantErr: false},
		{name: "zero port", mutate: func(c *Config) { c.Port = -1 }, wantErr: true},
		{name: "port too large", mutate: func(c *Config) { c.Port = 70000 }, wantErr: true},
		{name: "zero width", mutate: func(c *Config) { c.Width = -10 }, wantErr: true},
		{name: "negative scale", mutate: func(c *Config) { c.Scale = -1 }, wantErr: true},
		{name: "negative timeout", mutate: func(c *Config) { c.StartupTimeout = -1 }, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewSessionRejectsInvalidConfig(t *testing.T) {
	_, err := NewSession(Config{Scale: -2})
	require.Error(t, err)

	sess, err := NewSession(Config{Width: 1024, Height: 768, Scale: 2})
	require.NoError(t, err)
	assert.Equal(t, 1024, sess.Width())
	assert.Equal(t, 768, sess.Height())
	assert.Equal(t, 2.0, sess.Scale())
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, IsConnectionError(fmt.Errorf("wrapped: %w", ErrConnectionLost)))
	assert.False(t, IsConnectionError(errors.New("other")))
	assert.False(t, IsConnectionError(nil))
}
