package chrome

import "encoding/json"

// Devtools wire format: commands carry {id, method, params}, responses carry
// {id, result} or {id, error}, unsolicited events carry {method, params}
// without an id.
type wireMessage struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

const (
	methodPageEnable        = "Page.enable"
	methodRuntimeEnable     = "Runtime.enable"
	methodPageNavigate      = "Page.navigate"
	methodRuntimeEvaluate   = "Runtime.evaluate"
	methodCaptureScreenshot = "Page.captureScreenshot"
	methodPrintToPDF        = "Page.printToPDF"
	methodSetDeviceMetrics  = "Emulation.setDeviceMetricsOverride"
	methodGetWindowForTgt   = "Browser.getWindowForTarget"
	methodSetWindowBounds   = "Browser.setWindowBounds"

	eventPageLoadFired = "Page.loadEventFired"
)

type navigateParams struct {
	URL string `json:"url"`
}

type navigateResult struct {
	FrameID   string `json:"frameId"`
	ErrorText string `json:"errorText,omitempty"`
}

type evaluateParams struct {
	Expression    string `json:"expression"`
	AwaitPromise  bool   `json:"awaitPromise,omitempty"`
	ReturnByValue bool   `json:"returnByValue,omitempty"`
}

type remoteObject struct {
	Type        string          `json:"type,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Description string          `json:"description,omitempty"`
}

type exceptionDetails struct {
	Text      string        `json:"text"`
	Exception *remoteObject `json:"exception,omitempty"`
}

type evaluateResult struct {
	Result           remoteObject      `json:"result"`
	ExceptionDetails *exceptionDetails `json:"exceptionDetails,omitempty"`
}

type viewportClip struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"scale"`
}

type captureScreenshotParams struct {
	Format                string        `json:"format"`
	Clip                  *viewportClip `json:"clip,omitempty"`
	CaptureBeyondViewport bool          `json:"captureBeyondViewport,omitempty"`
}

type captureScreenshotResult struct {
	Data string `json:"data"`
}

type printToPDFParams struct {
	PrintBackground   bool `json:"printBackground,omitempty"`
	PreferCSSPageSize bool `json:"preferCSSPageSize,omitempty"`
}

type printToPDFResult struct {
	Data string `json:"data"`
}

type setDeviceMetricsParams struct {
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	DeviceScaleFactor float64 `json:"deviceScaleFactor"`
	Mobile            bool    `json:"mobile"`
}

type windowBounds struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

type getWindowForTargetResult struct {
	WindowID int64 `json:"windowId"`
}

type setWindowBoundsParams struct {
	WindowID int64        `json:"windowId"`
	Bounds   windowBounds `json:"bounds"`
}
