package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const blankPageURL = "about:blank"

// Target describes one inspectable unit exposed by the debugging endpoint.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// listTargets fetches the open targets from the local discovery endpoint.
func listTargets(ctx context.Context, discoveryURL string) ([]Target, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery endpoint returned %d", resp.StatusCode)
	}

	var targets []Target
	if err := json.Unmarshal(body, &targets); err != nil {
		return nil, fmt.Errorf("decode target list: %w", err)
	}
	return targets, nil
}

// selectPageTarget picks the page target to attach to. When several pages are
// open, the blank placeholder created at launch is preferred so an operator's
// own tabs are never hijacked.
func selectPageTarget(targets []Target) (Target, bool) {
	var pages []Target
	for _, t := range targets {
		if t.Type == "page" && t.WebSocketDebuggerURL != "" {
			pages = append(pages, t)
		}
	}
	if len(pages) == 0 {
		return Target{}, false
	}
	if len(pages) > 1 {
		for _, t := range pages {
			if t.URL == blankPageURL {
				return t, true
			}
		}
	}
	return pages[0], true
}

// awaitPageTarget polls the discovery endpoint until a page target appears or
// the deadline passes.
func awaitPageTarget(ctx context.Context, discoveryURL string, timeout time.Duration) (Target, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return Target{}, err
		}
		targets, err := listTargets(ctx, discoveryURL)
		if err == nil {
			if target, ok := selectPageTarget(targets); ok {
				return target, nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return Target{}, ErrStartupTimeout
}
