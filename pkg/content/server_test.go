package content

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fetch(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestServeDocumentAndAssets(t *testing.T) {
	html := `<!DOCTYPE html><html><head><script type="module" src="studio.js"></script></head><body><div id="studio"></div></body></html>`
	srv, err := Serve(html, map[string][]byte{
		"studio.js":      []byte("export const ready = true;"),
		"css/studio.css": []byte("body { margin: 0; }"),
	})
	require.NoError(t, err)
	defer srv.Shutdown()

	status, body := fetch(t, srv.BaseURL()+"/index.html")
	require.Equal(t, http.StatusOK, status)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	require.NoError(t, err)
	src, ok := doc.Find("script").Attr("src")
	require.True(t, ok)
	assert.Equal(t, "studio.js", src)
	assert.Equal(t, 1, doc.Find("#studio").Length())

	// Every auxiliary file must be fetchable at its relative path.
	status, body = fetch(t, srv.BaseURL()+"/studio.js")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "export const ready = true;", string(body))

	status, body = fetch(t, srv.BaseURL()+"/css/studio.css")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "body { margin: 0; }", string(body))
}

func TestShutdownRemovesTempDirAndStopsServing(t *testing.T) {
	srv, err := Serve("<html></html>", nil)
	require.NoError(t, err)

	dir := srv.Dir()
	url := srv.BaseURL()

	_, err = os.Stat(dir)
	require.NoError(t, err)

	require.NoError(t, srv.Shutdown())

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "temp directory should be removed")

	_, err = http.Get(url + "/index.html")
	assert.Error(t, err, "server should no longer accept connections")

	// Idempotent.
	assert.NoError(t, srv.Shutdown())
}

func TestEachServeGetsFreshInstance(t *testing.T) {
	first, err := Serve("<html>one</html>", nil)
	require.NoError(t, err)
	second, err := Serve("<html>two</html>", nil)
	require.NoError(t, err)
	defer second.Shutdown()

	assert.NotEqual(t, first.BaseURL(), second.BaseURL())
	assert.NotEqual(t, first.Dir(), second.Dir())
	require.NoError(t, first.Shutdown())

	status, body := fetch(t, second.BaseURL()+"/index.html")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "two")
}

func TestServeRejectsUnsafeAssetNames(t *testing.T) {
	tests := []struct {
		name  string
		asset string
	}{
		{name: "empty", asset: ""},
		{name: "absolute", asset: "/etc/passwd"},
		{name: "parent escape", asset: "../outside.js"},
		{name: "nested escape", asset: "a/../../outside.js"},
		{name: "reserved index", asset: "index.html"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Serve("<html></html>", map[string][]byte{tc.asset: []byte("x")})
			assert.Error(t, err)
		})
	}
}
