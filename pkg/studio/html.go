package studio

import "fmt"

// ViewerConfig selects where the viewer runtime and stylesheet come from.
// A URL serves the asset from a CDN; inline content is written next to the
// document and served locally instead.
type ViewerConfig struct {
	ScriptURL string
	Script    []byte
	StyleURL  string
	Style     []byte
}

const (
	localScriptName = "studio.js"
	localStyleName  = "studio.css"
)

// shellDocument builds the HTML shell hosting the viewer, returning the
// document and the auxiliary files it references.
func shellDocument(cfg ViewerConfig) (string, map[string][]byte) {
	files := make(map[string][]byte)

	scriptTag := ""
	switch {
	case cfg.ScriptURL != "":
		scriptTag = fmt.Sprintf(`<script type="module" src="%s"></script>`, cfg.ScriptURL)
	case len(cfg.Script) > 0:
		scriptTag = fmt.Sprintf(`<script type="module" src="%s"></script>`, localScriptName)
		files[localScriptName] = cfg.Script
	}

	styleTag := ""
	switch {
	case cfg.StyleURL != "":
		styleTag = fmt.Sprintf(`<style>@import "%s";</style>`, cfg.StyleURL)
	case len(cfg.Style) > 0:
		styleTag = fmt.Sprintf(`<style>@import "%s";</style>`, localStyleName)
		files[localStyleName] = cfg.Style
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>GenStudio</title>
    %s
    %s
</head>
<body>
    <div id="studio"></div>
</body>
</html>`, styleTag, scriptTag)

	return html, files
}
