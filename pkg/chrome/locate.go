package chrome

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// pathCandidates returns well-known install locations for the current OS.
func pathCandidates() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "windows":
		return []string{
			filepath.Join(os.Getenv("ProgramFiles"), "Google/Chrome/Application/chrome.exe"),
			filepath.Join(os.Getenv("ProgramFiles(x86)"), "Google/Chrome/Application/chrome.exe"),
			filepath.Join(os.Getenv("LocalAppData"), "Google/Chrome/Application/chrome.exe"),
		}
	default:
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
		}
	}
}

var pathCommands = []string{"google-chrome", "chromium", "chromium-browser", "chrome"}

// LocateExecutable finds a Chrome or Chromium binary. The CHROME_PATH
// environment variable wins, then PATH entries, then well-known install
// locations for the current OS.
func LocateExecutable() (string, error) {
	if envPath := os.Getenv("CHROME_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	for _, cmd := range pathCommands {
		if path, err := exec.LookPath(cmd); err == nil {
			return path, nil
		}
	}

	for _, path := range pathCandidates() {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", ErrChromeNotFound
}
