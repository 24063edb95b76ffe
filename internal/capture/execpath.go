package capture

import (
	"os"
	"os/exec"
	"strings"
)

var browserNames = []string{
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"chrome",
	"headless_shell",
	"msedge",
}

// FindExecPath locates a Chrome or Chromium binary. An explicit path wins,
// then CHROME_PATH and CHROMEDP_EXEC_PATH, then well-known names on PATH.
func FindExecPath(explicit string) (string, bool) {
	candidates := []string{
		explicit,
		os.Getenv("CHROME_PATH"),
		os.Getenv("CHROMEDP_EXEC_PATH"),
	}
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if stat, err := os.Stat(candidate); err == nil && !stat.IsDir() {
			return candidate, true
		}
	}
	for _, name := range browserNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}
