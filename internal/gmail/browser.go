package gmail

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// openBrowser asks the desktop to open rawURL. Only http(s) URLs are allowed.
func openBrowser(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("refusing to open non-HTTP URL %q", rawURL)
	}

	var name string
	var args []string
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "linux", "freebsd", "openbsd":
		name = "xdg-open"
	case "windows":
		name, args = "rundll32", []string{"url.dll,FileProtocolHandler"}
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	return exec.Command(name, append(args, rawURL)...).Start()
}
