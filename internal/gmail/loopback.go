package gmail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finsync/internal/model"

	"go.uber.org/zap"
)

// LoopbackPrompt is where AuthorizeLoopback reports progress and reads a
// pasted redirect URL when the browser cannot reach the loopback listener.
type LoopbackPrompt struct {
	Out     io.Writer
	In      io.Reader
	Timeout time.Duration
	// OpenBrowser launches the desktop browser on the consent URL.
	OpenBrowser bool
}

// AuthorizeLoopback runs the consent flow for a terminal user. It listens on a
// random 127.0.0.1 port, prints the consent URL and waits for the provider to
// redirect back. If the redirect does not arrive before the timeout, the full
// redirect URL can be pasted instead.
func (f *AuthFlow) AuthorizeLoopback(ctx context.Context, userID string, p LoopbackPrompt) error {
	if p.Timeout <= 0 {
		p.Timeout = 2 * time.Minute
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen on loopback: %w", err)
	}
	redirect := fmt.Sprintf("http://127.0.0.1:%d/", ln.Addr().(*net.TCPAddr).Port)

	type callback struct{ code, state string }
	resCh := make(chan callback, 1)

	mux := http.NewServeMux()
	srv := &http.Server{ReadHeaderTimeout: 5 * time.Second, Handler: mux}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("code") == "" {
			http.Error(w, "Missing 'code' parameter", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Mailbox connected. You can close this window.")
		select {
		case resCh <- callback{code: q.Get("code"), state: q.Get("state")}:
		default:
		}
	})
	go func() { _ = srv.Serve(ln) }()
	defer srv.Shutdown(context.Background())

	authURL, err := f.ConsentURL(userID, redirect)
	if err != nil {
		return err
	}
	if p.OpenBrowser {
		if err := openBrowser(authURL); err != nil {
			f.log.Debug("browser not opened", zap.Error(err))
		}
		fmt.Fprintln(p.Out, "A browser window will open. If it does not, open this URL:")
	} else {
		fmt.Fprintln(p.Out, "Open this URL in your browser to connect the mailbox:")
	}
	fmt.Fprintln(p.Out, authURL)
	fmt.Fprintf(p.Out, "Waiting for redirect on %s\n", redirect)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case cb := <-resCh:
		_, err := f.CompleteExchange(ctx, cb.code, cb.state, redirect)
		return err
	case <-time.After(p.Timeout):
	}

	if p.In == nil {
		return fmt.Errorf("%w: timed out waiting for redirect", model.ErrExchangeFailed)
	}
	fmt.Fprintln(p.Out, "Timed out waiting for the redirect.")
	fmt.Fprintln(p.Out, "Paste the FULL redirect URL from the browser address bar, then press Enter.")
	fmt.Fprint(p.Out, "> ")

	sc := bufio.NewScanner(p.In)
	sc.Buffer(make([]byte, 0, 1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return fmt.Errorf("read redirect URL: %w", err)
		}
		return fmt.Errorf("%w: empty input", model.ErrExchangeFailed)
	}
	code, state, err := parseRedirect(sc.Text())
	if err != nil {
		return err
	}
	_, err = f.CompleteExchange(ctx, code, state, redirect)
	return err
}

// parseRedirect pulls code and state out of a pasted redirect URL.
func parseRedirect(input string) (code, state string, err error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return "", "", errors.New("expected the full redirect URL")
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", "", fmt.Errorf("parse redirect URL: %w", err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", "", fmt.Errorf("%w: provider returned %s", model.ErrExchangeFailed, e)
	}
	if q.Get("code") == "" {
		return "", "", errors.New("no 'code' parameter found in pasted URL")
	}
	return q.Get("code"), q.Get("state"), nil
}
