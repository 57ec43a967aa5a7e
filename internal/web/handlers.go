package web

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"finsync/internal/logging"
	"finsync/internal/util"

	"go.uber.org/zap"
)

// maxConfirmBody bounds the confirm request body.
const maxConfirmBody = 4 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAuthorizeURL returns the consent page URL as plain text.
func (s *Server) handleAuthorizeURL(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())
	u, err := s.auth.ConsentURL(userID, "")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, u)
}

// handleOAuthCallback completes the exchange and sends the browser back to
// the frontend with gmail=connected or gmail=error.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	log := logging.FromContext(r.Context(), s.log)

	status := "connected"
	switch {
	case q.Get("error") != "":
		log.Warn("consent denied", zap.String("error", q.Get("error")))
		status = "error"
	default:
		userID, err := s.auth.CompleteExchange(r.Context(), q.Get("code"), q.Get("state"), "")
		if err != nil {
			log.Warn("oauth callback failed", zap.Error(err))
			status = "error"
		} else {
			log.Info("mailbox connected", zap.String("user", userID))
		}
	}
	http.Redirect(w, r, withQuery(s.frontendURL, "gmail", status), http.StatusFound)
}

func withQuery(base, key, value string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

// firstParam returns the first non-empty query value among names.
func firstParam(r *http.Request, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(r.URL.Query().Get(n)); v != "" {
			return v
		}
	}
	return ""
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())
	sender, err := util.SenderAddress(firstParam(r, "sender", "remetente"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	subject := util.SubjectPhrase(firstParam(r, "subject", "assunto"))
	if subject == "" {
		s.respondError(w, r, fmt.Errorf("%w: subject is required", errBadRequest))
		return
	}

	batch, err := s.importer.Analyze(r.Context(), userID, sender, subject)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	out := make([]transactionJSON, 0, len(batch.Transactions))
	for _, t := range batch.Transactions {
		out = append(out, toJSON(t))
	}
	writeJSONStatus(w, http.StatusOK, out)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxConfirmBody))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	recs, err := decodeTransactions(body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if _, err := s.importer.Confirm(r.Context(), userID, recs); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
