package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"finsync/internal/model"

	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// memCredentials is an in-memory CredentialStore.
type memCredentials struct {
	mu   sync.Mutex
	m    map[string]model.Credential
	puts int
}

func newMemCredentials() *memCredentials {
	return &memCredentials{m: make(map[string]model.Credential)}
}

func (s *memCredentials) PutCredential(_ context.Context, userID string, c model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[userID] = c
	s.puts++
	return nil
}

func (s *memCredentials) GetCredential(_ context.Context, userID string) (model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[userID]
	if !ok {
		return model.Credential{}, model.ErrCredentialNotFound
	}
	return c, nil
}

func (s *memCredentials) DeleteCredential(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
	return nil
}

type staticUsers map[string]bool

func (u staticUsers) UserExists(_ context.Context, userID string) (bool, error) {
	return u[userID], nil
}

// fakeMailbox serves the subset of the Gmail REST API the locator uses.
type fakeMailbox struct {
	pages       [][]string // message ids per result page
	messages    map[string]*gmailv1.Message
	attachments map[string]string // attachment id -> base64url data

	failGet    int // status returned by messages.get when non-zero
	queries    []string
	authHeader string
	mu         sync.Mutex
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{messages: map[string]*gmailv1.Message{}, attachments: map[string]string{}}
}

func (f *fakeMailbox) addCSV(msgID, filename, body string) {
	attID := msgID + "-" + filename
	f.attachments[attID] = base64.URLEncoding.EncodeToString([]byte(body))
	m, ok := f.messages[msgID]
	if !ok {
		m = &gmailv1.Message{Id: msgID, Payload: &gmailv1.MessagePart{MimeType: "multipart/mixed"}}
		f.messages[msgID] = m
	}
	m.Payload.Parts = append(m.Payload.Parts, &gmailv1.MessagePart{
		Filename: filename,
		MimeType: "text/csv",
		Body:     &gmailv1.MessagePartBody{AttachmentId: attID, Size: int64(len(body))},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": http.StatusText(code)},
	})
}

func (f *fakeMailbox) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.queries = append(f.queries, r.URL.Query().Get("q"))
		f.authHeader = r.Header.Get("Authorization")
		f.mu.Unlock()

		page := 0
		if tok := r.URL.Query().Get("pageToken"); tok != "" {
			page = int(tok[0] - '0')
		}
		resp := &gmailv1.ListMessagesResponse{}
		if page < len(f.pages) {
			for _, id := range f.pages[page] {
				resp.Messages = append(resp.Messages, &gmailv1.Message{Id: id})
			}
			if page+1 < len(f.pages) {
				resp.NextPageToken = string(rune('0' + page + 1))
			}
		}
		writeJSON(w, resp)
	})
	mux.HandleFunc("GET /gmail/v1/users/me/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		if f.failGet != 0 {
			writeAPIError(w, f.failGet)
			return
		}
		m, ok := f.messages[r.PathValue("id")]
		if !ok {
			writeAPIError(w, http.StatusNotFound)
			return
		}
		writeJSON(w, m)
	})
	mux.HandleFunc("GET /gmail/v1/users/me/messages/{id}/attachments/{att}", func(w http.ResponseWriter, r *http.Request) {
		data, ok := f.attachments[r.PathValue("att")]
		if !ok {
			writeAPIError(w, http.StatusNotFound)
			return
		}
		writeJSON(w, &gmailv1.MessagePartBody{Data: data})
	})
	return mux
}

// serve starts the fake and returns a service pointed at it.
func (f *fakeMailbox) serve(t *testing.T) (*gmailv1.Service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	svc, err := gmailv1.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, srv
}
