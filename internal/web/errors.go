package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"finsync/internal/logging"
	"finsync/internal/model"
	"finsync/internal/util"

	"go.uber.org/zap"
)

// ErrorResponse is the JSON body of every API error. Code is stable and
// tells the client which remedy applies; Action is a hint for people.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Action string `json:"action,omitempty"`
}

type apiError struct {
	status int
	ErrorResponse
}

// Error codes returned by the import API.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeReauthorize     = "MAILBOX_REAUTHORIZE"
	CodeSearchFailed    = "MAIL_SEARCH_FAILED"
	CodeUnreadable      = "UNREADABLE_STATEMENT"
	CodeInvalidRecord   = "INVALID_RECORD"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeUnknownUser     = "UNKNOWN_USER"
	CodeStorage         = "STORAGE_UNAVAILABLE"
	CodeInternal        = "INTERNAL"
)

// mapError sorts an error into the remedy the caller should take.
// Authorization problems, transient search failures and bad statement data
// must stay distinguishable.
func mapError(err error) apiError {
	switch {
	case errors.Is(err, model.ErrNotAuthorized):
		return apiError{http.StatusUnauthorized, ErrorResponse{"mailbox is not connected", CodeReauthorize, "connect your mailbox"}}
	case errors.Is(err, model.ErrCredentialExpired):
		return apiError{http.StatusUnauthorized, ErrorResponse{"mailbox access expired", CodeReauthorize, "connect your mailbox again"}}
	case errors.Is(err, model.ErrMailSearchFailed):
		return apiError{http.StatusBadGateway, ErrorResponse{"mailbox search failed", CodeSearchFailed, "try again in a moment"}}
	case errors.Is(err, model.ErrUnreadableInput):
		return apiError{http.StatusUnprocessableEntity, ErrorResponse{"statement attachment could not be read", CodeUnreadable, "check the exported file encoding"}}
	case errors.Is(err, model.ErrInvalidRecord):
		return apiError{http.StatusBadRequest, ErrorResponse{err.Error(), CodeInvalidRecord, "fix the record and submit again"}}
	case errors.Is(err, util.ErrBadSender), errors.Is(err, errBadRequest):
		return apiError{http.StatusBadRequest, ErrorResponse{err.Error(), CodeInvalidRequest, ""}}
	case errors.Is(err, model.ErrUnknownUser):
		return apiError{http.StatusNotFound, ErrorResponse{"user not found", CodeUnknownUser, ""}}
	case errors.Is(err, model.ErrStorageUnavailable):
		return apiError{http.StatusServiceUnavailable, ErrorResponse{"storage unavailable", CodeStorage, "try again in a moment"}}
	case errors.Is(err, context.DeadlineExceeded):
		return apiError{http.StatusGatewayTimeout, ErrorResponse{"request timed out", CodeSearchFailed, "try again in a moment"}}
	default:
		return apiError{http.StatusInternalServerError, ErrorResponse{"internal error", CodeInternal, ""}}
	}
}

var errBadRequest = errors.New("bad request")

// respondError logs err with the request id and writes the mapped response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	e := mapError(err)
	log := logging.FromContext(r.Context(), s.log)
	fields := []zap.Field{
		zap.String("path", r.URL.Path),
		zap.Int("status", e.status),
		zap.String("code", e.Code),
		zap.Error(err),
	}
	if e.status >= http.StatusInternalServerError {
		log.Error("request error", fields...)
	} else {
		log.Warn("request error", fields...)
	}
	writeJSONStatus(w, e.status, e.ErrorResponse)
}

func (s *Server) respondUnauthenticated(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context(), s.log).Debug("caller not authenticated",
		zap.String("path", r.URL.Path), zap.Error(err))
	writeJSONStatus(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required", Code: CodeUnauthenticated})
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
