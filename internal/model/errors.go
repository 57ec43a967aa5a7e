package model

import "errors"

// Error kinds surfaced at the import boundary. Callers branch with errors.Is.
var (
	// Re-authorize.
	ErrNotAuthorized     = errors.New("mailbox not authorized")
	ErrCredentialExpired = errors.New("mailbox credential expired")
	ErrInvalidState      = errors.New("invalid authorization state")
	ErrExchangeFailed    = errors.New("authorization code exchange failed")

	// Retry.
	ErrMailSearchFailed   = errors.New("mail search failed")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Fix the data.
	ErrUnreadableInput = errors.New("unreadable statement input")
	ErrInvalidRecord   = errors.New("invalid transaction record")

	ErrCredentialNotFound = errors.New("credential not found")
	ErrUnknownUser        = errors.New("unknown user")
)
