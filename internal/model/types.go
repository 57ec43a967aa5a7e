package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CredentialExpiryMargin is how close to expiry an access token may get before
// it is no longer handed out without a refresh.
const CredentialExpiryMargin = 60 * time.Second

// Longest description and category a stored transaction may carry, in characters.
const (
	MaxDescription = 255
	MaxCategory    = 255
)

// Credential is the OAuth2 token material authorizing mailbox access for one user.
type Credential struct {
	AccessToken  string
	RefreshToken string // empty when the provider did not grant offline access
	TokenType    string
	Expiry       time.Time // zero means the provider reported no expiry
	Scopes       []string
}

// NeedsRefresh reports whether the access token expires within the safety margin.
func (c Credential) NeedsRefresh(now time.Time) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return !c.Expiry.After(now.Add(CredentialExpiryMargin))
}

// CanRefresh reports whether a refresh token is on file.
func (c Credential) CanRefresh() bool { return c.RefreshToken != "" }

// IsUsable is false only when the token is about to expire and cannot be refreshed.
func (c Credential) IsUsable(now time.Time) bool {
	return !c.NeedsRefresh(now) || c.CanRefresh()
}

// Direction is derived from the sign of an amount: credit for >= 0, debit for < 0.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// DirectionOf returns the direction implied by amount.
func DirectionOf(amount decimal.Decimal) Direction {
	if amount.Sign() < 0 {
		return Debit
	}
	return Credit
}

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool { return d == Credit || d == Debit }

// Source records how a stored transaction entered the system.
type Source string

const (
	SourceManual      Source = "MANUAL"
	SourceEmailImport Source = "EMAIL_IMPORT"
)

// StagedTransaction is a parsed statement line awaiting user confirmation.
type StagedTransaction struct {
	Description string
	Category    string // empty until assigned by the user
	Amount      decimal.Decimal
	Date        time.Time
	Direction   Direction
	MessageID   string // provenance key: the mailbox message the statement came from
}

// StatementSummary describes how one attachment parsed.
type StatementSummary struct {
	MessageID   string
	Filename    string
	Parsed      int
	Skipped     int
	Diagnostics []string
	// AlreadyImported is set when transactions from this message are stored.
	AlreadyImported bool
}

// ImportBatch is the output of one analyze call.
type ImportBatch struct {
	Sender       string
	Subject      string
	Transactions []StagedTransaction
	Statements   []StatementSummary
}

// Account is the stable identity behind an opaque user identifier.
type Account struct {
	ID     int64
	UserID string
}
