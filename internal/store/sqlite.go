package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finsync/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps users, mailbox credentials and imported transactions in one
// SQLite file. It implements gmail.CredentialStore, gmail.UserResolver,
// importer.UserDirectory and importer.TransactionStore.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at the given path and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Immediate transactions take the write lock up front so the duplicate
	// check and the insert in InsertImported cannot interleave.
	dsn := filepath.Clean(dbPath) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS credentials (
	user_id       TEXT PRIMARY KEY,
	access_token  TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	token_type    TEXT NOT NULL DEFAULT '',
	expiry        INTEGER NOT NULL DEFAULT 0,
	scopes        TEXT NOT NULL DEFAULT '',
	updated_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id       INTEGER NOT NULL REFERENCES users(id),
	description      TEXT NOT NULL,
	category         TEXT,
	amount           TEXT NOT NULL,
	type             TEXT NOT NULL,
	transaction_date TEXT NOT NULL,
	source           TEXT NOT NULL DEFAULT 'MANUAL',
	email_message_id TEXT,
	created_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_account_message
	ON transactions (account_id, email_message_id);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, model.ErrStorageUnavailable, err)
}

// Credentials

func (s *SQLiteStore) PutCredential(ctx context.Context, userID string, c model.Credential) error {
	var expiry int64
	if !c.Expiry.IsZero() {
		expiry = c.Expiry.UTC().UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (user_id, access_token, refresh_token, token_type, expiry, scopes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token  = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type    = excluded.token_type,
			expiry        = excluded.expiry,
			scopes        = excluded.scopes,
			updated_at    = excluded.updated_at
	`, userID, c.AccessToken, c.RefreshToken, c.TokenType, expiry, strings.Join(c.Scopes, " "), s.now().UnixMilli())
	if err != nil {
		return unavailable("put credential", err)
	}
	return nil
}

func (s *SQLiteStore) GetCredential(ctx context.Context, userID string) (model.Credential, error) {
	var (
		c      model.Credential
		expiry int64
		scopes string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT access_token, refresh_token, token_type, expiry, scopes FROM credentials WHERE user_id = ?", userID,
	).Scan(&c.AccessToken, &c.RefreshToken, &c.TokenType, &expiry, &scopes)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Credential{}, model.ErrCredentialNotFound
	}
	if err != nil {
		return model.Credential{}, unavailable("get credential", err)
	}
	if expiry != 0 {
		c.Expiry = time.UnixMilli(expiry).UTC()
	}
	c.Scopes = strings.Fields(scopes)
	return c, nil
}

func (s *SQLiteStore) DeleteCredential(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE user_id = ?", userID); err != nil {
		return unavailable("delete credential", err)
	}
	return nil
}

// Users

// EnsureUser registers userID if needed and returns its account.
func (s *SQLiteStore) EnsureUser(ctx context.Context, userID string) (model.Account, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return model.Account{}, errors.New("user id is required")
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (user_id, created_at) VALUES (?, ?) ON CONFLICT(user_id) DO NOTHING",
		userID, s.now().UnixMilli())
	if err != nil {
		return model.Account{}, unavailable("ensure user", err)
	}
	return s.AccountByUserID(ctx, userID)
}

func (s *SQLiteStore) AccountByUserID(ctx context.Context, userID string) (model.Account, error) {
	a := model.Account{UserID: userID}
	err := s.db.QueryRowContext(ctx, "SELECT id FROM users WHERE user_id = ?", userID).Scan(&a.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("%w: %s", model.ErrUnknownUser, userID)
	}
	if err != nil {
		return model.Account{}, unavailable("lookup user", err)
	}
	return a, nil
}

// UserExists satisfies gmail.UserResolver.
func (s *SQLiteStore) UserExists(ctx context.Context, userID string) (bool, error) {
	_, err := s.AccountByUserID(ctx, userID)
	if errors.Is(err, model.ErrUnknownUser) {
		return false, nil
	}
	return err == nil, err
}

// Transactions

// InsertResult reports what InsertImported did with a batch.
type InsertResult struct {
	Inserted   int
	Duplicates int
}

// InsertImported stores email-sourced records for an account. A record whose
// message id already appears among the account's stored transactions is
// skipped, so confirming the same statement twice stores it once.
func (s *SQLiteStore) InsertImported(ctx context.Context, accountID int64, recs []model.StagedTransaction) (InsertResult, error) {
	var res InsertResult
	if len(recs) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, unavailable("begin import", err)
	}
	defer tx.Rollback()

	existing, err := importedMessageIDs(ctx, tx, accountID, recs)
	if err != nil {
		return res, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions
			(account_id, description, category, amount, type, transaction_date, source, email_message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return res, unavailable("prepare import", err)
	}
	defer stmt.Close()

	created := s.now().UnixMilli()
	for _, r := range recs {
		if _, dup := existing[r.MessageID]; dup {
			res.Duplicates++
			continue
		}
		var category any
		if r.Category != "" {
			category = r.Category
		}
		_, err := stmt.ExecContext(ctx,
			accountID, r.Description, category, r.Amount.String(), string(r.Direction),
			r.Date.Format(time.DateOnly), string(model.SourceEmailImport), r.MessageID, created)
		if err != nil {
			return InsertResult{}, unavailable("insert transaction", err)
		}
		res.Inserted++
	}
	if err := tx.Commit(); err != nil {
		return InsertResult{}, unavailable("commit import", err)
	}
	return res, nil
}

func importedMessageIDs(ctx context.Context, tx *sql.Tx, accountID int64, recs []model.StagedTransaction) (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	args := []any{accountID}
	var placeholders []string
	for _, r := range recs {
		if _, ok := seen[r.MessageID]; ok {
			continue
		}
		seen[r.MessageID] = struct{}{}
		placeholders = append(placeholders, "?")
		args = append(args, r.MessageID)
	}

	query := "SELECT DISTINCT email_message_id FROM transactions WHERE account_id = ? AND email_message_id IN (" +
		strings.Join(placeholders, ",") + ")"
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("lookup imported messages", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("scan imported message", err)
		}
		existing[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("lookup imported messages", err)
	}
	return existing, nil
}

// HasMessage reports whether any transaction of the account came from messageID.
func (s *SQLiteStore) HasMessage(ctx context.Context, accountID int64, messageID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE account_id = ? AND email_message_id = ?", accountID, messageID,
	).Scan(&n)
	if err != nil {
		return false, unavailable("lookup message", err)
	}
	return n > 0, nil
}
