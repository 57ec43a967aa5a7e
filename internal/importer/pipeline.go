// Package importer turns bank statement emails into staged transactions and
// persists the ones the user confirms.
package importer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"
	"unicode/utf8"

	"finsync/internal/gmail"
	"finsync/internal/logging"
	"finsync/internal/metrics"
	"finsync/internal/model"
	"finsync/internal/statement"
	"finsync/internal/store"

	"go.uber.org/zap"
	gmailv1 "google.golang.org/api/gmail/v1"
)

// ClientFactory returns a mailbox client for a user.
type ClientFactory interface {
	ClientFor(ctx context.Context, userID string) (*gmailv1.Service, error)
}

// AttachmentFinder lists CSV attachments of matching messages.
type AttachmentFinder interface {
	CSVAttachments(ctx context.Context, svc *gmailv1.Service, q gmail.Query) iter.Seq2[gmail.Attachment, error]
}

// UserDirectory resolves a user identifier to its account.
type UserDirectory interface {
	AccountByUserID(ctx context.Context, userID string) (model.Account, error)
}

// TransactionStore persists confirmed records, skipping any whose message was
// already imported for the account.
type TransactionStore interface {
	InsertImported(ctx context.Context, accountID int64, recs []model.StagedTransaction) (store.InsertResult, error)
	HasMessage(ctx context.Context, accountID int64, messageID string) (bool, error)
}

// ConfirmResult reports what Confirm did with the submitted records.
type ConfirmResult struct {
	Inserted   int
	Duplicates int
}

// Pipeline wires the mailbox search, the statement parser and the stores.
type Pipeline struct {
	clients ClientFactory
	finder  AttachmentFinder
	users   UserDirectory
	txs     TransactionStore
	log     *zap.Logger
	metrics *metrics.Import
}

// New returns a Pipeline. m may be nil.
func New(clients ClientFactory, finder AttachmentFinder, users UserDirectory, txs TransactionStore, log *zap.Logger, m *metrics.Import) *Pipeline {
	return &Pipeline{
		clients: clients,
		finder:  finder,
		users:   users,
		txs:     txs,
		log:     logging.OrNop(log),
		metrics: m,
	}
}

// Analyze finds every CSV statement sent by sender with the given subject and
// parses it into one batch. Nothing is stored. Authorization, search and
// decoding errors are returned as-is and no partial batch is produced.
func (p *Pipeline) Analyze(ctx context.Context, userID, sender, subject string) (model.ImportBatch, error) {
	log := logging.FromContext(ctx, p.log).With(zap.String("user", userID))
	start := time.Now()

	batch, err := p.analyze(ctx, log, userID, sender, subject)
	p.metrics.ObserveAnalyze(outcome(err))
	if err != nil {
		log.Warn("analyze failed", zap.String("sender", sender), zap.Error(err))
		return model.ImportBatch{}, err
	}
	log.Info("analyze complete",
		zap.String("sender", sender),
		zap.Int("statements", len(batch.Statements)),
		zap.Int("transactions", len(batch.Transactions)),
		zap.Duration("took", time.Since(start)),
	)
	return batch, nil
}

func (p *Pipeline) analyze(ctx context.Context, log *zap.Logger, userID, sender, subject string) (model.ImportBatch, error) {
	svc, err := p.clients.ClientFor(ctx, userID)
	if err != nil {
		return model.ImportBatch{}, err
	}

	// Without an account nothing can have been imported yet.
	acct, err := p.users.AccountByUserID(ctx, userID)
	if err != nil && !errors.Is(err, model.ErrUnknownUser) {
		return model.ImportBatch{}, err
	}

	batch := model.ImportBatch{Sender: sender, Subject: subject}
	q := gmail.Query{Sender: sender, Subject: subject}
	for att, err := range p.finder.CSVAttachments(ctx, svc, q) {
		if err != nil {
			return model.ImportBatch{}, err
		}
		res, err := statement.Parse(att.Body, att.MessageID)
		if err != nil {
			return model.ImportBatch{}, fmt.Errorf("%s in message %s: %w", att.Filename, att.MessageID, err)
		}
		p.metrics.ObserveStatement(res.Parsed, res.Skipped)

		summary := model.StatementSummary{
			MessageID: att.MessageID,
			Filename:  att.Filename,
			Parsed:    res.Parsed,
			Skipped:   res.Skipped,
		}
		if acct.ID != 0 {
			if summary.AlreadyImported, err = p.txs.HasMessage(ctx, acct.ID, att.MessageID); err != nil {
				return model.ImportBatch{}, err
			}
		}
		for _, d := range res.Diagnostics {
			log.Warn("statement line skipped",
				zap.String("message", att.MessageID),
				zap.String("filename", att.Filename),
				zap.Int("line", d.Line),
				zap.Error(d.Err),
			)
			summary.Diagnostics = append(summary.Diagnostics, d.String())
		}
		batch.Statements = append(batch.Statements, summary)
		batch.Transactions = append(batch.Transactions, res.Transactions...)
	}
	return batch, nil
}

// Confirm stores recs for the user as email imports. Records from a message
// that was already imported for the account are counted as duplicates and
// left out.
func (p *Pipeline) Confirm(ctx context.Context, userID string, recs []model.StagedTransaction) (ConfirmResult, error) {
	log := logging.FromContext(ctx, p.log).With(zap.String("user", userID))

	for i, r := range recs {
		if err := Validate(r); err != nil {
			return ConfirmResult{}, fmt.Errorf("record %d: %w", i, err)
		}
	}
	acct, err := p.users.AccountByUserID(ctx, userID)
	if err != nil {
		return ConfirmResult{}, err
	}
	res, err := p.txs.InsertImported(ctx, acct.ID, recs)
	if err != nil {
		return ConfirmResult{}, err
	}
	p.metrics.ObserveConfirm(res.Inserted, res.Duplicates)
	log.Info("import confirmed",
		zap.Int64("account", acct.ID),
		zap.Int("submitted", len(recs)),
		zap.Int("inserted", res.Inserted),
		zap.Int("duplicates", res.Duplicates),
	)
	return ConfirmResult{Inserted: res.Inserted, Duplicates: res.Duplicates}, nil
}

// Validate checks a record submitted for confirmation.
func Validate(r model.StagedTransaction) error {
	switch {
	case r.MessageID == "":
		return fmt.Errorf("%w: missing message id", model.ErrInvalidRecord)
	case r.Date.IsZero():
		return fmt.Errorf("%w: missing date", model.ErrInvalidRecord)
	case r.Description == "":
		return fmt.Errorf("%w: missing description", model.ErrInvalidRecord)
	case utf8.RuneCountInString(r.Description) > model.MaxDescription:
		return fmt.Errorf("%w: description longer than %d characters", model.ErrInvalidRecord, model.MaxDescription)
	case utf8.RuneCountInString(r.Category) > model.MaxCategory:
		return fmt.Errorf("%w: category longer than %d characters", model.ErrInvalidRecord, model.MaxCategory)
	case !r.Direction.Valid():
		return fmt.Errorf("%w: unknown direction %q", model.ErrInvalidRecord, r.Direction)
	case r.Direction != model.DirectionOf(r.Amount):
		return fmt.Errorf("%w: %s amount %s", model.ErrInvalidRecord, r.Direction, r.Amount)
	}
	return nil
}

// outcome labels an analyze result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrNotAuthorized), errors.Is(err, model.ErrCredentialExpired):
		return "reauthorize"
	case errors.Is(err, model.ErrMailSearchFailed):
		return "search_failed"
	case errors.Is(err, model.ErrUnreadableInput):
		return "unreadable"
	default:
		return "error"
	}
}
