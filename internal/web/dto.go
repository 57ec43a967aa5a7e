package web

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"finsync/internal/model"

	"github.com/shopspring/decimal"
)

// transactionJSON is the wire form of a staged transaction.
type transactionJSON struct {
	Description     string          `json:"description"`
	Category        string          `json:"category,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate string          `json:"transactionDate"`
	Type            string          `json:"type"`
	EmailMessageID  string          `json:"emailMessageId"`
}

func toJSON(t model.StagedTransaction) transactionJSON {
	return transactionJSON{
		Description:     t.Description,
		Category:        t.Category,
		Amount:          t.Amount,
		TransactionDate: t.Date.Format(time.DateOnly),
		Type:            string(t.Direction),
		EmailMessageID:  t.MessageID,
	}
}

// directionAliases accepts the labels older clients send.
var directionAliases = map[string]model.Direction{
	"credit":  model.Credit,
	"receita": model.Credit,
	"debit":   model.Debit,
	"despesa": model.Debit,
}

func (j transactionJSON) model() (model.StagedTransaction, error) {
	date, err := time.Parse(time.DateOnly, strings.TrimSpace(j.TransactionDate))
	if err != nil {
		return model.StagedTransaction{}, fmt.Errorf("%w: transactionDate %q", model.ErrInvalidRecord, j.TransactionDate)
	}
	dir, ok := directionAliases[strings.ToLower(strings.TrimSpace(j.Type))]
	if !ok {
		return model.StagedTransaction{}, fmt.Errorf("%w: type %q", model.ErrInvalidRecord, j.Type)
	}
	return model.StagedTransaction{
		Description: strings.TrimSpace(j.Description),
		Category:    strings.TrimSpace(j.Category),
		Amount:      j.Amount,
		Date:        date,
		Direction:   dir,
		MessageID:   j.EmailMessageID,
	}, nil
}

func decodeTransactions(body []byte) ([]model.StagedTransaction, error) {
	var in []transactionJSON
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	out := make([]model.StagedTransaction, 0, len(in))
	for i, j := range in {
		t, err := j.model()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, t)
	}
	return out, nil
}
