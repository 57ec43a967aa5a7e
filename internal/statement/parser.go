// Package statement parses the bank's semicolon-delimited CSV statement export.
//
// Layout: six metadata/header lines, then one transaction per line:
//
//	date(dd/mm/yyyy);memo;description;amount(1.234,56);...
package statement

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"finsync/internal/model"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	// HeaderLines is the number of leading lines that never hold transactions.
	HeaderLines = 6
	// MinFields is the fewest ;-separated fields a transaction line may have.
	MinFields = 5

	dateLayout = "02/01/2006"
	maxLine    = 1 << 20
)

// Diagnostic describes a line that looked like a transaction but did not parse.
type Diagnostic struct {
	Line int
	Text string
	Err  error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %v", d.Line, d.Err)
}

// Result is the outcome of parsing one statement.
type Result struct {
	Transactions []model.StagedTransaction
	Parsed       int
	// Skipped counts candidate lines dropped for too few fields or bad values.
	Skipped     int
	Diagnostics []Diagnostic
}

// Parse reads a statement and tags every record with messageID. Malformed lines
// are skipped and reported in Result.Diagnostics; only undecodable input fails.
func Parse(r io.Reader, messageID string) (Result, error) {
	var res Result

	raw, err := io.ReadAll(r)
	if err != nil {
		return res, fmt.Errorf("%w: read: %v", model.ErrUnreadableInput, err)
	}
	text, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), raw)
	if err != nil {
		return res, fmt.Errorf("%w: decode: %v", model.ErrUnreadableInput, err)
	}
	if !utf8.Valid(text) {
		return res, fmt.Errorf("%w: not valid UTF-8", model.ErrUnreadableInput)
	}

	sc := bufio.NewScanner(bytes.NewReader(text))
	sc.Buffer(make([]byte, 0, 4096), maxLine)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if lineNo <= HeaderLines {
			continue
		}
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, ";")
		if len(fields) < MinFields {
			res.Skipped++
			continue
		}
		tx, err := parseFields(fields)
		if err != nil {
			res.Skipped++
			res.Diagnostics = append(res.Diagnostics, Diagnostic{Line: lineNo, Text: line, Err: err})
			continue
		}
		tx.MessageID = messageID
		res.Transactions = append(res.Transactions, tx)
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("%w: scan: %v", model.ErrUnreadableInput, err)
	}
	res.Parsed = len(res.Transactions)
	return res, nil
}

func parseFields(fields []string) (model.StagedTransaction, error) {
	date, err := time.Parse(dateLayout, strings.TrimSpace(fields[0]))
	if err != nil {
		return model.StagedTransaction{}, fmt.Errorf("date %q: %w", fields[0], err)
	}
	amount, err := ParseAmount(fields[3])
	if err != nil {
		return model.StagedTransaction{}, err
	}
	return model.StagedTransaction{
		Description: truncate(strings.TrimSpace(fields[1])+" - "+strings.TrimSpace(fields[2]), model.MaxDescription),
		Amount:      amount,
		Date:        date,
		Direction:   model.DirectionOf(amount),
	}, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

var errEmptyAmount = errors.New("empty amount")

// ParseAmount converts "1.250,00" style text into a decimal.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, errEmptyAmount
	}
	canonical := strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
	d, err := decimal.NewFromString(canonical)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("amount %q: %w", s, err)
	}
	return d, nil
}

// FormatAmount renders d the way the statement does: "." between thousands,
// "," before the decimals, at least two decimal places.
func FormatAmount(d decimal.Decimal) string {
	places := int32(2)
	if exp := -d.Exponent(); exp > places {
		places = exp
	}
	intPart, frac, _ := strings.Cut(d.Abs().StringFixed(places), ".")

	var b strings.Builder
	if d.Sign() < 0 {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}
