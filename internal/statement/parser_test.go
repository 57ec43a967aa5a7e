package statement

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"finsync/internal/model"

	"github.com/shopspring/decimal"
)

const header = `Extrato Conta Corrente
Conta;12345-6
Periodo;01/03/2024 a 31/03/2024
Saldo anterior;1.000,00

Data;Historico;Descricao;Valor;Saldo
`

func parseString(t *testing.T, s string) Result {
	t.Helper()
	res, err := Parse(strings.NewReader(s), "msg-1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return res
}

func TestParseExamples(t *testing.T) {
	res := parseString(t, header+
		"25/03/2024;PIX RECEBIDO;João Silva;1.250,00;\n"+
		"02/04/2024;COMPRA DEBITO;Mercado XYZ;-89,90;\n")

	if res.Parsed != 2 || len(res.Transactions) != 2 {
		t.Fatalf("parsed = %d, transactions = %d; want 2", res.Parsed, len(res.Transactions))
	}

	want := []struct {
		desc   string
		amount string
		date   time.Time
		dir    model.Direction
	}{
		{"PIX RECEBIDO - João Silva", "1250.00", time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC), model.Credit},
		{"COMPRA DEBITO - Mercado XYZ", "-89.90", time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), model.Debit},
	}
	for i, w := range want {
		got := res.Transactions[i]
		if got.Description != w.desc {
			t.Errorf("[%d] description = %q; want %q", i, got.Description, w.desc)
		}
		if !got.Amount.Equal(decimal.RequireFromString(w.amount)) {
			t.Errorf("[%d] amount = %s; want %s", i, got.Amount, w.amount)
		}
		if !got.Date.Equal(w.date) {
			t.Errorf("[%d] date = %s; want %s", i, got.Date, w.date)
		}
		if got.Direction != w.dir {
			t.Errorf("[%d] direction = %s; want %s", i, got.Direction, w.dir)
		}
		if got.Category != "" {
			t.Errorf("[%d] category should be unset, got %q", i, got.Category)
		}
		if got.MessageID != "msg-1" {
			t.Errorf("[%d] message id = %q", i, got.MessageID)
		}
	}
}

func TestParseHeaderBoundary(t *testing.T) {
	var lines []string
	for i := 1; i <= 8; i++ {
		lines = append(lines, fmt.Sprintf("%02d/01/2024;L%d;line %d;%d,00;", i, i, i, i))
	}
	res := parseString(t, strings.Join(lines, "\n"))

	if res.Parsed != 2 {
		t.Fatalf("parsed = %d; want 2 (lines 7 and 8)", res.Parsed)
	}
	if res.Transactions[0].Description != "L7 - line 7" {
		t.Fatalf("first record = %q; want line 7", res.Transactions[0].Description)
	}
	for _, tx := range res.Transactions {
		if tx.Description == "L6 - line 6" {
			t.Fatal("line 6 must be skipped")
		}
	}
}

func TestParseSkipsShortBlankAndMalformed(t *testing.T) {
	res := parseString(t, header+
		"\n"+
		"   \n"+
		"01/03/2024;TARIFA;Pacote;-10,00\n"+ // 4 fields
		"32/03/2024;PIX;Bad date;5,00;\n"+
		"03/03/2024;PIX;Bad amount;abc;\n"+
		"04/03/2024;PIX;Empty amount;;\n"+
		"05/03/2024;PIX ENVIADO;Maria;-1.000.000,01;x;y\n"+
		"Total;;;;\n")

	if res.Parsed != 1 {
		t.Fatalf("parsed = %d; want 1", res.Parsed)
	}
	got := res.Transactions[0]
	if !got.Amount.Equal(decimal.RequireFromString("-1000000.01")) || got.Direction != model.Debit {
		t.Fatalf("unexpected record %+v", got)
	}
	if len(res.Diagnostics) != 4 {
		t.Fatalf("diagnostics = %d; want 4: %v", len(res.Diagnostics), res.Diagnostics)
	}
	if res.Diagnostics[0].Line != 10 {
		t.Errorf("first diagnostic line = %d; want 10", res.Diagnostics[0].Line)
	}
	if res.Skipped != 5 {
		t.Errorf("skipped = %d; want 5", res.Skipped)
	}
}

func TestParseTruncatesLongDescription(t *testing.T) {
	res := parseString(t, header+"25/03/2024;PIX;"+strings.Repeat("é", 300)+";1,00;\n")
	if res.Parsed != 1 {
		t.Fatalf("parsed = %d; want 1", res.Parsed)
	}
	d := res.Transactions[0].Description
	if n := utf8.RuneCountInString(d); n != model.MaxDescription {
		t.Fatalf("description length = %d; want %d", n, model.MaxDescription)
	}
	if !strings.HasPrefix(d, "PIX - éé") {
		t.Fatalf("description = %q", d)
	}
}

func TestParseCRLFAndBOM(t *testing.T) {
	body := "\ufeff" + strings.ReplaceAll(header, "\n", "\r\n") + "25/03/2024;PIX RECEBIDO;Ana;10,50;\r\n"
	res := parseString(t, body)
	if res.Parsed != 1 {
		t.Fatalf("parsed = %d; want 1", res.Parsed)
	}
	if res.Transactions[0].Description != "PIX RECEBIDO - Ana" {
		t.Fatalf("description = %q", res.Transactions[0].Description)
	}
}

func TestParseUnreadableInput(t *testing.T) {
	_, err := Parse(strings.NewReader(header+"25/03/2024;PIX;\xff\xfe\xfd;1,00;\n"), "m")
	if !errors.Is(err, model.ErrUnreadableInput) {
		t.Fatalf("want ErrUnreadableInput, got %v", err)
	}

	_, err = Parse(failingReader{}, "m")
	if !errors.Is(err, model.ErrUnreadableInput) {
		t.Fatalf("want ErrUnreadableInput for read error, got %v", err)
	}
}

func TestParseEmpty(t *testing.T) {
	res := parseString(t, "")
	if res.Parsed != 0 || len(res.Transactions) != 0 {
		t.Fatalf("expected nothing, got %+v", res)
	}
}

func TestAmountRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		cents := rng.Int63n(2_000_000_000) - 1_000_000_000
		want := decimal.New(cents, -2)
		text := FormatAmount(want)
		line := header + "15/06/2024;MEMO;Desc;" + text + ";\n"

		res := parseString(t, line)
		if res.Parsed != 1 {
			t.Fatalf("%s: parsed = %d", text, res.Parsed)
		}
		got := res.Transactions[0]
		if !got.Amount.Equal(want) {
			t.Fatalf("%s: amount = %s; want %s", text, got.Amount, want)
		}
		if got.Direction != model.DirectionOf(want) {
			t.Fatalf("%s: direction = %s", text, got.Direction)
		}
		if (got.Direction == model.Credit) != (got.Amount.Sign() >= 0) {
			t.Fatalf("%s: direction disagrees with sign", text)
		}
		if again := FormatAmount(got.Amount); again != text {
			t.Fatalf("format(parse(%s)) = %s", text, again)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0,00"},
		{"1250", "1.250,00"},
		{"-89.9", "-89,90"},
		{"1234567.891", "1.234.567,891"},
		{"-100", "-100,00"},
		{"999.99", "999,99"},
	}
	for _, tc := range tests {
		if got := FormatAmount(decimal.RequireFromString(tc.in)); got != tc.want {
			t.Errorf("FormatAmount(%s) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }
