package tui

import (
	"fmt"
	"strings"

	"finsync/internal/model"
	"finsync/internal/statement"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// recordItem wraps a staged transaction for the list display.
type recordItem struct {
	model.StagedTransaction
	selected bool
}

func (r recordItem) FilterValue() string { return r.StagedTransaction.Description }
func (r recordItem) Title() string {
	box := "[ ]"
	if r.selected {
		box = "[x]"
	}
	amount := statement.FormatAmount(r.Amount)
	if r.Direction == model.Credit {
		amount = "+" + amount
	}
	return fmt.Sprintf("%s %s %14s  %s", box, r.Date.Format("02/01/2006"), amount, r.StagedTransaction.Description)
}
func (r recordItem) Description() string {
	return fmt.Sprintf("    %s  message %s", r.Direction, r.MessageID)
}

var footerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("241")).
	PaddingTop(1)

var (
	creditStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	debitStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("167"))
)

func recordsFooter() string {
	return footerStyle.Render("space: toggle  a: all/none  enter: confirm selected  s: statements  q: quit")
}

func recordsToItems(txs []model.StagedTransaction) []list.Item {
	items := make([]list.Item, len(txs))
	for i, t := range txs {
		items[i] = recordItem{StagedTransaction: t, selected: true}
	}
	return items
}

// selectionTotals renders the count and net amount of the selected records.
func selectionTotals(items []list.Item) string {
	var n, credits int
	net := decimal.Zero
	for _, it := range items {
		r := it.(recordItem)
		if !r.selected {
			continue
		}
		n++
		net = net.Add(r.Amount)
		if r.Direction == model.Credit {
			credits++
		}
	}
	style := creditStyle
	if net.IsNegative() {
		style = debitStyle
	}
	return fmt.Sprintf("%d selected (%d credits, %d debits)  net %s",
		n, credits, n-credits, style.Render(statement.FormatAmount(net)))
}

func (m *AppModel) recordsTitle() string {
	return fmt.Sprintf("%s / %s (%d records)", m.sender, m.subject, len(m.batch.Transactions))
}

// summaryText lists each statement with its counts and skipped-line notes.
func summaryText(batch model.ImportBatch) string {
	if len(batch.Statements) == 0 {
		return "No statements found."
	}
	var b strings.Builder
	for _, s := range batch.Statements {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%s (message %s)", s.Filename, s.MessageID)))
		fmt.Fprintf(&b, "\n  %d parsed, %d skipped\n", s.Parsed, s.Skipped)
		if s.AlreadyImported {
			b.WriteString("  already imported; confirming skips it\n")
		}
		for _, d := range s.Diagnostics {
			fmt.Fprintf(&b, "  - %s\n", d)
		}
		b.WriteString("\n")
	}
	return b.String()
}

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("39"))

func summaryFooter() string {
	return footerStyle.Render("esc: back  q: quit")
}
