package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finsync/internal/importer"
	"finsync/internal/model"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

type viewState int

const (
	viewLoading viewState = iota
	viewRecords           // staged records with selection
	viewSummary           // per-statement counts and diagnostics
	viewDone
)

// Importer is the part of the import pipeline the review screen drives.
type Importer interface {
	Analyze(ctx context.Context, userID, sender, subject string) (model.ImportBatch, error)
	Confirm(ctx context.Context, userID string, recs []model.StagedTransaction) (importer.ConfirmResult, error)
}

type AppModel struct {
	// Core state
	imp     Importer
	userID  string
	sender  string
	subject string
	timeout time.Duration
	Err     error
	status  string

	// Result is set once the selection has been confirmed.
	Result *importer.ConfirmResult

	view  viewState
	batch model.ImportBatch

	// Sub-models
	summary viewport.Model
	list    list.Model

	// Layout
	width, height int
}

// NewAppModel builds the review screen for one sender/subject search.
func NewAppModel(imp Importer, userID, sender, subject string, timeout time.Duration) *AppModel {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.KeyMap.Quit.SetKeys("q")
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &AppModel{
		imp:     imp,
		userID:  userID,
		sender:  sender,
		subject: subject,
		timeout: timeout,
		status:  fmt.Sprintf("Searching %s for %q...", sender, subject),
		view:    viewLoading,
		list:    l,
		summary: viewport.New(0, 0),
	}
}

func (m *AppModel) Init() tea.Cmd {
	return m.analyzeCmd()
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-5) // room for totals + footer
		m.summary.Width = msg.Width
		m.summary.Height = msg.Height - 3
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case analyzeDoneMsg:
		if msg.err != nil {
			m.Err = msg.err
			m.status = "Analyze failed!"
			return m, tea.Quit
		}
		m.batch = msg.batch
		m.list.SetItems(recordsToItems(m.batch.Transactions))
		m.list.Title = m.recordsTitle()
		m.summary.SetContent(summaryText(m.batch))
		m.view = viewRecords
		m.status = ""
		if len(m.batch.Transactions) == 0 {
			m.status = "No transactions found."
		}
		return m, nil

	case confirmDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Confirm failed: %v", msg.err)
			m.view = viewRecords
			return m, clearStatusAfter(4 * time.Second)
		}
		res := msg.result
		m.Result = &res
		m.view = viewDone
		return m, tea.Quit

	case statusMsg:
		if string(msg) == "" {
			m.status = ""
		}
		return m, nil
	}

	// Delegate to active sub-model
	var cmd tea.Cmd
	switch m.view {
	case viewRecords:
		m.list, cmd = m.list.Update(msg)
	case viewSummary:
		m.summary, cmd = m.summary.Update(msg)
	}
	return m, cmd
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Global keys
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.view {
	case viewLoading, viewDone:
		if key == "q" {
			return m, tea.Quit
		}
		return m, nil

	case viewRecords:
		// When the list is filtering, let it handle all keys except ctrl+c
		if m.list.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.list, cmd = m.list.Update(msg)
			return m, cmd
		}
		switch key {
		case "q":
			return m, tea.Quit
		case " ", "space":
			m.toggle(m.list.Index())
			return m, nil
		case "a":
			m.toggleAll()
			return m, nil
		case "s":
			m.view = viewSummary
			m.summary.GotoTop()
			return m, nil
		case "enter":
			return m.confirmSelected()
		}
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd

	case viewSummary:
		switch key {
		case "q":
			return m, tea.Quit
		case "esc":
			m.view = viewRecords
			return m, nil
		}
		var cmd tea.Cmd
		m.summary, cmd = m.summary.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *AppModel) toggle(idx int) {
	items := m.list.Items()
	if idx < 0 || idx >= len(items) {
		return
	}
	r := items[idx].(recordItem)
	r.selected = !r.selected
	m.list.SetItem(idx, r)
}

// toggleAll selects everything unless everything is already selected.
func (m *AppModel) toggleAll() {
	items := m.list.Items()
	all := true
	for _, it := range items {
		if !it.(recordItem).selected {
			all = false
			break
		}
	}
	for i, it := range items {
		r := it.(recordItem)
		r.selected = !all
		m.list.SetItem(i, r)
	}
}

// Selected returns the records currently marked for import.
func (m *AppModel) Selected() []model.StagedTransaction {
	var out []model.StagedTransaction
	for _, it := range m.list.Items() {
		if r := it.(recordItem); r.selected {
			out = append(out, r.StagedTransaction)
		}
	}
	return out
}

func (m *AppModel) confirmSelected() (tea.Model, tea.Cmd) {
	recs := m.Selected()
	if len(recs) == 0 {
		m.status = "Nothing selected"
		return m, clearStatusAfter(2 * time.Second)
	}
	m.status = fmt.Sprintf("Importing %d records...", len(recs))
	m.view = viewLoading
	return m, m.confirmCmd(recs)
}

// Commands

func (m *AppModel) analyzeCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		batch, err := m.imp.Analyze(ctx, m.userID, m.sender, m.subject)
		return analyzeDoneMsg{batch: batch, err: err}
	}
}

func (m *AppModel) confirmCmd(recs []model.StagedTransaction) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		res, err := m.imp.Confirm(ctx, m.userID, recs)
		return confirmDoneMsg{result: res, err: err}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return statusMsg("")
	})
}

// View renders the appropriate view based on current state.
func (m *AppModel) View() string {
	// Error state
	if m.Err != nil {
		return "Error: " + m.Err.Error() + "\n" + remedy(m.Err) + "\n"
	}

	switch m.view {
	case viewLoading:
		if m.status != "" {
			return m.status + "\n"
		}
		return "Loading...\n"
	case viewDone:
		if m.Result != nil {
			return fmt.Sprintf("Imported %d records, %d skipped as already imported.\n", m.Result.Inserted, m.Result.Duplicates)
		}
		return ""
	}

	var b strings.Builder
	switch m.view {
	case viewRecords:
		b.WriteString(m.list.View())
		b.WriteString("\n")
		b.WriteString(selectionTotals(m.list.Items()))
		b.WriteString("\n")
		b.WriteString(recordsFooter())
	case viewSummary:
		b.WriteString(m.summary.View())
		b.WriteString("\n")
		b.WriteString(summaryFooter())
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.status)
	}
	return b.String()
}

// remedy tells the user what to do about an analyze failure.
func remedy(err error) string {
	switch {
	case errors.Is(err, model.ErrNotAuthorized), errors.Is(err, model.ErrCredentialExpired):
		return "Run `finsync authorize` to connect the mailbox again."
	case errors.Is(err, model.ErrMailSearchFailed):
		return "The mailbox could not be searched. Try again."
	case errors.Is(err, model.ErrUnreadableInput):
		return "A statement attachment could not be read. Check the exported file."
	}
	return ""
}
