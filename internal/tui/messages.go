package tui

import (
	"finsync/internal/importer"
	"finsync/internal/model"
)

// Async message types for Bubble Tea commands.

type analyzeDoneMsg struct {
	batch model.ImportBatch
	err   error
}

type confirmDoneMsg struct {
	result importer.ConfirmResult
	err    error
}

type statusMsg string
