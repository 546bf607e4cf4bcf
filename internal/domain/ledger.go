package domain

import (
	"encoding/json"
	"fmt"
)

// Ledger is the ordered arena of rows gathered from every export of a run.
// Row order is ledger order: files in scan order, lines in file order.
type Ledger struct {
	rows  []Row
	index map[string]int
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		rows:  []Row{},
		index: make(map[string]int),
	}
}

// AddRow appends a row, rejecting empty and duplicate IDs
func (l *Ledger) AddRow(row Row) error {
	if row.ID == "" {
		return fmt.Errorf("invalid row: ID is required")
	}
	if _, ok := l.index[row.ID]; ok {
		return fmt.Errorf("row %s: %w", row.ID, ErrAlreadyExists)
	}
	l.index[row.ID] = len(l.rows)
	l.rows = append(l.rows, row)
	return nil
}

// Len returns the number of rows
func (l *Ledger) Len() int { return len(l.rows) }

// Lookup returns the row with the given ID
func (l *Ledger) Lookup(id string) (Row, bool) {
	i, ok := l.index[id]
	if !ok {
		return Row{}, false
	}
	return l.rows[i], true
}

// GetRows returns a copy of the rows in insertion order
func (l *Ledger) GetRows() []Row {
	return append([]Row(nil), l.rows...)
}

// MarshalJSON implements custom JSON marshaling for Ledger
func (l *Ledger) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Rows []Row `json:"rows"`
	}{
		Rows: l.rows,
	})
}
