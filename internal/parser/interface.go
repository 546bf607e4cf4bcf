package parser

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rumor-ml/commons.systems/taxparse/internal/domain"
)

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = errors.New("missing column")

// Parser is the strategy interface for all export format parsers
type Parser interface {
	// Name returns parser identifier (e.g., "csv-op")
	Name() string

	// CanParse checks if parser can handle this file
	// Returns true if this parser should be used for the file
	CanParse(path string, header []byte) bool

	// Parse extracts rows from the file. Row IDs are left empty; the ledger assigns them.
	Parse(ctx context.Context, r io.Reader, meta *Metadata) (*Statement, error)
}

// Statement is the rows of one export file, in file order.
type Statement struct {
	source string
	rows   []domain.Row
}

// NewStatement creates a statement for the file at source.
func NewStatement(source string, rows []domain.Row) (*Statement, error) {
	if source == "" {
		return nil, fmt.Errorf("statement source cannot be empty")
	}
	for i, row := range rows {
		if row.Line <= 0 {
			return nil, fmt.Errorf("row %d of %s: line number must be positive, got %d", i, source, row.Line)
		}
	}
	return &Statement{source: source, rows: rows}, nil
}

// Source returns the path the rows were read from
func (s *Statement) Source() string { return s.source }

// Len returns the number of rows
func (s *Statement) Len() int { return len(s.rows) }

// Rows returns a copy of the rows in file order
func (s *Statement) Rows() []domain.Row {
	rows := make([]domain.Row, len(s.rows))
	copy(rows, s.rows)
	return rows
}
