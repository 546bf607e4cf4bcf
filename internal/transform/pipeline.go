package transform

import (
	"errors"
	"fmt"

	"github.com/rumor-ml/commons.systems/taxparse/internal/domain"
	"github.com/rumor-ml/commons.systems/taxparse/internal/parser"
)

// BuildLedger concatenates statements in the order given into one ledger and
// assigns each row a stable ID from its source and line.
func BuildLedger(statements []*parser.Statement) (*domain.Ledger, error) {
	ledger := domain.NewLedger()
	for i, stmt := range statements {
		if err := AppendStatement(ledger, stmt); err != nil {
			return nil, fmt.Errorf("failed to add statement %d: %w", i, err)
		}
	}
	return ledger, nil
}

// AppendStatement adds one statement's rows to the ledger in file order.
func AppendStatement(ledger *domain.Ledger, stmt *parser.Statement) error {
	if ledger == nil {
		return fmt.Errorf("ledger cannot be nil")
	}
	if stmt == nil {
		return fmt.Errorf("statement cannot be nil")
	}

	slug, err := SlugifySource(stmt.Source())
	if err != nil {
		return fmt.Errorf("failed to generate source slug: %w", err)
	}

	for _, row := range stmt.Rows() {
		row.ID = GenerateRowID(slug, row.Line)
		if err := ledger.AddRow(row); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return fmt.Errorf("%s line %d collides with an earlier source of the same name: %w", stmt.Source(), row.Line, err)
			}
			return fmt.Errorf("failed to add row at %s line %d: %w", stmt.Source(), row.Line, err)
		}
	}
	return nil
}
