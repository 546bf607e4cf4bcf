package validate

import (
	"errors"
	"fmt"

	"github.com/rumor-ml/commons.systems/taxparse/internal/domain"
	"github.com/rumor-ml/commons.systems/taxparse/internal/money"
	"github.com/rumor-ml/commons.systems/taxparse/internal/trade"
)

// ValidationResult contains all validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// ValidationError represents a validation error
type ValidationError struct {
	Entity  string // "row", "report", "position"
	ID      string
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s %s: %s %q: %s", e.Entity, e.ID, e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Entity, e.ID, e.Field, e.Message)
}

// ValidationWarning represents a non-critical validation issue
type ValidationWarning struct {
	Entity  string
	ID      string
	Field   string
	Value   string
	Message string
}

func (w ValidationWarning) String() string {
	return fmt.Sprintf("%s %s: %s", w.Entity, w.ID, w.Message)
}

// Err joins every validation error, or returns nil when there are none.
func (r *ValidationResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

func newResult() *ValidationResult {
	return &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}
}

// ValidateRows checks every row before classification and collects all
// problems instead of stopping at the first.
func ValidateRows(rows []domain.Row, tradingCode int) *ValidationResult {
	result := newResult()
	seen := make(map[string]bool, len(rows))

	for _, row := range rows {
		id := row.Location()

		if row.ID != "" {
			if seen[row.ID] {
				result.Errors = append(result.Errors, ValidationError{
					Entity:  "row",
					ID:      id,
					Field:   "ID",
					Value:   row.ID,
					Message: "duplicate row ID",
				})
			}
			seen[row.ID] = true
		}

		if _, err := money.ParseAmount(row.AmountText); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "row",
				ID:      id,
				Field:   "Amount",
				Value:   row.AmountText,
				Message: err.Error(),
			})
		}

		if _, err := domain.ParseDate(row.PostingDate); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "row",
				ID:      id,
				Field:   "PostingDate",
				Value:   row.PostingDate,
				Message: "unrecognized date format",
			})
		}

		if row.CategoryCode < 0 {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "row",
				ID:      id,
				Field:   "CategoryCode",
				Value:   fmt.Sprintf("%d", row.CategoryCode),
				Message: "category code cannot be negative",
			})
		}

		isTrade := trade.IsTrade(row.Message)
		switch {
		case row.CategoryCode == tradingCode && !isTrade:
			result.Warnings = append(result.Warnings, ValidationWarning{
				Entity:  "row",
				ID:      id,
				Field:   "Message",
				Value:   row.Message,
				Message: "trading code without trade notation; treated as a non-trade row",
			})
		case row.CategoryCode != tradingCode && isTrade:
			result.Warnings = append(result.Warnings, ValidationWarning{
				Entity:  "row",
				ID:      id,
				Field:   "CategoryCode",
				Value:   fmt.Sprintf("%d", row.CategoryCode),
				Message: "trade notation outside the trading code; not matched as a trade",
			})
		}
	}

	return result
}

// ValidateReport checks that a report's totals agree with its positions.
func ValidateReport(r *domain.Report) *ValidationResult {
	result := newResult()
	if r == nil {
		result.Errors = append(result.Errors, ValidationError{
			Entity:  "report",
			Field:   "Report",
			Message: "report cannot be nil",
		})
		return result
	}

	var realized, book int64
	symbols := make(map[string]bool, len(r.Positions))
	for _, p := range r.Positions {
		if symbols[p.Symbol] {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "position",
				ID:      p.Symbol,
				Field:   "Symbol",
				Value:   p.Symbol,
				Message: "duplicate position",
			})
		}
		symbols[p.Symbol] = true

		for _, lot := range p.OpenLots {
			if lot.Shares <= 0 || lot.CostCents < 0 {
				result.Errors = append(result.Errors, ValidationError{
					Entity:  "position",
					ID:      p.Symbol,
					Field:   "OpenLots",
					Value:   lot.Date,
					Message: fmt.Sprintf("open lot must have positive shares and non-negative cost, got %d shares at %s", lot.Shares, money.FormatAmount(lot.CostCents)),
				})
			}
		}
		for _, s := range p.Shortfalls {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Entity:  "position",
				ID:      p.Symbol,
				Field:   "Shortfalls",
				Value:   s.Date,
				Message: fmt.Sprintf("%d shares sold without matching buys", s.Shares),
			})
		}

		realized += p.RealizedCents
		book += p.BookValueCents()
	}

	check := func(field string, got, want int64) {
		if got != want {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "report",
				ID:      r.RunID,
				Field:   field,
				Value:   money.FormatAmount(got),
				Message: fmt.Sprintf("expected %s", money.FormatAmount(want)),
			})
		}
	}
	check("CapitalGains", r.CapitalGainsCents, realized)
	check("FinancialAsset", r.FinancialAssetCents, book)
	check("BusinessIncome", r.BusinessIncomeCents, r.DividendCents+r.CapitalGainsCents)
	if r.BusinessExpenseCents < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Entity:  "report",
			ID:      r.RunID,
			Field:   "BusinessExpense",
			Value:   money.FormatAmount(r.BusinessExpenseCents),
			Message: "business expense is a magnitude and cannot be negative",
		})
	}

	if !r.Checksum.Complete() {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Entity:  "report",
			ID:      r.RunID,
			Field:   "Checksum",
			Value:   fmt.Sprintf("%d/%d", r.Checksum.Classified, r.Checksum.Total),
			Message: "not every row falls in a checksum category",
		})
	}

	return result
}
