// Package classify partitions ledger rows into disjoint categories.
//
// Groups hold indices into the caller's row slice, never copies, so a row's
// identity is its position and duplicate field values never merge.
package classify

import (
	"fmt"
	"sort"

	"github.com/rumor-ml/commons.systems/taxparse/internal/domain"
	"github.com/rumor-ml/commons.systems/taxparse/internal/money"
	"github.com/rumor-ml/commons.systems/taxparse/internal/rules"
	"github.com/rumor-ml/commons.systems/taxparse/internal/trade"
)

// Result is the partition of one row set.
type Result struct {
	rows     []domain.Row
	amounts  []int64
	category []domain.Category
	trades   map[int]trade.Match // every row whose message is in trade notation

	cashInfusions  []int
	dividends      []int
	serviceCharges []int
	otherExpenses  []int
	uncategorized  []int

	bySymbol map[string][]int
	symbols  []string // first-appearance order
}

// Classify assigns every row to exactly one category. Precedence:
// stock trading, then label rules (cash infusion, dividend, service charge),
// then other expense, then uncategorized.
//
// A malformed amount aborts classification with the wrapped *money.FormatError.
func Classify(rows []domain.Row, engine *rules.Engine) (*Result, error) {
	if engine == nil {
		return nil, fmt.Errorf("rules engine cannot be nil")
	}

	r := &Result{
		rows:     rows,
		amounts:  make([]int64, len(rows)),
		category: make([]domain.Category, len(rows)),
		trades:   make(map[int]trade.Match),
		bySymbol: make(map[string][]int),
	}

	for i, row := range rows {
		amount, err := money.ParseAmount(row.AmountText)
		if err != nil {
			return nil, fmt.Errorf("row %s (%s): %w", row.ID, row.Location(), err)
		}
		r.amounts[i] = amount

		match, isTrade := trade.MatchTrade(row.Message)
		if isTrade {
			r.trades[i] = match
		}

		if isTrade && row.CategoryCode == engine.TradingCode() {
			r.assign(i, domain.CategoryStockTrading)
			if _, seen := r.bySymbol[match.Symbol]; !seen {
				r.symbols = append(r.symbols, match.Symbol)
			}
			r.bySymbol[match.Symbol] = append(r.bySymbol[match.Symbol], i)
			continue
		}

		if label, ok := engine.Match(row.Description, row.CategoryCode); ok {
			r.assign(i, label.Category)
			continue
		}

		if amount < 0 && !isTrade {
			r.assign(i, domain.CategoryOtherExpense)
			continue
		}

		r.assign(i, domain.CategoryUncategorized)
	}

	return r, nil
}

func (r *Result) assign(i int, c domain.Category) {
	r.category[i] = c
	switch c {
	case domain.CategoryCashInfusion:
		r.cashInfusions = append(r.cashInfusions, i)
	case domain.CategoryDividend:
		r.dividends = append(r.dividends, i)
	case domain.CategoryServiceCharge:
		r.serviceCharges = append(r.serviceCharges, i)
	case domain.CategoryOtherExpense:
		r.otherExpenses = append(r.otherExpenses, i)
	case domain.CategoryUncategorized:
		r.uncategorized = append(r.uncategorized, i)
	}
}

// Len returns the total number of rows classified.
func (r *Result) Len() int { return len(r.rows) }

// Row returns the row at index i of the classified slice.
func (r *Result) Row(i int) domain.Row { return r.rows[i] }

// Amount returns the parsed amount of row i in cents.
func (r *Result) Amount(i int) int64 { return r.amounts[i] }

// Category returns the category row i was assigned to.
func (r *Result) Category(i int) domain.Category { return r.category[i] }

// Indices returns the row indices of a category, in row order.
// Stock trading indices of all symbols are merged.
func (r *Result) Indices(c domain.Category) []int {
	switch c {
	case domain.CategoryCashInfusion:
		return copyInts(r.cashInfusions)
	case domain.CategoryDividend:
		return copyInts(r.dividends)
	case domain.CategoryServiceCharge:
		return copyInts(r.serviceCharges)
	case domain.CategoryOtherExpense:
		return copyInts(r.otherExpenses)
	case domain.CategoryUncategorized:
		return copyInts(r.uncategorized)
	case domain.CategoryStockTrading:
		var all []int
		for _, s := range r.symbols {
			all = append(all, r.bySymbol[s]...)
		}
		sort.Ints(all)
		return all
	default:
		return nil
	}
}

// Symbols returns the traded symbols in order of first appearance.
func (r *Result) Symbols() []string {
	return append([]string(nil), r.symbols...)
}

// SymbolIndices returns the row indices of one symbol's trades, in row order.
func (r *Result) SymbolIndices(symbol string) []int {
	return copyInts(r.bySymbol[symbol])
}

// TradeEvents materializes the symbol's trades in row order.
func (r *Result) TradeEvents(symbol string) ([]domain.TradeEvent, error) {
	indices := r.bySymbol[symbol]
	events := make([]domain.TradeEvent, 0, len(indices))
	for _, i := range indices {
		m := r.trades[i]
		ev, err := domain.NewTradeEvent(r.rows[i].PostingDate, m.Symbol, m.Side, m.Shares, money.Abs(r.amounts[i]))
		if err != nil {
			return nil, fmt.Errorf("row %s (%s): %w", r.rows[i].ID, r.rows[i].Location(), err)
		}
		events = append(events, *ev)
	}
	return events, nil
}

// IsExpense reports whether row i passes the expense test: a negative amount
// whose message is not in trade notation.
func (r *Result) IsExpense(i int) bool {
	_, isTrade := r.trades[i]
	return r.amounts[i] < 0 && !isTrade
}

// Expenses returns other-expense rows plus service charges that pass the
// expense test, in row order.
func (r *Result) Expenses() []int {
	out := make([]int, 0, len(r.otherExpenses)+len(r.serviceCharges))
	out = append(out, r.otherExpenses...)
	for _, i := range r.serviceCharges {
		if r.IsExpense(i) {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

// Sum adds the amounts of the given rows in cents.
func (r *Result) Sum(indices []int) int64 {
	var total int64
	for _, i := range indices {
		total += r.amounts[i]
	}
	return total
}

// Total adds the amounts of every row in cents.
func (r *Result) Total() int64 {
	var total int64
	for _, a := range r.amounts {
		total += a
	}
	return total
}

// Checksum counts rows in cash infusion, dividend, stock trading and expenses
// against the total row count. A mismatch is a data-quality signal only.
func (r *Result) Checksum() domain.Checksum {
	classified := len(r.cashInfusions) + len(r.dividends) + len(r.Expenses())
	for _, s := range r.symbols {
		classified += len(r.bySymbol[s])
	}
	return domain.Checksum{Classified: classified, Total: len(r.rows)}
}

// Counts returns the number of rows per category.
func (r *Result) Counts() map[domain.Category]int {
	counts := map[domain.Category]int{
		domain.CategoryCashInfusion:  len(r.cashInfusions),
		domain.CategoryDividend:      len(r.dividends),
		domain.CategoryServiceCharge: len(r.serviceCharges),
		domain.CategoryOtherExpense:  len(r.otherExpenses),
		domain.CategoryUncategorized: len(r.uncategorized),
	}
	for _, s := range r.symbols {
		counts[domain.CategoryStockTrading] += len(r.bySymbol[s])
	}
	return counts
}

func copyInts(in []int) []int {
	if in == nil {
		return nil
	}
	return append([]int(nil), in...)
}
