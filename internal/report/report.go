// Package report turns classified ledger rows into the tax summary.
package report

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rumor-ml/commons.systems/taxparse/internal/classify"
	"github.com/rumor-ml/commons.systems/taxparse/internal/domain"
	"github.com/rumor-ml/commons.systems/taxparse/internal/fifo"
	"github.com/rumor-ml/commons.systems/taxparse/internal/money"
	"github.com/rumor-ml/commons.systems/taxparse/internal/rules"
)

// Builder aggregates rows into a Report. A Builder is safe for concurrent use.
type Builder struct {
	engine      *rules.Engine
	logger      zerolog.Logger
	concurrency int
	now         func() time.Time
	newID       func() string
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithConcurrency bounds how many symbols are matched at once.
// Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n >= 1 {
			b.concurrency = n
		}
	}
}

// WithClock sets the source of Report.GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithIDFunc sets the source of Report.RunID.
func WithIDFunc(newID func() string) Option {
	return func(b *Builder) { b.newID = newID }
}

// New creates a Builder using the given label rules.
func New(engine *rules.Engine, opts ...Option) (*Builder, error) {
	if engine == nil {
		return nil, fmt.Errorf("rules engine cannot be nil")
	}
	b := &Builder{
		engine:      engine,
		logger:      zerolog.Nop(),
		concurrency: runtime.GOMAXPROCS(0),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Outcome carries the classification alongside the report built from it.
type Outcome struct {
	Classification *classify.Result
	Report         *domain.Report
}

// BuildReport builds a report with the embedded label rules.
func BuildReport(rows []domain.Row) (*domain.Report, error) {
	b, err := New(rules.MustLoadEmbedded())
	if err != nil {
		return nil, err
	}
	return b.Build(rows)
}

// Build classifies rows, matches every symbol FIFO and sums the totals.
func (b *Builder) Build(rows []domain.Row) (*domain.Report, error) {
	out, err := b.Run(context.Background(), rows)
	if err != nil {
		return nil, err
	}
	return out.Report, nil
}

// Run is Build that also returns the classification and honors ctx.
func (b *Builder) Run(ctx context.Context, rows []domain.Row) (*Outcome, error) {
	result, err := classify.Classify(rows, b.engine)
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	symbols := result.Symbols()
	positions, err := b.matchSymbols(ctx, result, symbols)
	if err != nil {
		return nil, err
	}

	rpt := &domain.Report{
		RunID:       b.newID(),
		GeneratedAt: b.now().UTC(),
		Positions:   positions,
		Checksum:    result.Checksum(),
	}

	for _, p := range positions {
		rpt.CapitalGainsCents += p.RealizedCents
		rpt.FinancialAssetCents += p.BookValueCents()
		for _, s := range p.Shortfalls {
			rpt.Warnings = append(rpt.Warnings, fmt.Sprintf(
				"%s: sell on %s exceeds holdings by %d shares, %s of proceeds left out of capital gains",
				p.Symbol, s.Date, s.Shares, money.FormatAmount(s.ProceedsCents)))
		}
	}

	rpt.DividendCents = result.Sum(result.Indices(domain.CategoryDividend))
	rpt.CashInfusionCents = result.Sum(result.Indices(domain.CategoryCashInfusion))
	rpt.ServiceChargeCents = result.Sum(result.Indices(domain.CategoryServiceCharge))
	rpt.BusinessIncomeCents = rpt.DividendCents + rpt.CapitalGainsCents
	rpt.BusinessExpenseCents = money.Abs(result.Sum(result.Expenses()))
	rpt.CashCents = result.Total()

	if !rpt.Checksum.Complete() {
		rpt.Warnings = append(rpt.Warnings, fmt.Sprintf(
			"classification incomplete: %d of %d rows fall in cash infusion, dividend, trading or expense",
			rpt.Checksum.Classified, rpt.Checksum.Total))
	}

	for _, w := range rpt.Warnings {
		b.logger.Warn().Str("run_id", rpt.RunID).Msg(w)
	}
	b.logger.Info().
		Str("run_id", rpt.RunID).
		Int("rows", len(rows)).
		Int("symbols", len(symbols)).
		Str("capital_gains", money.FormatAmount(rpt.CapitalGainsCents)).
		Msg("report built")

	return &Outcome{Classification: result, Report: rpt}, nil
}

// matchSymbols runs FIFO per symbol on a bounded errgroup. Each goroutine
// writes only its own slot, so positions come back in first-appearance order.
func (b *Builder) matchSymbols(ctx context.Context, result *classify.Result, symbols []string) ([]domain.Position, error) {
	positions := make([]domain.Position, len(symbols))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, symbol := range symbols {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			events, err := result.TradeEvents(symbol)
			if err != nil {
				return fmt.Errorf("symbol %s: %w", symbol, err)
			}
			if err := SortByDate(events); err != nil {
				return fmt.Errorf("symbol %s: %w", symbol, err)
			}

			matched := fifo.Match(events)
			positions[i] = matched.Position(symbol)

			b.logger.Debug().
				Str("symbol", symbol).
				Int("events", len(events)).
				Int("open_lots", len(matched.OpenLots)).
				Str("realized", money.FormatAmount(matched.ProfitCents)).
				Msg("matched")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return positions, nil
}

// SortByDate orders events by posting date in place. Events on the same day
// keep their ledger order.
func SortByDate(events []domain.TradeEvent) error {
	dates := make([]time.Time, len(events))
	for i, ev := range events {
		d, err := domain.ParseDate(ev.Date)
		if err != nil {
			return err
		}
		dates[i] = d
	}

	idx := make([]int, len(events))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return dates[idx[a]].Before(dates[idx[b]])
	})

	sorted := make([]domain.TradeEvent, len(events))
	for i, j := range idx {
		sorted[i] = events[j]
	}
	copy(events, sorted)
	return nil
}
