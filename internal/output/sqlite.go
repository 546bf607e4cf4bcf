package output

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rumor-ml/commons.systems/taxparse/internal/classify"
	"github.com/rumor-ml/commons.systems/taxparse/internal/domain"
)

const schema = `
CREATE TABLE runs (
	run_id TEXT PRIMARY KEY,
	generated_at TEXT NOT NULL,
	business_income_cents INTEGER NOT NULL,
	business_expense_cents INTEGER NOT NULL,
	cash_cents INTEGER NOT NULL,
	financial_asset_cents INTEGER NOT NULL,
	dividend_cents INTEGER NOT NULL,
	capital_gains_cents INTEGER NOT NULL,
	service_charge_cents INTEGER NOT NULL,
	cash_infusion_cents INTEGER NOT NULL,
	classified_rows INTEGER NOT NULL,
	total_rows INTEGER NOT NULL
);

CREATE TABLE rows (
	seq INTEGER PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	id TEXT,
	source TEXT,
	line INTEGER,
	posting_date TEXT NOT NULL,
	amount_cents INTEGER NOT NULL,
	category_code INTEGER NOT NULL,
	description TEXT,
	message TEXT,
	category TEXT NOT NULL,
	is_expense BOOLEAN NOT NULL
);

CREATE TABLE positions (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	symbol TEXT NOT NULL,
	realized_cents INTEGER NOT NULL,
	PRIMARY KEY (run_id, symbol)
);

CREATE TABLE open_lots (
	run_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	seq INTEGER NOT NULL,
	date TEXT NOT NULL,
	shares INTEGER NOT NULL,
	cost_cents INTEGER NOT NULL,
	PRIMARY KEY (run_id, symbol, seq),
	FOREIGN KEY (run_id, symbol) REFERENCES positions(run_id, symbol)
);

CREATE TABLE shortfalls (
	run_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	date TEXT NOT NULL,
	shares INTEGER NOT NULL,
	proceeds_cents INTEGER NOT NULL,
	FOREIGN KEY (run_id, symbol) REFERENCES positions(run_id, symbol)
);

CREATE TABLE warnings (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	seq INTEGER NOT NULL,
	message TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// ExportSQLite writes the classified rows and the report into a new SQLite
// database at path. An existing file is an error.
func ExportSQLite(ctx context.Context, path string, result *classify.Result, report *domain.Report) (err error) {
	if result == nil || report == nil {
		return fmt.Errorf("classification and report cannot be nil")
	}
	if path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return fmt.Errorf("database %s already exists", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", path, err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close database %s: %w", path, closeErr)
		}
	}()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if err = insertRun(ctx, tx, report); err != nil {
		return err
	}
	if err = insertRows(ctx, tx, report.RunID, result); err != nil {
		return err
	}
	if err = insertPositions(ctx, tx, report); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}
	return nil
}

func insertRun(ctx context.Context, tx *sql.Tx, r *domain.Report) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, generated_at, business_income_cents, business_expense_cents,
			cash_cents, financial_asset_cents, dividend_cents, capital_gains_cents,
			service_charge_cents, cash_infusion_cents, classified_rows, total_rows)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.GeneratedAt.UTC().Format(time.RFC3339),
		r.BusinessIncomeCents, r.BusinessExpenseCents, r.CashCents, r.FinancialAssetCents,
		r.DividendCents, r.CapitalGainsCents, r.ServiceChargeCents, r.CashInfusionCents,
		r.Checksum.Classified, r.Checksum.Total)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", r.RunID, err)
	}

	for i, w := range r.Warnings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO warnings (run_id, seq, message) VALUES (?, ?, ?)`,
			r.RunID, i, w); err != nil {
			return fmt.Errorf("failed to insert warning %d: %w", i, err)
		}
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, runID string, result *classify.Result) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rows (seq, run_id, id, source, line, posting_date, amount_cents,
			category_code, description, message, category, is_expense)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < result.Len(); i++ {
		row := result.Row(i)
		if _, err := stmt.ExecContext(ctx,
			i, runID, row.ID, row.Source, row.Line, row.PostingDate, result.Amount(i),
			row.CategoryCode, row.Description, row.Message,
			string(result.Category(i)), result.IsExpense(i)); err != nil {
			return fmt.Errorf("failed to insert row %s: %w", row.Location(), err)
		}
	}
	return nil
}

func insertPositions(ctx context.Context, tx *sql.Tx, r *domain.Report) error {
	for _, p := range r.Positions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO positions (run_id, symbol, realized_cents) VALUES (?, ?, ?)`,
			r.RunID, p.Symbol, p.RealizedCents); err != nil {
			return fmt.Errorf("failed to insert position %s: %w", p.Symbol, err)
		}
		for i, lot := range p.OpenLots {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO open_lots (run_id, symbol, seq, date, shares, cost_cents) VALUES (?, ?, ?, ?, ?, ?)`,
				r.RunID, p.Symbol, i, lot.Date, lot.Shares, lot.CostCents); err != nil {
				return fmt.Errorf("failed to insert lot %s/%d: %w", p.Symbol, i, err)
			}
		}
		for _, s := range p.Shortfalls {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO shortfalls (run_id, symbol, date, shares, proceeds_cents) VALUES (?, ?, ?, ?, ?)`,
				r.RunID, p.Symbol, s.Date, s.Shares, s.ProceedsCents); err != nil {
				return fmt.Errorf("failed to insert shortfall %s: %w", p.Symbol, err)
			}
		}
	}
	return nil
}
