package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/rumor-ml/commons.systems/taxparse/internal/config"
	"github.com/rumor-ml/commons.systems/taxparse/internal/logger"
	"github.com/rumor-ml/commons.systems/taxparse/internal/money"
	"github.com/rumor-ml/commons.systems/taxparse/internal/output"
	"github.com/rumor-ml/commons.systems/taxparse/internal/report"
	"github.com/rumor-ml/commons.systems/taxparse/internal/ui"
	"github.com/rumor-ml/commons.systems/taxparse/internal/validate"
)

// reportCmd holds the flags for the 'report' subcommand.
type reportCmd struct {
	cfg config.Config
	in  inputFlags

	outputFile string
	sqliteFile string
	force      bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "build the yearly tax summary" }
func (*reportCmd) Usage() string {
	return `taxparse report -input <dir> [-output <file>] [-sqlite <file>] [-rules <file>] [-verbose]

  Classifies every row of the OP exports in <dir>, matches trades FIFO per
  symbol and prints the tax summary as JSON.

Examples:
  # Summary to stdout
  taxparse report -input ~/op

  # Summary to a file plus a SQLite database for ad-hoc queries
  taxparse report -input ~/op -output 2021.json -sqlite 2021.db

`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	c.in.register(f, c.cfg)
	f.StringVar(&c.outputFile, "output", "", "Output JSON file (default: stdout)")
	f.StringVar(&c.sqliteFile, "sqlite", "", "Also export rows and positions to this SQLite database")
	f.BoolVar(&c.force, "force", false, "Overwrite an existing output file")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if status := c.in.check(f); status != subcommands.ExitSuccess {
		return status
	}
	if err := c.run(ctx); err != nil {
		ui.Error(err.Error())
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *reportCmd) run(ctx context.Context) error {
	log := c.in.newLogger(c.cfg)
	ctx = logger.WithContext(ctx, log)

	ui.Header("Building Tax Report")
	data, err := load(ctx, &c.in)
	if err != nil {
		return err
	}

	builder, err := report.New(data.engine,
		report.WithLogger(log),
		report.WithConcurrency(c.in.concurrency))
	if err != nil {
		return err
	}
	out, err := builder.Run(ctx, data.rows)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	rpt := out.Report

	check := validate.ValidateReport(rpt)
	if err := check.Err(); err != nil {
		return fmt.Errorf("report is inconsistent: %w", err)
	}
	for _, w := range rpt.Warnings {
		ui.Warning(w)
	}

	ui.KeyValue("Business income", money.Display(rpt.BusinessIncomeCents, "EUR"))
	ui.KeyValue("  Dividends", money.Display(rpt.DividendCents, "EUR"))
	ui.KeyValue("  Capital gains", money.Display(rpt.CapitalGainsCents, "EUR"))
	ui.KeyValue("Business expense", money.Display(rpt.BusinessExpenseCents, "EUR"))
	ui.KeyValue("Cash", money.Display(rpt.CashCents, "EUR"))
	ui.KeyValue("Financial assets", money.Display(rpt.FinancialAssetCents, "EUR"))

	if err := output.WriteReportToFile(rpt, output.WriteOptions{FilePath: c.outputFile, Overwrite: c.force}); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if c.outputFile != "" {
		ui.Success(fmt.Sprintf("Output written to %s", c.outputFile))
	}

	if c.sqliteFile != "" {
		if err := output.ExportSQLite(ctx, c.sqliteFile, out.Classification, rpt); err != nil {
			return fmt.Errorf("failed to export SQLite: %w", err)
		}
		ui.Success(fmt.Sprintf("Database written to %s", c.sqliteFile))
	}

	return nil
}
