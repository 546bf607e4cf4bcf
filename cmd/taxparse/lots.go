package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/rumor-ml/commons.systems/taxparse/internal/config"
	"github.com/rumor-ml/commons.systems/taxparse/internal/domain"
	"github.com/rumor-ml/commons.systems/taxparse/internal/logger"
	"github.com/rumor-ml/commons.systems/taxparse/internal/money"
	"github.com/rumor-ml/commons.systems/taxparse/internal/report"
	"github.com/rumor-ml/commons.systems/taxparse/internal/ui"
)

// lotsCmd holds the flags for the 'lots' subcommand.
type lotsCmd struct {
	cfg config.Config
	in  inputFlags

	symbol string
}

func (*lotsCmd) Name() string     { return "lots" }
func (*lotsCmd) Synopsis() string { return "list realized profit and open lots per symbol" }
func (*lotsCmd) Usage() string {
	return `taxparse lots -input <dir> [-symbol <symbol>]

  Matches trades FIFO and prints, per symbol, the realized profit, the lots
  still held and any sells that exceeded holdings.
`
}

func (c *lotsCmd) SetFlags(f *flag.FlagSet) {
	c.in.register(f, c.cfg)
	f.StringVar(&c.symbol, "symbol", "", "Only show this symbol")
}

func (c *lotsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if status := c.in.check(f); status != subcommands.ExitSuccess {
		return status
	}
	if err := c.run(ctx); err != nil {
		ui.Error(err.Error())
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *lotsCmd) run(ctx context.Context) error {
	log := c.in.newLogger(c.cfg)
	ctx = logger.WithContext(ctx, log)

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
		return fmt.Errorf("failed to match lots: %w", err)
	}
	rpt := out.Report

	positions := rpt.Positions
	if c.symbol != "" {
		p, ok := rpt.Position(c.symbol)
		if !ok {
			return fmt.Errorf("no trades for symbol %s", c.symbol)
		}
		positions = []domain.Position{p}
	}

	for _, p := range positions {
		fmt.Fprintf(os.Stdout, "%s  realized %s  open %d shares  book %s\n",
			p.Symbol, money.FormatAmount(p.RealizedCents), p.OpenShares(), money.FormatAmount(p.BookValueCents()))
		for _, lot := range p.OpenLots {
			fmt.Fprintf(os.Stdout, "  %s  %6d  %12s\n", lot.Date, lot.Shares, money.FormatAmount(lot.CostCents))
		}
		for _, s := range p.Shortfalls {
			fmt.Fprintf(os.Stdout, "  %s  short %d shares  %s unmatched\n", s.Date, s.Shares, money.FormatAmount(s.ProceedsCents))
		}
	}
	return nil
}
