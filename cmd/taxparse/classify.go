package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/rumor-ml/commons.systems/taxparse/internal/classify"
	"github.com/rumor-ml/commons.systems/taxparse/internal/config"
	"github.com/rumor-ml/commons.systems/taxparse/internal/domain"
	"github.com/rumor-ml/commons.systems/taxparse/internal/logger"
	"github.com/rumor-ml/commons.systems/taxparse/internal/money"
	"github.com/rumor-ml/commons.systems/taxparse/internal/ui"
)

var categoryOrder = []domain.Category{
	domain.CategoryCashInfusion,
	domain.CategoryDividend,
	domain.CategoryServiceCharge,
	domain.CategoryStockTrading,
	domain.CategoryOtherExpense,
	domain.CategoryUncategorized,
}

// classifyCmd holds the flags for the 'classify' subcommand.
type classifyCmd struct {
	cfg config.Config
	in  inputFlags

	examples int
}

func (*classifyCmd) Name() string     { return "classify" }
func (*classifyCmd) Synopsis() string { return "show how rows fall into categories" }
func (*classifyCmd) Usage() string {
	return `taxparse classify -input <dir> [-rules <file>] [-examples <n>]

  Prints the row count and sum per category, the checksum and the first
  uncategorized rows, to help tune the label rules.
`
}

func (c *classifyCmd) SetFlags(f *flag.FlagSet) {
	c.in.register(f, c.cfg)
	f.IntVar(&c.examples, "examples", 5, "Uncategorized rows to show")
}

func (c *classifyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if status := c.in.check(f); status != subcommands.ExitSuccess {
		return status
	}
	if err := c.run(ctx); err != nil {
		ui.Error(err.Error())
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *classifyCmd) run(ctx context.Context) error {
	ctx = logger.WithContext(ctx, c.in.newLogger(c.cfg))

	data, err := load(ctx, &c.in)
	if err != nil {
		return err
	}
	result, err := classify.Classify(data.rows, data.engine)
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	counts := result.Counts()
	for _, cat := range categoryOrder {
		fmt.Fprintf(os.Stdout, "%-16s %6d %14s\n", cat, counts[cat], money.FormatAmount(result.Sum(result.Indices(cat))))
	}
	fmt.Fprintf(os.Stdout, "%-16s %6d %14s\n", "expenses", len(result.Expenses()), money.FormatAmount(result.Sum(result.Expenses())))

	cs := result.Checksum()
	fmt.Fprintf(os.Stdout, "\nchecksum: %d/%d rows classified\n", cs.Classified, cs.Total)
	if !cs.Complete() {
		ui.Warning(fmt.Sprintf("%d rows fall outside the checksum categories", cs.Total-cs.Classified))
	}

	uncategorized := result.Indices(domain.CategoryUncategorized)
	if len(uncategorized) > 0 && c.examples > 0 {
		fmt.Fprintln(os.Stdout, "\nuncategorized:")
		for n, i := range uncategorized {
			if n >= c.examples {
				fmt.Fprintf(os.Stdout, "  ... and %d more\n", len(uncategorized)-c.examples)
				break
			}
			row := result.Row(i)
			fmt.Fprintf(os.Stdout, "  %s  %s  %d  %s  %s\n",
				row.Location(), money.FormatAmount(result.Amount(i)), row.CategoryCode, row.Description, row.Message)
		}
	}
	return nil
}
