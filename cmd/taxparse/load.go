package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/taxparse/internal/config"
	"github.com/rumor-ml/commons.systems/taxparse/internal/dedup"
	"github.com/rumor-ml/commons.systems/taxparse/internal/domain"
	"github.com/rumor-ml/commons.systems/taxparse/internal/logger"
	"github.com/rumor-ml/commons.systems/taxparse/internal/parser"
	"github.com/rumor-ml/commons.systems/taxparse/internal/registry"
	"github.com/rumor-ml/commons.systems/taxparse/internal/rules"
	"github.com/rumor-ml/commons.systems/taxparse/internal/scanner"
	"github.com/rumor-ml/commons.systems/taxparse/internal/transform"
	"github.com/rumor-ml/commons.systems/taxparse/internal/ui"
	"github.com/rumor-ml/commons.systems/taxparse/internal/validate"
)

// inputFlags are shared by every subcommand that reads bank exports.
type inputFlags struct {
	input       string
	rules       string
	encoding    string
	concurrency int
	verbose     bool
}

func (f *inputFlags) register(fs *flag.FlagSet, cfg config.Config) {
	fs.StringVar(&f.input, "input", cfg.InputDir, "Input directory containing OP CSV exports (required)")
	fs.StringVar(&f.rules, "rules", cfg.RulesPath, "Label rules YAML file (default: embedded rules)")
	fs.StringVar(&f.encoding, "encoding", cfg.Encoding, "Export encoding: auto, latin1 or utf-8")
	fs.IntVar(&f.concurrency, "concurrency", cfg.Concurrency, "Symbols matched in parallel")
	fs.BoolVar(&f.verbose, "verbose", false, "Show detailed logs")
}

// check reports a usage error for missing or invalid flags.
func (f *inputFlags) check(fs *flag.FlagSet) subcommands.ExitStatus {
	if f.input == "" {
		ui.Error("-input flag is required")
		fs.Usage()
		return subcommands.ExitUsageError
	}
	probe := config.Config{Encoding: f.encoding, Concurrency: f.concurrency}
	if err := probe.Validate(); err != nil {
		ui.Error(err.Error())
		return subcommands.ExitUsageError
	}
	return subcommands.ExitSuccess
}

func (f *inputFlags) newLogger(cfg config.Config) zerolog.Logger {
	if f.verbose {
		return logger.New("debug")
	}
	return logger.New(cfg.LogLevel)
}

// loaded is everything a subcommand needs after ingestion.
type loaded struct {
	rows   []domain.Row
	engine *rules.Engine
}

// load scans the input directory, parses every export in path order, builds
// the ledger and validates its rows. Row errors are all printed before failing.
func load(ctx context.Context, f *inputFlags) (*loaded, error) {
	log := logger.FromContext(ctx)

	ui.Step(1, 3, "Scanning directory")
	files, err := scanner.New(f.input).Scan()
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %w", f.input, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CSV exports found in %s", f.input)
	}
	ui.Success(fmt.Sprintf("Found %d export files", len(files)))

	reg, err := registry.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create parser registry: %w", err)
	}

	ui.Step(2, 3, "Parsing exports")
	statements := make([]*parser.Statement, 0, len(files))
	for i, file := range files {
		stmt, err := parseFile(ctx, reg, file, f.encoding)
		if err != nil {
			return nil, fmt.Errorf("parse failed for file %d of %d (%s): %w", i+1, len(files), file.Metadata.RelPath(), err)
		}
		log.Debug().Str("file", stmt.Source()).Int("rows", stmt.Len()).Msg("parsed")
		statements = append(statements, stmt)
	}

	ledger, err := transform.BuildLedger(statements)
	if err != nil {
		return nil, fmt.Errorf("failed to build ledger: %w", err)
	}
	ui.Success(fmt.Sprintf("Read %d rows", ledger.Len()))

	engine, err := rules.Load(f.rules)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	ui.Step(3, 3, "Validating rows")
	rows := ledger.GetRows()
	result := validate.ValidateRows(rows, engine.TradingCode())
	for _, w := range result.Warnings {
		log.Warn().Str("row", w.ID).Str("field", w.Field).Msg(w.Message)
	}
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			ui.Error(e.Error())
		}
		return nil, fmt.Errorf("validation failed with %d errors", len(result.Errors))
	}
	if len(result.Warnings) > 0 {
		ui.Warning(fmt.Sprintf("Validation produced %d warnings", len(result.Warnings)))
	} else {
		ui.Success("Validation passed")
	}

	overlaps, err := dedup.FindOverlaps(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to check for overlapping exports: %w", err)
	}
	for _, o := range overlaps {
		ui.Warning(fmt.Sprintf("%s repeats %s from %s; exports may overlap", o.Row.Location(), o.FirstRowID, o.FirstSource))
	}

	return &loaded{rows: rows, engine: engine}, nil
}

func parseFile(ctx context.Context, reg *registry.Registry, file scanner.ScanResult, encoding string) (*parser.Statement, error) {
	p, err := reg.FindParser(file.Path)
	if err != nil {
		return nil, err
	}

	file.Metadata.SetEncoding(encoding)

	fh, err := os.Open(file.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", file.Path, err)
	}
	defer fh.Close()

	stmt, err := p.Parse(ctx, fh, file.Metadata)
	if err != nil {
		return nil, err
	}
	if stmt == nil {
		return nil, fmt.Errorf("parser %s returned nil statement without error", p.Name())
	}
	return stmt, nil
}
