package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rumor-ml/commons.systems/taxparse/internal/domain"
)

// WriteOptions configures how the report is written
type WriteOptions struct {
	FilePath  string // Output path (empty = stdout)
	Overwrite bool   // Replace an existing file instead of failing
}

// WriteReport serializes Report to JSON with 2-space indentation
func WriteReport(report *domain.Report, w io.Writer) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report as JSON: %w", err)
	}

	return nil
}

// WriteReportToFile writes Report to file or stdout based on options.
// The file is written next to its destination and renamed into place, so a
// failed run never leaves a truncated report behind.
func WriteReportToFile(report *domain.Report, opts WriteOptions) (err error) {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	if opts.FilePath == "" {
		return WriteReport(report, os.Stdout)
	}

	if !opts.Overwrite {
		if _, statErr := os.Stat(opts.FilePath); statErr == nil {
			return fmt.Errorf("output file %s already exists", opts.FilePath)
		}
	}

	f, err := os.CreateTemp(filepath.Dir(opts.FilePath), ".taxparse-*.json")
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", opts.FilePath, err)
	}
	tmpPath := f.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if err = WriteReport(report, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report to %s: %w", opts.FilePath, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close output file %s: %w", opts.FilePath, err)
	}
	if err = os.Rename(tmpPath, opts.FilePath); err != nil {
		return fmt.Errorf("failed to move report into %s: %w", opts.FilePath, err)
	}

	return nil
}
