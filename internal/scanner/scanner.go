package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/taxparse/internal/parser"
)

// Scanner walks directory tree and finds export files
type Scanner struct {
	rootDir string
	now     func() time.Time
}

// New creates a new scanner for the given root directory
func New(rootDir string) *Scanner {
	return &Scanner{rootDir: rootDir, now: time.Now}
}

// ScanResult represents a found file with metadata
type ScanResult struct {
	Path     string
	Metadata *parser.Metadata
}

// Scan walks the directory tree and returns every .csv file, sorted by path
// relative to the root. That order is the ledger order of the run.
func (s *Scanner) Scan() ([]ScanResult, error) {
	rootDir, err := s.expandHome(s.rootDir)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan failed: %q is not a directory", rootDir)
	}

	var results []ScanResult
	detectedAt := s.now()

	err = filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !s.isExportFile(path) {
			return nil
		}

		meta, err := parser.NewMetadata(path, detectedAt)
		if err != nil {
			return fmt.Errorf("invalid metadata for %s: %w", path, err)
		}
		meta.SetRelPath(s.relPath(path, rootDir))

		results = append(results, ScanResult{Path: path, Metadata: meta})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Metadata.RelPath() < results[j].Metadata.RelPath()
	})
	return results, nil
}

// isExportFile checks if file has the .csv extension
func (s *Scanner) isExportFile(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".csv"
}

// relPath returns the slash separated path below rootDir
func (s *Scanner) relPath(filePath, rootDir string) string {
	rel, err := filepath.Rel(rootDir, filePath)
	if err != nil {
		rel = filePath
	}
	return filepath.ToSlash(rel)
}

// expandHome expands ~ to home directory
func (s *Scanner) expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to expand ~: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
