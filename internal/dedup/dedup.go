// Package dedup finds rows that appear in more than one export file, which
// happens when exported date ranges overlap. Rows repeated inside a single
// export are genuine separate transactions and are never reported.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rumor-ml/commons.systems/taxparse/internal/domain"
	"github.com/rumor-ml/commons.systems/taxparse/internal/money"
)

// State tracks fingerprints seen so far in one run.
type State struct {
	Fingerprints map[string]*FingerprintRecord
}

// FingerprintRecord tracks a fingerprint across the export files it appears in.
type FingerprintRecord struct {
	FirstRowID  string
	FirstSource string
	Count       int
	perSource   map[string]int
	sources     []string
}

// Overlap is a row whose fingerprint was already seen in an earlier file.
type Overlap struct {
	Row         domain.Row
	FirstRowID  string
	FirstSource string
}

// NewState creates an empty deduplication state.
func NewState() *State {
	return &State{Fingerprints: make(map[string]*FingerprintRecord)}
}

// GenerateFingerprint creates a SHA256 hash of date, amount, code, description and message.
// Format: SHA256("{date}|{cents}|{code}|{normalizedDescription}|{normalizedMessage}")
// Dates in any known layout are normalized to YYYY-MM-DD first.
func GenerateFingerprint(date string, amountCents int64, code int, description, message string) string {
	if d, err := domain.ParseDate(date); err == nil {
		date = d.Format("2006-01-02")
	}
	input := fmt.Sprintf("%s|%d|%d|%s|%s",
		strings.TrimSpace(date), amountCents, code,
		strings.ToLower(strings.TrimSpace(description)),
		strings.ToLower(strings.TrimSpace(message)))

	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// IsDuplicate checks if a fingerprint exists in the state.
func (s *State) IsDuplicate(fingerprint string) bool {
	_, exists := s.Fingerprints[fingerprint]
	return exists
}

// RecordRow records a row under its fingerprint. It reports the first
// occurrence when the row repeats one from an earlier source: the k-th copy
// in a source overlaps when some earlier source holds at least k copies.
func (s *State) RecordRow(fingerprint string, row domain.Row) (*FingerprintRecord, bool, error) {
	if fingerprint == "" {
		return nil, false, fmt.Errorf("fingerprint cannot be empty")
	}
	if row.ID == "" {
		return nil, false, fmt.Errorf("row ID cannot be empty")
	}

	record, exists := s.Fingerprints[fingerprint]
	if !exists {
		record = &FingerprintRecord{
			FirstRowID:  row.ID,
			FirstSource: row.Source,
			perSource:   make(map[string]int),
		}
		s.Fingerprints[fingerprint] = record
	}

	record.Count++
	if record.perSource[row.Source] == 0 {
		record.sources = append(record.sources, row.Source)
	}
	record.perSource[row.Source]++
	k := record.perSource[row.Source]

	for _, src := range record.sources {
		if src == row.Source {
			break
		}
		if record.perSource[src] >= k {
			return record, true, nil
		}
	}
	return record, false, nil
}

// TotalFingerprints returns the number of distinct fingerprints.
func (s *State) TotalFingerprints() int {
	return len(s.Fingerprints)
}

// FindOverlaps fingerprints every row in ledger order and returns the rows
// that repeat a row of an earlier export file.
func FindOverlaps(rows []domain.Row) ([]Overlap, error) {
	state := NewState()
	var overlaps []Overlap

	for _, row := range rows {
		cents, err := money.ParseAmount(row.AmountText)
		if err != nil {
			return nil, fmt.Errorf("row %s: %w", row.Location(), err)
		}
		fp := GenerateFingerprint(row.PostingDate, cents, row.CategoryCode, row.Description, row.Message)

		record, overlap, err := state.RecordRow(fp, row)
		if err != nil {
			return nil, fmt.Errorf("row %s: %w", row.Location(), err)
		}
		if overlap {
			overlaps = append(overlaps, Overlap{
				Row:         row,
				FirstRowID:  record.FirstRowID,
				FirstSource: record.FirstSource,
			})
		}
	}

	return overlaps, nil
}
