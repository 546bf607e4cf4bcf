// Package csv provides parsing of OP-style bank CSV exports
package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rumor-ml/commons.systems/taxparse/internal/domain"
	"github.com/rumor-ml/commons.systems/taxparse/internal/parser"
)

// Column headers of an OP account export.
const (
	ColumnPostingDate = "Kirjauspäivä"
	ColumnAmount      = "Määrä EUROA"
	ColumnCode        = "Laji"
	ColumnDescription = "Selitys"
	ColumnMessage     = "Viesti"
)

// Encodings understood by Parse. An empty encoding means auto.
const (
	EncodingAuto   = "auto"
	EncodingLatin1 = "latin1"
	EncodingUTF8   = "utf-8"
)

const delimiter = ';'

var requiredColumns = []string{ColumnPostingDate, ColumnAmount, ColumnCode, ColumnDescription, ColumnMessage}

// Parser implements OP CSV parsing with a stateless design.
// The struct has no fields because CSV parsing requires no configuration state.
// Each method operates solely on the input data provided, making the parser safe
// for concurrent use without locking.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared CSV parser instance.
// Safe for concurrent use due to stateless design.
func NewParser() *Parser {
	return parserInstance
}

// getFileInfo returns a formatted file path string for error messages
func getFileInfo(meta *parser.Metadata) string {
	if meta != nil && meta.FilePath() != "" {
		return fmt.Sprintf(" from %s", meta.FilePath())
	}
	return ""
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "csv-op"
}

// CanParse checks the extension and that the first line is a ';' separated
// header naming the amount and category code columns.
func (p *Parser) CanParse(path string, header []byte) bool {
	if strings.ToLower(filepath.Ext(path)) != ".csv" {
		return false
	}

	line, _, _ := bytes.Cut(header, []byte("\n"))
	text, err := decodeAll(line, EncodingAuto)
	if err != nil {
		return false
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	record, err := r.Read()
	if err != nil {
		return false
	}

	cols := columnIndex(record)
	_, hasAmount := cols[normalizeHeader(ColumnAmount)]
	_, hasCode := cols[normalizeHeader(ColumnCode)]
	return hasAmount && hasCode
}

// Parse reads every row of an OP export. Columns are found by header name,
// so extra or reordered columns are accepted.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.Statement, error) {
	// Check if context was cancelled before parsing
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	enc := EncodingAuto
	source := "<stdin>"
	if meta != nil {
		if meta.Encoding() != "" {
			enc = meta.Encoding()
		}
		source = meta.RelPath()
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV content%s: %w", getFileInfo(meta), err)
	}
	text, err := decodeAll(data, enc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode CSV content%s: %w", getFileInfo(meta), err)
	}

	csvReader := csv.NewReader(strings.NewReader(text))
	csvReader.Comma = delimiter
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV file is empty%s", getFileInfo(meta))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header%s: %w", getFileInfo(meta), err)
	}

	cols := columnIndex(header)
	idx := make(map[string]int, len(requiredColumns))
	for _, name := range requiredColumns {
		i, ok := cols[normalizeHeader(name)]
		if !ok {
			return nil, fmt.Errorf("%w %q%s", parser.ErrMissingColumn, name, getFileInfo(meta))
		}
		idx[name] = i
	}

	var rows []domain.Row
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV content%s: %w", getFileInfo(meta), err)
		}
		line, _ := csvReader.FieldPos(0)

		// Skip blank rows
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		row, err := parseRow(record, idx)
		if err != nil {
			return nil, fmt.Errorf("failed to parse row at line %d%s: %w", line, getFileInfo(meta), err)
		}
		row.Source = source
		row.Line = line
		rows = append(rows, row)
	}

	stmt, err := parser.NewStatement(source, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to create statement%s: %w", getFileInfo(meta), err)
	}
	return stmt, nil
}

func parseRow(record []string, idx map[string]int) (domain.Row, error) {
	field := func(name string) string {
		i := idx[name]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	code := 0
	if raw := field(ColumnCode); raw != "" {
		c, err := strconv.Atoi(raw)
		if err != nil {
			return domain.Row{}, fmt.Errorf("invalid category code %q: %w", raw, err)
		}
		code = c
	}

	return domain.Row{
		PostingDate:  field(ColumnPostingDate),
		AmountText:   field(ColumnAmount),
		CategoryCode: code,
		Description:  field(ColumnDescription),
		Message:      field(ColumnMessage),
	}, nil
}

// columnIndex maps normalized header names to their positions. The first
// occurrence of a duplicated name wins.
func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	return cols
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(strings.TrimPrefix(h, "\ufeff"))))
}

// decodeAll converts export bytes to UTF-8 text. Auto treats valid UTF-8 as
// UTF-8 and anything else as latin-1.
func decodeAll(data []byte, enc string) (string, error) {
	var dec *encoding.Decoder
	switch strings.ToLower(enc) {
	case EncodingAuto, "":
		if utf8.Valid(data) {
			dec = unicode.UTF8BOM.NewDecoder()
		} else {
			dec = charmap.ISO8859_1.NewDecoder()
		}
	case EncodingUTF8:
		dec = unicode.UTF8BOM.NewDecoder()
	case EncodingLatin1:
		dec = charmap.ISO8859_1.NewDecoder()
	default:
		return "", fmt.Errorf("unsupported encoding %q", enc)
	}

	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
