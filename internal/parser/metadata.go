package parser

import (
	"fmt"
	"time"
)

// Metadata contains context about the file being parsed.
//
// Create instances using NewMetadata(filePath, detectedAt). The constructor validates
// the required fields. The relative path and encoding are optional and set afterwards.
type Metadata struct {
	filePath   string
	relPath    string // path below the scan root, slash separated
	encoding   string // "latin1" or "utf-8"; empty means the parser default
	detectedAt time.Time
}

// NewMetadata creates a new Metadata instance with validated required fields.
// Returns an error if filePath is empty or detectedAt is zero.
func NewMetadata(filePath string, detectedAt time.Time) (*Metadata, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	if detectedAt.IsZero() {
		return nil, fmt.Errorf("detected time cannot be zero")
	}
	return &Metadata{
		filePath:   filePath,
		detectedAt: detectedAt,
	}, nil
}

// FilePath returns the file path as scanned
func (m *Metadata) FilePath() string {
	return m.filePath
}

// RelPath returns the path below the scan root, or the file path when unset.
func (m *Metadata) RelPath() string {
	if m.relPath == "" {
		return m.filePath
	}
	return m.relPath
}

// Encoding returns the configured text encoding, empty for the parser default
func (m *Metadata) Encoding() string {
	return m.encoding
}

// DetectedAt returns the timestamp when the file was detected
func (m *Metadata) DetectedAt() time.Time {
	return m.detectedAt
}

// SetRelPath sets the path below the scan root
func (m *Metadata) SetRelPath(relPath string) {
	m.relPath = relPath
}

// SetEncoding sets the text encoding
func (m *Metadata) SetEncoding(encoding string) {
	m.encoding = encoding
}
