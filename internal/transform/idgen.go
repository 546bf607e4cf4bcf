package transform

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a name to a lowercase ASCII slug.
// Examples: "Tiliote 2021" → "tiliote-2021", "Säästötili" → "saastotili"
func Slugify(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("name cannot be empty")
	}

	// Strip diacritics: ä → a, ö → o
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, name)
	if err != nil {
		return "", fmt.Errorf("failed to normalize name %q: %w", name, err)
	}

	slug := strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(normalized), "-"), "-")
	if slug == "" {
		return "", fmt.Errorf("name %q contains no alphanumeric characters", name)
	}

	return slug, nil
}

// SlugifySource slugs a slash separated source path without its extension.
// Example: "op/2021/Tammikuu.csv" → "op-2021-tammikuu"
func SlugifySource(source string) (string, error) {
	base := strings.TrimSuffix(source, path.Ext(source))
	slug, err := Slugify(base)
	if err != nil {
		return "", fmt.Errorf("invalid source %q: %w", source, err)
	}
	return slug, nil
}

// GenerateRowID creates a deterministic row ID.
// Format: "row-{sourceSlug}-{line}"
// Example: GenerateRowID("op-2021", 14) → "row-op-2021-14"
func GenerateRowID(sourceSlug string, line int) string {
	return fmt.Sprintf("row-%s-%d", sourceSlug, line)
}
