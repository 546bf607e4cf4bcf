package transform

import (
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    string
		expectError bool
	}{
		{
			name:     "simple name with space",
			input:    "Tiliote 2021",
			expected: "tiliote-2021",
		},
		{
			name:     "finnish letters",
			input:    "Säästötili Ålesund",
			expected: "saastotili-alesund",
		},
		{
			name:     "decomposed umlaut",
			input:    "Sa\u0308a\u0308sto\u0308",
			expected: "saasto",
		},
		{
			name:     "special characters",
			input:    "OP & Co. (2021)",
			expected: "op-co-2021",
		},
		{
			name:     "multiple separators",
			input:    "op//2021__tammi  kuu",
			expected: "op-2021-tammi-kuu",
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "only special characters",
			input:       "!@#$%^&*()",
			expectError: true,
		},
		{
			name:        "only hyphens",
			input:       "---",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Slugify(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("Slugify(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("Slugify(%q) returned unexpected error: %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("Slugify(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSlugifySource(t *testing.T) {
	tests := []struct {
		input       string
		expected    string
		expectError bool
	}{
		{"2021.csv", "2021", false},
		{"op/2021/Tammikuu.CSV", "op-2021-tammikuu", false},
		{"tili.2021.csv", "tili-2021", false},
		{"<stdin>", "stdin", false},
		{".csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := SlugifySource(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("SlugifySource(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("SlugifySource(%q) returned unexpected error: %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("SlugifySource(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestGenerateRowID(t *testing.T) {
	tests := []struct {
		slug     string
		line     int
		expected string
	}{
		{"2021", 2, "row-2021-2"},
		{"op-2021-tammikuu", 140, "row-op-2021-tammikuu-140"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := GenerateRowID(tt.slug, tt.line); got != tt.expected {
				t.Errorf("GenerateRowID(%q, %d) = %q, expected %q", tt.slug, tt.line, got, tt.expected)
			}
		})
	}
}

func TestGenerateRowID_Stable(t *testing.T) {
	slug, err := SlugifySource("op/Säästö 2021.csv")
	if err != nil {
		t.Fatalf("SlugifySource() error = %v", err)
	}
	first := GenerateRowID(slug, 7)
	for i := 0; i < 50; i++ {
		slug, _ := SlugifySource("op/Säästö 2021.csv")
		if got := GenerateRowID(slug, 7); got != first {
			t.Fatalf("GenerateRowID() = %q on run %d, want %q", got, i, first)
		}
	}
	if first != "row-op-saasto-2021-7" {
		t.Errorf("GenerateRowID() = %q, want row-op-saasto-2021-7", first)
	}
}
