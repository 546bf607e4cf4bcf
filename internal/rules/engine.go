// Package rules provides the YAML label rules that map bank descriptions to ledger categories.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rumor-ml/commons.systems/taxparse/internal/domain"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed labels.yaml
var embeddedRules []byte

// ErrInvalidRule wraps every rule validation failure.
var ErrInvalidRule = errors.New("invalid rule")

// MatchType defines how patterns are matched against transaction descriptions
type MatchType string

const (
	// MatchTypeExact requires the pattern to match the entire description exactly
	MatchTypeExact MatchType = "exact"
	// MatchTypeContains requires the pattern to be a substring of the description
	MatchTypeContains MatchType = "contains"
)

// Label rules may only assign these categories. Stock trading, other expense
// and uncategorized are decided structurally by the classifier.
var labelCategories = map[domain.Category]struct{}{
	domain.CategoryCashInfusion:  {},
	domain.CategoryDividend:      {},
	domain.CategoryServiceCharge: {},
}

// Rule maps a description label, optionally restricted to one bank category
// code, to a ledger category.
//
// Rules should be created via YAML loading (NewEngine, LoadEmbedded,
// LoadFromFile) or NewRule. Both validate:
//   - Priority in range [0, 999]
//   - Pattern must not be empty after trimming
//   - MatchType must be "exact" or "contains"
//   - Category must be cash_infusion, dividend or service_charge
//   - Code, when set, must be positive
type Rule struct {
	Name      string    `yaml:"name"`
	Pattern   string    `yaml:"pattern"`
	MatchType MatchType `yaml:"match_type"`
	Priority  int       `yaml:"priority"`
	Category  string    `yaml:"category"`
	Code      *int      `yaml:"code,omitempty"`
}

// NewRule creates a validated rule. A nil code matches any category code.
func NewRule(name, pattern string, matchType MatchType, priority int, category string, code *int) (*Rule, error) {
	r := Rule{
		Name:      name,
		Pattern:   pattern,
		MatchType: matchType,
		Priority:  priority,
		Category:  category,
	}
	if code != nil {
		c := *code
		r.Code = &c
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r Rule) validate() error {
	if _, ok := labelCategories[domain.Category(r.Category)]; !ok {
		return fmt.Errorf("%w: category %q cannot be assigned by a label rule", ErrInvalidRule, r.Category)
	}
	if r.Priority < 0 || r.Priority > 999 {
		return fmt.Errorf("%w: priority must be in [0,999], got %d", ErrInvalidRule, r.Priority)
	}
	if r.MatchType != MatchTypeExact && r.MatchType != MatchTypeContains {
		return fmt.Errorf("%w: invalid match_type %q (must be 'exact' or 'contains')", ErrInvalidRule, r.MatchType)
	}
	if strings.TrimSpace(r.Pattern) == "" {
		return fmt.Errorf("%w: pattern cannot be empty", ErrInvalidRule)
	}
	if r.Code != nil && *r.Code <= 0 {
		return fmt.Errorf("%w: code must be positive, got %d", ErrInvalidRule, *r.Code)
	}
	return nil
}

// RuleSet represents the top-level YAML structure
type RuleSet struct {
	TradingCode int    `yaml:"trading_code"`
	Rules       []Rule `yaml:"rules"`
}

// Engine matches row descriptions against label rules.
type Engine struct {
	tradingCode int
	rules       []Rule // Sorted by priority (highest first)
	patterns    []string
}

// MatchResult contains the result of applying a rule
type MatchResult struct {
	Category domain.Category
	RuleName string // For debugging
}

// NewEngine creates a rules engine from YAML data
func NewEngine(rulesData []byte) (*Engine, error) {
	var ruleSet RuleSet
	if err := yaml.Unmarshal(rulesData, &ruleSet); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules (check syntax, indentation, and field names): %w", err)
	}

	if ruleSet.TradingCode == 0 {
		ruleSet.TradingCode = domain.TradingCode
	}
	if ruleSet.TradingCode < 0 {
		return nil, fmt.Errorf("%w: trading_code must be positive, got %d", ErrInvalidRule, ruleSet.TradingCode)
	}

	for i, rule := range ruleSet.Rules {
		if err := rule.validate(); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rule.Name, err)
		}
	}

	// Stable sort keeps YAML order for equal priorities.
	sortedRules := make([]Rule, len(ruleSet.Rules))
	copy(sortedRules, ruleSet.Rules)
	sort.SliceStable(sortedRules, func(i, j int) bool {
		return sortedRules[i].Priority > sortedRules[j].Priority
	})

	patterns := make([]string, len(sortedRules))
	for i, rule := range sortedRules {
		patterns[i] = Normalize(rule.Pattern)
	}

	return &Engine{
		tradingCode: ruleSet.TradingCode,
		rules:       sortedRules,
		patterns:    patterns,
	}, nil
}

// LoadEmbedded loads the embedded labels.yaml file
func LoadEmbedded() (*Engine, error) {
	engine, err := NewEngine(embeddedRules)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules (possible binary corruption): %w", err)
	}
	return engine, nil
}

// MustLoadEmbedded is LoadEmbedded for package-level defaults.
func MustLoadEmbedded() *Engine {
	engine, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	return engine
}

// LoadFromFile loads rules from a filesystem path
func LoadFromFile(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	engine, err := NewEngine(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %q: %w", path, err)
	}
	return engine, nil
}

// Load returns the rules at path, or the embedded rules when path is empty.
func Load(path string) (*Engine, error) {
	if path == "" {
		return LoadEmbedded()
	}
	return LoadFromFile(path)
}

// Normalize prepares a description for comparison: NFC, trimmed, lower-case.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}

// TradingCode returns the bank category code of securities trades.
func (e *Engine) TradingCode() int { return e.tradingCode }

// Match applies rules to a row description and category code and returns the
// first match in priority order. Returns (nil, false) if no rule matches.
func (e *Engine) Match(description string, code int) (*MatchResult, bool) {
	normalizedDesc := Normalize(description)

	for i, rule := range e.rules {
		if rule.Code != nil && *rule.Code != code {
			continue
		}

		matched := false
		switch rule.MatchType {
		case MatchTypeExact:
			matched = normalizedDesc == e.patterns[i]
		case MatchTypeContains:
			matched = strings.Contains(normalizedDesc, e.patterns[i])
		}

		if matched {
			return &MatchResult{
				Category: domain.Category(rule.Category),
				RuleName: rule.Name,
			}, true
		}
	}

	return nil, false
}

// GetRules returns a copy of the rules for inspection/debugging, in priority order.
func (e *Engine) GetRules() []Rule {
	result := make([]Rule, len(e.rules))
	for i, r := range e.rules {
		result[i] = r
		if r.Code != nil {
			c := *r.Code
			result[i].Code = &c
		}
	}
	return result
}
