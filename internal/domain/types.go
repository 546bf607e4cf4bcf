package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/taxparse/internal/money"
)

// Category is the classification bucket of a ledger row.
// Use ValidateCategory to ensure validity before use.
type Category string

const (
	CategoryCashInfusion  Category = "cash_infusion"
	CategoryDividend      Category = "dividend"
	CategoryServiceCharge Category = "service_charge"
	CategoryStockTrading  Category = "stock_trading"
	CategoryOtherExpense  Category = "other_expense"
	CategoryUncategorized Category = "uncategorized"
)

// Side is the direction of a trade event.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// TradingCode is the bank category code ("Laji") carried by securities trades.
const TradingCode = 700

// CashInfusionCode is the bank category code of incoming account transfers.
const CashInfusionCode = 710

var (
	// ErrInvalidDate is returned when a posting date matches none of the known layouts.
	ErrInvalidDate = errors.New("invalid posting date")

	// ErrAlreadyExists is returned when a row ID is added to a ledger twice.
	ErrAlreadyExists = errors.New("already exists")

	validCategories = map[Category]struct{}{
		CategoryCashInfusion: {}, CategoryDividend: {}, CategoryServiceCharge: {},
		CategoryStockTrading: {}, CategoryOtherExpense: {}, CategoryUncategorized: {},
	}

	// Layouts seen in bank exports, tried in order.
	dateLayouts = []string{
		"2006-01-02",
		"02.01.2006",
		"2.1.2006",
		"2006/01/02",
	}
)

// Row is one transaction line of a bank export. The core reads it and never mutates it.
type Row struct {
	ID           string `json:"id"`
	Source       string `json:"source,omitempty"`
	Line         int    `json:"line,omitempty"`
	PostingDate  string `json:"postingDate"`
	AmountText   string `json:"amount"` // decimal comma, signed
	CategoryCode int    `json:"categoryCode"`
	Description  string `json:"description"`
	Message      string `json:"message"`
}

// Location describes where the row came from, for error messages.
func (r Row) Location() string {
	switch {
	case r.Source != "" && r.Line > 0:
		return fmt.Sprintf("%s:%d", r.Source, r.Line)
	case r.Source != "":
		return r.Source
	case r.ID != "":
		return r.ID
	default:
		return "<unknown>"
	}
}

// TradeEvent is a single buy or sell of a security, derived from a trading row.
type TradeEvent struct {
	Date        string `json:"date"`
	Symbol      string `json:"symbol"`
	Side        Side   `json:"side"`
	Shares      int64  `json:"shares"`
	AmountCents int64  `json:"amountCents"` // always non-negative
}

// NewTradeEvent creates a validated trade event.
func NewTradeEvent(date, symbol string, side Side, shares, amountCents int64) (*TradeEvent, error) {
	if symbol == "" {
		return nil, fmt.Errorf("trade symbol cannot be empty")
	}
	if side != SideBuy && side != SideSell {
		return nil, fmt.Errorf("invalid trade side: %q", side)
	}
	if shares <= 0 {
		return nil, fmt.Errorf("share count must be positive, got %d", shares)
	}
	if amountCents < 0 {
		return nil, fmt.Errorf("trade amount must be non-negative, got %d cents", amountCents)
	}
	return &TradeEvent{
		Date:        date,
		Symbol:      symbol,
		Side:        side,
		Shares:      shares,
		AmountCents: amountCents,
	}, nil
}

// Lot is the unconsumed part of a buy. Shares is always positive.
type Lot struct {
	Date      string `json:"date"`
	Shares    int64  `json:"shares"`
	CostCents int64  `json:"-"`
}

// MarshalJSON renders the cost as a decimal string.
func (l Lot) MarshalJSON() ([]byte, error) {
	type Alias Lot
	return json.Marshal(&struct {
		Alias
		Cost string `json:"cost"`
	}{
		Alias: Alias(l),
		Cost:  money.FormatAmount(l.CostCents),
	})
}

// Shortfall is the part of a sell that found no open lot to match against.
type Shortfall struct {
	Date          string `json:"date"`
	Shares        int64  `json:"shares"`
	ProceedsCents int64  `json:"-"`
}

// MarshalJSON renders the unmatched proceeds as a decimal string.
func (s Shortfall) MarshalJSON() ([]byte, error) {
	type Alias Shortfall
	return json.Marshal(&struct {
		Alias
		Proceeds string `json:"proceeds"`
	}{
		Alias:    Alias(s),
		Proceeds: money.FormatAmount(s.ProceedsCents),
	})
}

// Position is the FIFO outcome for one security.
type Position struct {
	Symbol        string      `json:"symbol"`
	RealizedCents int64       `json:"-"`
	OpenLots      []Lot       `json:"openLots"`
	Shortfalls    []Shortfall `json:"shortfalls,omitempty"`
}

// BookValueCents sums the cost of the still-held lots.
func (p Position) BookValueCents() int64 {
	var total int64
	for _, l := range p.OpenLots {
		total += l.CostCents
	}
	return total
}

// OpenShares sums the shares of the still-held lots.
func (p Position) OpenShares() int64 {
	var total int64
	for _, l := range p.OpenLots {
		total += l.Shares
	}
	return total
}

// MarshalJSON renders money fields as decimal strings.
func (p Position) MarshalJSON() ([]byte, error) {
	type Alias Position
	openLots := p.OpenLots
	if openLots == nil {
		openLots = []Lot{}
	}
	return json.Marshal(&struct {
		Alias
		OpenLots  []Lot  `json:"openLots"`
		Realized  string `json:"realized"`
		BookValue string `json:"bookValue"`
	}{
		Alias:     Alias(p),
		OpenLots:  openLots,
		Realized:  money.FormatAmount(p.RealizedCents),
		BookValue: money.FormatAmount(p.BookValueCents()),
	})
}

// Checksum compares classified row count against the total row count.
type Checksum struct {
	Classified int `json:"classified"`
	Total      int `json:"total"`
}

// Complete reports whether every row landed in a checksum category.
func (c Checksum) Complete() bool { return c.Classified == c.Total }

// Report is the tax summary of one run. All amounts are integer cents.
type Report struct {
	RunID       string    `json:"runId"`
	GeneratedAt time.Time `json:"generatedAt"`

	BusinessIncomeCents  int64 `json:"-"`
	BusinessExpenseCents int64 `json:"-"`
	CashCents            int64 `json:"-"`
	FinancialAssetCents  int64 `json:"-"`

	DividendCents      int64 `json:"-"`
	CapitalGainsCents  int64 `json:"-"`
	ServiceChargeCents int64 `json:"-"`
	CashInfusionCents  int64 `json:"-"`

	Positions []Position `json:"positions"`
	Checksum  Checksum   `json:"checksum"`
	Warnings  []string   `json:"warnings"`
}

// MarshalJSON renders money fields as decimal strings with two fractional digits.
func (r *Report) MarshalJSON() ([]byte, error) {
	type Alias Report
	positions := r.Positions
	if positions == nil {
		positions = []Position{}
	}
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return json.Marshal(&struct {
		*Alias
		BusinessIncome  string     `json:"businessIncome"`
		BusinessExpense string     `json:"businessExpense"`
		Cash            string     `json:"cash"`
		FinancialAsset  string     `json:"financialAsset"`
		Dividends       string     `json:"dividends"`
		CapitalGains    string     `json:"capitalGains"`
		ServiceCharges  string     `json:"serviceCharges"`
		CashInfusions   string     `json:"cashInfusions"`
		Positions       []Position `json:"positions"`
		Warnings        []string   `json:"warnings"`
	}{
		Alias:           (*Alias)(r),
		BusinessIncome:  money.FormatAmount(r.BusinessIncomeCents),
		BusinessExpense: money.FormatAmount(r.BusinessExpenseCents),
		Cash:            money.FormatAmount(r.CashCents),
		FinancialAsset:  money.FormatAmount(r.FinancialAssetCents),
		Dividends:       money.FormatAmount(r.DividendCents),
		CapitalGains:    money.FormatAmount(r.CapitalGainsCents),
		ServiceCharges:  money.FormatAmount(r.ServiceChargeCents),
		CashInfusions:   money.FormatAmount(r.CashInfusionCents),
		Positions:       positions,
		Warnings:        warnings,
	})
}

// Position returns the position for symbol, if any.
func (r *Report) Position(symbol string) (Position, bool) {
	for _, p := range r.Positions {
		if p.Symbol == symbol {
			return p, true
		}
	}
	return Position{}, false
}

// ParseDate parses a posting date in any of the layouts seen in bank exports.
func ParseDate(s string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ValidateCategory checks if category is valid
func ValidateCategory(c Category) bool {
	_, ok := validCategories[c]
	return ok
}

// ValidateSide checks if side is valid
func ValidateSide(s Side) bool {
	return s == SideBuy || s == SideSell
}
