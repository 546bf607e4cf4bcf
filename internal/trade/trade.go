// Package trade recognizes the securities-trade notation used in bank export messages.
//
// A trade message looks like "O:PFE US /100": a side code (O buys, M sells),
// a colon, the symbol, an optional secondary token such as a country code,
// and the share count after a slash.
package trade

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rumor-ml/commons.systems/taxparse/internal/domain"
)

// Match is the structured content of a trade message.
type Match struct {
	Side   domain.Side
	Symbol string
	Shares int64
}

// messagePattern is anchored at the start only; trailing text after the count is ignored.
var messagePattern = regexp.MustCompile(`^([OM]):([\w.]+)(?:\s+[^\s/]+)?\s*/(\d+)`)

var sideCodes = map[string]domain.Side{
	"O": domain.SideBuy,
	"M": domain.SideSell,
}

// MatchTrade parses message as a trade. The boolean is false for any message
// that is not in trade notation, including share counts of zero.
func MatchTrade(message string) (Match, bool) {
	groups := messagePattern.FindStringSubmatch(strings.TrimSpace(message))
	if groups == nil {
		return Match{}, false
	}

	shares, err := strconv.ParseInt(groups[3], 10, 64)
	if err != nil || shares <= 0 {
		return Match{}, false
	}

	return Match{
		Side:   sideCodes[groups[1]],
		Symbol: groups[2],
		Shares: shares,
	}, true
}

// IsTrade reports whether message is in trade notation.
func IsTrade(message string) bool {
	_, ok := MatchTrade(message)
	return ok
}
