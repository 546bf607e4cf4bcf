// Package fifo matches sells against buys of one security in first-in,
// first-out order and reports realized profit and the lots still held.
package fifo

import (
	"math/bits"

	"github.com/rumor-ml/commons.systems/taxparse/internal/domain"
)

// Result is the outcome of matching one symbol's events.
type Result struct {
	ProfitCents int64
	OpenLots    []domain.Lot
	Shortfalls  []domain.Shortfall
}

// BookValueCents sums the cost of the open lots.
func (r Result) BookValueCents() int64 {
	var total int64
	for _, l := range r.OpenLots {
		total += l.CostCents
	}
	return total
}

// Position attaches the result to a symbol.
func (r Result) Position(symbol string) domain.Position {
	return domain.Position{
		Symbol:        symbol,
		RealizedCents: r.ProfitCents,
		OpenLots:      r.OpenLots,
		Shortfalls:    r.Shortfalls,
	}
}

// Match runs the events through a FIFO queue in the order given. The events
// must belong to one symbol and be date ordered; Match never reorders them.
//
// A sell that runs out of lots records the unmatched shares and proceeds as a
// Shortfall. Those proceeds are not part of the profit.
func Match(events []domain.TradeEvent) Result {
	var (
		queue      []domain.Lot
		profit     int64
		shortfalls []domain.Shortfall
	)

	for _, ev := range events {
		switch ev.Side {
		case domain.SideBuy:
			queue = append(queue, domain.Lot{
				Date:      ev.Date,
				Shares:    ev.Shares,
				CostCents: ev.AmountCents,
			})

		case domain.SideSell:
			toSell := ev.Shares
			proceeds := ev.AmountCents

			for toSell > 0 && len(queue) > 0 {
				lot := queue[0]
				if lot.Shares <= toSell {
					slice := mulDiv(proceeds, lot.Shares, toSell)
					profit += slice - lot.CostCents
					proceeds -= slice
					toSell -= lot.Shares
					queue = queue[1:]
					continue
				}

				slice := mulDiv(lot.CostCents, toSell, lot.Shares)
				profit += proceeds - slice
				queue[0] = domain.Lot{
					Date:      lot.Date,
					Shares:    lot.Shares - toSell,
					CostCents: lot.CostCents - slice,
				}
				toSell = 0
				proceeds = 0
			}

			if toSell > 0 {
				shortfalls = append(shortfalls, domain.Shortfall{
					Date:          ev.Date,
					Shares:        toSell,
					ProceedsCents: proceeds,
				})
			}
		}
	}

	// Copy out so the result never aliases the queue's backing array.
	var open []domain.Lot
	if len(queue) > 0 {
		open = append([]domain.Lot(nil), queue...)
	}

	return Result{
		ProfitCents: profit,
		OpenLots:    open,
		Shortfalls:  shortfalls,
	}
}

// mulDiv returns floor(a*b/c) for non-negative a, b and positive c with b <= c.
// The 128-bit intermediate keeps large cent amounts from overflowing.
func mulDiv(a, b, c int64) int64 {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	q, _ := bits.Div64(hi, lo, uint64(c))
	return int64(q)
}
