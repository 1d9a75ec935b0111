package promo

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// consumption records how many units of one cart line a single offer
// instance consumed. Line is an index into the working cart's Lines slice.
type consumption struct {
	line  int
	units int
}

// shareField selects which per-line discount share a distribution adds to.
type shareField uint8

const (
	fieldGroup shareField = iota
	fieldBOGO
	fieldTime
)

// headroom returns how much discount the line can still absorb before its
// total would go below zero.
func headroom(l *CartLine) decimal.Decimal {
	h := l.Subtotal.Sub(l.GroupShare).Sub(l.BOGOShare).Sub(l.TimeShare)
	if h.IsNegative() {
		return decimal.Zero
	}
	return h
}

func addShare(l *CartLine, field shareField, amount decimal.Decimal) {
	switch field {
	case fieldGroup:
		l.GroupShare = l.GroupShare.Add(amount)
	case fieldBOGO:
		l.BOGOShare = l.BOGOShare.Add(amount)
	case fieldTime:
		l.TimeShare = l.TimeShare.Add(amount)
	}
}

// distributeByUnits splits amount across the consumed lines proportionally to
// the units each contributed. Each share is floored to the cent and the
// rounding remainder is assigned to the first line in consumption order, so
// the split is stable and no line ever receives a negative remainder.
//
// Shares are additionally clamped at each line's remaining headroom: a line
// total never goes below zero, and the clamped excess is dropped. The
// returned value is the amount actually applied, which becomes the ledger
// instance amount so the per-line attribution and the ledger stay in
// lockstep.
func distributeByUnits(lines []CartLine, parts []consumption, amount decimal.Decimal, field shareField) decimal.Decimal {
	if len(parts) == 0 || amount.Sign() <= 0 {
		return decimal.Zero
	}

	totalUnits := 0
	for _, p := range parts {
		totalUnits += p.units
	}
	if totalUnits <= 0 {
		return decimal.Zero
	}

	total := decimal.NewFromInt(int64(totalUnits))
	shares := make([]decimal.Decimal, len(parts))
	distributed := decimal.Zero
	for i, p := range parts {
		shares[i] = amount.Mul(decimal.NewFromInt(int64(p.units))).Div(total).RoundDown(2)
		distributed = distributed.Add(shares[i])
	}
	// Remainder to the first consumer.
	shares[0] = shares[0].Add(amount.Sub(distributed))

	applied := decimal.Zero
	for i, p := range parts {
		l := &lines[p.line]
		share := decimal.Min(shares[i], headroom(l))
		if share.Sign() <= 0 {
			continue
		}
		addShare(l, field, share)
		applied = applied.Add(share)
	}
	return applied
}

// distributeByValue splits amount across lines proportionally to each line's
// contribution to base (the lines' remaining post-discount totals). Same
// flooring, remainder, and clamping rules as distributeByUnits.
func distributeByValue(lines []CartLine, affected []int, contribs []decimal.Decimal, base, amount decimal.Decimal, field shareField) decimal.Decimal {
	if len(affected) == 0 || amount.Sign() <= 0 || base.Sign() <= 0 {
		return decimal.Zero
	}

	shares := make([]decimal.Decimal, len(affected))
	distributed := decimal.Zero
	for i := range affected {
		shares[i] = amount.Mul(contribs[i]).Div(base).RoundDown(2)
		distributed = distributed.Add(shares[i])
	}
	shares[0] = shares[0].Add(amount.Sub(distributed))

	applied := decimal.Zero
	for i, li := range affected {
		l := &lines[li]
		share := decimal.Min(shares[i], headroom(l))
		if share.Sign() <= 0 {
			continue
		}
		addShare(l, field, share)
		applied = applied.Add(share)
	}
	return applied
}
