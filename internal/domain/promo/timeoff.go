package promo

import "github.com/shopspring/decimal"

// applyTimes runs every time discount that survived the index's schedule
// filter, in application order. Time discounts apply last: the base is each
// affected line's post-Group/BOGO remainder (and post earlier time
// discounts), never the original subtotal, so they stack on whatever value
// remains instead of compounding on already-discounted money.
func applyTimes(lines []CartLine, order []int, idx *Index) []TimeInstance {
	var out []TimeInstance

	for _, t := range idx.times {
		var (
			affected []int
			contribs []decimal.Decimal
		)
		base := decimal.Zero
		for _, li := range order {
			if !t.WholeCart && lines[li].Category != t.Category {
				continue
			}
			contrib := headroom(&lines[li])
			if contrib.Sign() <= 0 {
				continue
			}
			affected = append(affected, li)
			contribs = append(contribs, contrib)
			base = base.Add(contrib)
		}
		if base.Sign() <= 0 {
			continue
		}

		var amount decimal.Decimal
		switch t.Kind {
		case KindPercentage:
			amount = base.Mul(t.Value).Div(hundred).Round(2)
		case KindFixed:
			amount = decimal.Min(t.Value, base).Round(2)
		case KindFree:
			amount = base.Round(2)
		}
		if amount.Sign() <= 0 {
			continue
		}

		applied := distributeByValue(lines, affected, contribs, base, amount, fieldTime)
		if applied.Sign() <= 0 {
			continue
		}
		out = append(out, TimeInstance{OfferID: t.ID, Amount: applied})
	}

	return out
}
