package promo

import "github.com/shopspring/decimal"

// applyBOGOs runs every filtered BOGO offer in application order. Each
// instance consumes BuyQty units from the buy set and GetQty units from the
// get set, cheapest line first. The discount applies to the consumed get
// units (or the buy units when the offer targets them) and is distributed
// across the consuming lines proportionally to units contributed.
//
// Buy and get sets usually don't overlap product-wise; when the data allows
// overlap, buy consumption is processed before get consumption and both draw
// from the same per-offer-kind unit pool, so a literal unit serves at most
// one role per instance.
func applyBOGOs(lines []CartLine, order []int, idx *Index, pool *unitPool) []BOGOInstance {
	var out []BOGOInstance

	for _, e := range idx.bogos {
		buyAvail, getAvail := 0, 0
		for _, li := range order {
			avail := pool.availableUnits(lines[li], li, fieldBOGO)
			if _, ok := e.buy[lines[li].ProductID]; ok {
				buyAvail += avail
			}
			if _, ok := e.get[lines[li].ProductID]; ok {
				getAvail += avail
			}
		}

		instances := buyAvail / e.offer.BuyQty
		if cap := getAvail / e.offer.GetQty; cap < instances {
			instances = cap
		}

		for inst := 1; inst <= instances; inst++ {
			buyParts, ok := planConsumption(lines, order, e.buy, pool, fieldBOGO, e.offer.BuyQty)
			if !ok {
				break
			}
			commitConsumption(pool, fieldBOGO, buyParts)

			getParts, ok := planConsumption(lines, order, e.get, pool, fieldBOGO, e.offer.GetQty)
			if !ok {
				// Overlapping sets drained the pool mid-instance; the
				// partial buy consumption stands but earns no discount.
				break
			}
			commitConsumption(pool, fieldBOGO, getParts)

			target := getParts
			if e.offer.DiscountOnBuy {
				target = buyParts
			}
			value := consumedValue(lines, target)

			var amount decimal.Decimal
			switch e.offer.Kind {
			case KindPercentage:
				amount = value.Mul(e.offer.Value).Div(hundred).Round(2)
			case KindFixed:
				amount = decimal.Min(e.offer.Value, value).Round(2)
			case KindFree:
				amount = value.Round(2)
			}

			applied := distributeByUnits(lines, target, amount, fieldBOGO)
			out = append(out, BOGOInstance{
				OfferID:  e.offer.ID,
				Instance: inst,
				BuyQty:   e.offer.BuyQty,
				GetQty:   e.offer.GetQty,
				Amount:   applied,
			})
		}
	}

	return out
}
