package promo

import "github.com/shopspring/decimal"

// unitPool tracks, per working-cart line index, how many whole units each
// offer kind has already consumed in this pass. Within a kind units deplete
// across offers, so the same literal unit is never discounted twice by the
// same kind. Whether a unit consumed by one kind remains available to the
// other kind is the cross-kind stacking policy decision; availableUnits is
// the single place it is consulted.
type unitPool struct {
	policy Policy
	group  map[int]int
	bogo   map[int]int
}

func newUnitPool(policy Policy) *unitPool {
	return &unitPool{
		policy: policy,
		group:  make(map[int]int),
		bogo:   make(map[int]int),
	}
}

// availableUnits returns how many whole units of the line the given kind may
// still consume.
func (p *unitPool) availableUnits(l CartLine, li int, kind shareField) int {
	avail := wholeUnits(l)
	switch kind {
	case fieldGroup:
		avail -= p.group[li]
		if !p.policy.CrossKindStacking {
			avail -= p.bogo[li]
		}
	case fieldBOGO:
		avail -= p.bogo[li]
		if !p.policy.CrossKindStacking {
			avail -= p.group[li]
		}
	}
	if avail < 0 {
		return 0
	}
	return avail
}

func (p *unitPool) consume(li int, kind shareField, units int) {
	switch kind {
	case fieldGroup:
		p.group[li] += units
	case fieldBOGO:
		p.bogo[li] += units
	}
}

// wholeUnits returns the consumable unit count of a line. Weighed lines
// contribute their whole-unit part only; fractional remainders never count
// toward quantity thresholds.
func wholeUnits(l CartLine) int {
	if l.Quantity.Sign() <= 0 {
		return 0
	}
	return int(l.Quantity.IntPart())
}

// planConsumption walks the canonical order (cheapest line first) and plans
// taking need units from lines whose product id is in the eligible set.
// It returns ok=false when fewer than need units are available.
func planConsumption(lines []CartLine, order []int, eligible map[string]struct{}, pool *unitPool, kind shareField, need int) ([]consumption, bool) {
	var parts []consumption
	for _, li := range order {
		if need == 0 {
			break
		}
		if _, ok := eligible[lines[li].ProductID]; !ok {
			continue
		}
		avail := pool.availableUnits(lines[li], li, kind)
		if avail == 0 {
			continue
		}
		take := avail
		if take > need {
			take = need
		}
		parts = append(parts, consumption{line: li, units: take})
		need -= take
	}
	return parts, need == 0
}

func commitConsumption(pool *unitPool, kind shareField, parts []consumption) {
	for _, p := range parts {
		pool.consume(p.line, kind, p.units)
	}
}

// consumedValue sums units * unit price across the planned consumption.
func consumedValue(lines []CartLine, parts []consumption) decimal.Decimal {
	v := decimal.Zero
	for _, p := range parts {
		v = v.Add(lines[p.line].UnitPrice.Mul(decimal.NewFromInt(int64(p.units))))
	}
	return v
}

// applyGroups runs every filtered group offer in application order. For each
// offer it forms floor(eligible/required) groups; each group consumes
// required units cheapest-line-first and yields one ledger instance.
//
// The discount amount per group is: fixed — the flat rule value capped at
// the consumed value; percentage — the rule percentage applied to the
// average unit price across the consumed quantity, times that quantity;
// free — the full consumed value. The average-unit-price form matters for
// rounding parity with persisted sale records and is kept verbatim.
func applyGroups(lines []CartLine, order []int, idx *Index, pool *unitPool) []GroupInstance {
	var out []GroupInstance

	for _, e := range idx.groups {
		total := 0
		for _, li := range order {
			if _, ok := e.eligible[lines[li].ProductID]; ok {
				total += pool.availableUnits(lines[li], li, fieldGroup)
			}
		}

		instances := total / e.offer.RequiredQty
		for inst := 1; inst <= instances; inst++ {
			parts, ok := planConsumption(lines, order, e.eligible, pool, fieldGroup, e.offer.RequiredQty)
			if !ok {
				break
			}
			commitConsumption(pool, fieldGroup, parts)

			value := consumedValue(lines, parts)
			qty := decimal.NewFromInt(int64(e.offer.RequiredQty))

			var amount decimal.Decimal
			switch e.offer.Kind {
			case KindPercentage:
				avg := value.Div(qty)
				amount = avg.Mul(qty).Mul(e.offer.Value).Div(hundred).Round(2)
			case KindFixed:
				amount = decimal.Min(e.offer.Value, value).Round(2)
			case KindFree:
				amount = value.Round(2)
			}

			applied := distributeByUnits(lines, parts, amount, fieldGroup)
			out = append(out, GroupInstance{
				OfferID:  e.offer.ID,
				Instance: inst,
				Quantity: e.offer.RequiredQty,
				Amount:   applied,
			})
		}
	}

	return out
}
