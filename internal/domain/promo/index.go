package promo

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// groupEntry is a group offer that survived eligibility filtering, with its
// product set materialized for O(1) membership checks.
type groupEntry struct {
	offer    GroupOffer
	eligible map[string]struct{}
}

// bogoEntry is a filtered BOGO offer with both product sets materialized.
type bogoEntry struct {
	offer BOGOOffer
	buy   map[string]struct{}
	get   map[string]struct{}
}

// Index holds the offers eligible at a single instant, pre-filtered and
// sorted into deterministic application order (priority ascending, offer id
// as tiebreak). Building it has no side effects; the same inputs always
// produce the same index.
type Index struct {
	groups []groupEntry
	bogos  []bogoEntry
	times  []TimeDiscount
}

// BuildIndex filters the offer set down to rules applicable at now. Malformed
// rules (non-positive thresholds or quantities, empty eligible sets,
// out-of-range values) are excluded entirely rather than reported: a bad rule
// degrades to "no discount", never to a failed computation.
func BuildIndex(offers Offers, now time.Time) *Index {
	idx := &Index{}

	for _, g := range offers.Groups {
		if !g.Active || g.RequiredQty <= 0 || len(g.ProductIDs) == 0 {
			continue
		}
		if !withinDateWindow(now, g.ActiveFrom, g.ActiveTo) || !validValue(g.Kind, g.Value) {
			continue
		}
		idx.groups = append(idx.groups, groupEntry{offer: g, eligible: toSet(g.ProductIDs)})
	}
	sort.Slice(idx.groups, func(i, j int) bool {
		a, b := idx.groups[i].offer, idx.groups[j].offer
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.ID < b.ID
	})

	for _, b := range offers.BOGOs {
		if !b.Active || b.BuyQty <= 0 || b.GetQty <= 0 {
			continue
		}
		if len(b.BuyProductIDs) == 0 || len(b.GetProductIDs) == 0 {
			continue
		}
		if !withinDateWindow(now, b.ActiveFrom, b.ActiveTo) || !validValue(b.Kind, b.Value) {
			continue
		}
		idx.bogos = append(idx.bogos, bogoEntry{
			offer: b,
			buy:   toSet(b.BuyProductIDs),
			get:   toSet(b.GetProductIDs),
		})
	}
	sort.Slice(idx.bogos, func(i, j int) bool {
		a, b := idx.bogos[i].offer, idx.bogos[j].offer
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.ID < b.ID
	})

	for _, t := range offers.Times {
		if !t.Active || !withinDateWindow(now, t.ActiveFrom, t.ActiveTo) || !validValue(t.Kind, t.Value) {
			continue
		}
		if !t.WholeCart && t.Category == "" {
			continue
		}
		if !weekdayIn(now.Weekday(), t.Days) || !withinTimeWindow(timeOfDay(now), t.Start, t.End) {
			continue
		}
		idx.times = append(idx.times, t)
	}
	sort.Slice(idx.times, func(i, j int) bool {
		a, b := idx.times[i], idx.times[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.ID < b.ID
	})

	return idx
}

// withinDateWindow reports whether now falls inside the optional
// [from, to] activity window. Nil bounds are open-ended.
func withinDateWindow(now time.Time, from, to *time.Time) bool {
	if from != nil && now.Before(*from) {
		return false
	}
	if to != nil && now.After(*to) {
		return false
	}
	return true
}

// withinTimeWindow reports whether t is inside [start, end). Windows with
// end < start wrap past midnight; start == end is an empty window.
func withinTimeWindow(t, start, end TimeOfDay) bool {
	if start == end {
		return false
	}
	if end > start {
		return t >= start && t < end
	}
	return t >= start || t < end
}

func weekdayIn(d time.Weekday, days []time.Weekday) bool {
	for _, x := range days {
		if x == d {
			return true
		}
	}
	return false
}

// validValue rejects rules whose discount value cannot produce a sane
// amount. Free ignores its value; percentage must be within [0, 100];
// fixed must be non-negative.
func validValue(kind DiscountKind, v decimal.Decimal) bool {
	switch kind {
	case KindFree:
		return true
	case KindPercentage:
		return !v.IsNegative() && v.LessThanOrEqual(hundred)
	case KindFixed:
		return !v.IsNegative()
	default:
		return false
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
