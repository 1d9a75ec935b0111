package promo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinTimeWindow(t *testing.T) {
	tests := []struct {
		name       string
		at         TimeOfDay
		start, end TimeOfDay
		want       bool
	}{
		{"inside simple window", NewTimeOfDay(15, 0), NewTimeOfDay(14, 0), NewTimeOfDay(16, 0), true},
		{"start is inclusive", NewTimeOfDay(14, 0), NewTimeOfDay(14, 0), NewTimeOfDay(16, 0), true},
		{"end is exclusive", NewTimeOfDay(16, 0), NewTimeOfDay(14, 0), NewTimeOfDay(16, 0), false},
		{"before window", NewTimeOfDay(10, 0), NewTimeOfDay(14, 0), NewTimeOfDay(16, 0), false},
		{"overnight wrap, late evening", NewTimeOfDay(23, 30), NewTimeOfDay(22, 0), NewTimeOfDay(2, 0), true},
		{"overnight wrap, early morning", NewTimeOfDay(1, 0), NewTimeOfDay(22, 0), NewTimeOfDay(2, 0), true},
		{"overnight wrap, outside", NewTimeOfDay(12, 0), NewTimeOfDay(22, 0), NewTimeOfDay(2, 0), false},
		{"overnight end exclusive", NewTimeOfDay(2, 0), NewTimeOfDay(22, 0), NewTimeOfDay(2, 0), false},
		{"empty window", NewTimeOfDay(9, 0), NewTimeOfDay(9, 0), NewTimeOfDay(9, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, withinTimeWindow(tt.at, tt.start, tt.end))
		})
	}
}

func TestBuildIndex_DateWindowFiltering(t *testing.T) {
	now := time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	offer := func(id string, from, to *time.Time) GroupOffer {
		return GroupOffer{
			ID: id, RequiredQty: 2, Kind: KindFixed, Value: decimal.NewFromInt(1),
			Active: true, ProductIDs: []string{"A"}, ActiveFrom: from, ActiveTo: to,
		}
	}

	offers := Offers{Groups: []GroupOffer{
		offer("open-ended", nil, nil),
		offer("within", &past, &future),
		offer("expired", &past, &past),
		offer("not-yet", &future, nil),
		offer("no-start", nil, &future),
	}}

	idx := BuildIndex(offers, now)

	ids := make([]string, len(idx.groups))
	for i, e := range idx.groups {
		ids[i] = e.offer.ID
	}
	assert.ElementsMatch(t, []string{"open-ended", "within", "no-start"}, ids)
}

func TestBuildIndex_InactiveExcluded(t *testing.T) {
	idx := BuildIndex(Offers{Groups: []GroupOffer{{
		ID: "off", RequiredQty: 2, Kind: KindFixed, Value: decimal.NewFromInt(1),
		Active: false, ProductIDs: []string{"A"},
	}}}, time.Now())

	assert.Empty(t, idx.groups)
}

func TestBuildIndex_TimeScheduleFiltering(t *testing.T) {
	td := func(id string, days []time.Weekday, start, end TimeOfDay) TimeDiscount {
		return TimeDiscount{
			ID: id, Kind: KindPercentage, Value: decimal.NewFromInt(10),
			Days: days, Start: start, End: end, Active: true,
			WholeCart: false, Category: "drinks",
		}
	}

	weekdays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	offers := Offers{Times: []TimeDiscount{
		td("happy-hour", weekdays, NewTimeOfDay(14, 0), NewTimeOfDay(16, 0)),
		td("night-owl", weekdays, NewTimeOfDay(22, 0), NewTimeOfDay(2, 0)),
		td("weekend", []time.Weekday{time.Saturday, time.Sunday}, NewTimeOfDay(14, 0), NewTimeOfDay(16, 0)),
	}}

	monday1430 := time.Date(2025, 6, 16, 14, 30, 0, 0, time.UTC)
	idx := BuildIndex(offers, monday1430)
	require.Len(t, idx.times, 1)
	assert.Equal(t, "happy-hour", idx.times[0].ID)

	tuesday0100 := time.Date(2025, 6, 17, 1, 0, 0, 0, time.UTC)
	idx = BuildIndex(offers, tuesday0100)
	require.Len(t, idx.times, 1)
	assert.Equal(t, "night-owl", idx.times[0].ID)

	saturday1430 := time.Date(2025, 6, 21, 14, 30, 0, 0, time.UTC)
	idx = BuildIndex(offers, saturday1430)
	require.Len(t, idx.times, 1)
	assert.Equal(t, "weekend", idx.times[0].ID)
}

func TestBuildIndex_ApplicationOrder(t *testing.T) {
	offers := Offers{BOGOs: []BOGOOffer{
		{ID: "b", BuyQty: 1, GetQty: 1, Kind: KindFree, Active: true, Priority: 2, BuyProductIDs: []string{"A"}, GetProductIDs: []string{"B"}},
		{ID: "c", BuyQty: 1, GetQty: 1, Kind: KindFree, Active: true, Priority: 1, BuyProductIDs: []string{"A"}, GetProductIDs: []string{"B"}},
		{ID: "a", BuyQty: 1, GetQty: 1, Kind: KindFree, Active: true, Priority: 2, BuyProductIDs: []string{"A"}, GetProductIDs: []string{"B"}},
	}}

	idx := BuildIndex(offers, time.Now())
	require.Len(t, idx.bogos, 3)
	// Priority ascending, id as tiebreak.
	assert.Equal(t, "c", idx.bogos[0].offer.ID)
	assert.Equal(t, "a", idx.bogos[1].offer.ID)
	assert.Equal(t, "b", idx.bogos[2].offer.ID)
}
