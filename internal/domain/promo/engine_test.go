package promo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// monday14 is a Monday at 14:30 local time, inside typical test windows.
var monday14 = time.Date(2025, 6, 16, 14, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func line(id, productID string, price string, qty int64) CartLine {
	return CartLine{
		ID:        id,
		ProductID: productID,
		Quantity:  decimal.NewFromInt(qty),
		UnitPrice: dec(price),
	}
}

func equalDec(t *testing.T, want, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s (%v)", want, got, msgAndArgs)
}

func groupBuy3Pct10(products ...string) GroupOffer {
	return GroupOffer{
		ID:          "g-pct10",
		Name:        "buy 3 get 10% off",
		RequiredQty: 3,
		Kind:        KindPercentage,
		Value:       decimal.NewFromInt(10),
		Priority:    1,
		Active:      true,
		ProductIDs:  products,
	}
}

func TestApply_GroupOfferExample(t *testing.T) {
	// 5 units of A at 2.00, "buy 3 get 10% off": one group of 3 consumes
	// 6.00 of value, discount 0.60, the remaining 2 units untouched.
	engine := NewEngine(DefaultPolicy())
	cart := Cart{Lines: []CartLine{line("l1", "A", "2.00", 5)}}
	offers := Offers{Groups: []GroupOffer{groupBuy3Pct10("A")}}

	got, sum, err := engine.Apply(cart, offers, monday14)
	require.NoError(t, err)

	require.Len(t, sum.Groups, 1)
	assert.Equal(t, "g-pct10", sum.Groups[0].OfferID)
	assert.Equal(t, 1, sum.Groups[0].Instance)
	assert.Equal(t, 3, sum.Groups[0].Quantity)
	equalDec(t, dec("0.60"), sum.Groups[0].Amount)
	equalDec(t, dec("0.60"), sum.TotalDiscount)

	l := got.Lines[0]
	equalDec(t, dec("10.00"), l.Subtotal)
	equalDec(t, dec("0.60"), l.GroupShare)
	equalDec(t, dec("0.60"), l.LineDiscount)
	equalDec(t, dec("9.40"), l.LineTotal)
}

func TestApply_GroupOfferMultipleInstances(t *testing.T) {
	// 7 units, threshold 3: two full groups, one unit left over.
	engine := NewEngine(DefaultPolicy())
	cart := Cart{Lines: []CartLine{line("l1", "A", "2.00", 7)}}
	offers := Offers{Groups: []GroupOffer{groupBuy3Pct10("A")}}

	_, sum, err := engine.Apply(cart, offers, monday14)
	require.NoError(t, err)

	require.Len(t, sum.Groups, 2)
	assert.Equal(t, 1, sum.Groups[0].Instance)
	assert.Equal(t, 2, sum.Groups[1].Instance)
	equalDec(t, dec("0.60"), sum.Groups[0].Amount)
	equalDec(t, dec("0.60"), sum.Groups[1].Amount)
}

func TestApply_GroupConsumesCheapestLinesFirst(t *testing.T) {
	// Two eligible lines at different prices: the first group is formed
	// entirely from the cheaper line, the second from the pricier one.
	engine := NewEngine(DefaultPolicy())
	cart := Cart{Lines: []CartLine{
		line("l-expensive", "B", "2.00", 3),
		line("l-cheap", "A", "1.00", 3),
	}}
	offers := Offers{Groups: []GroupOffer{groupBuy3Pct10("A", "B")}}

	got, sum, err := engine.Apply(cart, offers, monday14)
	require.NoError(t, err)

	require.Len(t, sum.Groups, 2)
	equalDec(t, dec("0.30"), sum.Groups[0].Amount) // 10% of 3 x 1.00
	equalDec(t, dec("0.60"), sum.Groups[1].Amount) // 10% of 3 x 2.00

	equalDec(t, dec("0.60"), got.Lines[0].GroupShare)
	equalDec(t, dec("0.30"), got.Lines[1].GroupShare)
}

func TestApply_GroupShareDistributionRemainder(t *testing.T) {
	// A group spanning two lines: 10% of 4.00 = 0.40 split over 2+1 units.
	// Floored shares are 0.26 and 0.13; the 0.01 remainder goes to the
	// first line in consumption order (the cheapest).
	engine := NewEngine(DefaultPolicy())
	cart := Cart{Lines: []CartLine{
		line("l1", "A", "1.00", 2),
		line("l2", "B", "2.00", 1),
	}}
	offers := Offers{Groups: []GroupOffer{groupBuy3Pct10("A", "B")}}

	got, sum, err := engine.Apply(cart, offers, monday14)
	require.NoError(t, err)

	require.Len(t, sum.Groups, 1)
	equalDec(t, dec("0.40"), sum.Groups[0].Amount)
	equalDec(t, dec("0.27"), got.Lines[0].GroupShare)
	equalDec(t, dec("0.13"), got.Lines[1].GroupShare)
}

func TestApply_GroupPriorityDepletesSharedUnits(t *testing.T) {
	// Two group offers compete for the same 3 units. The lower priority
	// value runs first and drains the pool; the other gets nothing.
	base := groupBuy3Pct10("A")
	rich := base
	rich.ID = "g-pct50"
	rich.Value = decimal.NewFromInt(50)
	rich.Priority = 2

	engine := NewEngine(DefaultPolicy())
	cart := Cart{Lines: []CartLine{line("l1", "A", "2.00", 3)}}

	_, sum, err := engine.Apply(cart, Offers{Groups: []GroupOffer{rich, base}}, monday14)
	require.NoError(t, err)

	require.Len(t, sum.Groups, 1)
	assert.Equal(t, "g-pct10", sum.Groups[0].OfferID)

	// Swapping priorities swaps the winner.
	base2, rich2 := base, rich
	base2.Priority, rich2.Priority = 2, 1
	_, sum, err = engine.Apply(cart, Offers{Groups: []GroupOffer{rich2, base2}}, monday14)
	require.NoError(t, err)
	require.Len(t, sum.Groups, 1)
	assert.Equal(t, "g-pct50", sum.Groups[0].OfferID)
}

func TestApply_BOGOExample(t *testing.T) {
	// "Buy 2 get 1 free" on product B at 3.00 with 3 units in the cart:
	// one instance, two buy units undiscounted, one get unit free.
	engine := NewEngine(DefaultPolicy())
	cart := Cart{Lines: []CartLine{line("l1", "B", "3.00", 3)}}
	offers := Offers{BOGOs: []BOGOOffer{{
		ID:            "b-free",
		BuyQty:        2,
		GetQty:        1,
		Kind:          KindFree,
		Priority:      1,
		Active:        true,
		BuyProductIDs: []string{"B"},
		GetProductIDs: []string{"B"},
	}}}

	got, sum, err := engine.Apply(cart, offers, monday14)
	require.NoError(t, err)

	require.Len(t, sum.BOGOs, 1)
	assert.Equal(t, 2, sum.BOGOs[0].BuyQty)
	assert.Equal(t, 1, sum.BOGOs[0].GetQty)
	equalDec(t, dec("3.00"), sum.BOGOs[0].Amount)
	equalDec(t, dec("3.00"), got.Lines[0].BOGOShare)
	equalDec(t, dec("6.00"), got.Lines[0].LineTotal)
}

func TestApply_BOGODiscountOnBuy(t *testing.T) {
	// Target flag on the buy side: 50% off the two buy units, get unit
	// consumed but untouched.
	engine := NewEngine(DefaultPolicy())
	cart := Cart{Lines: []CartLine{
		line("l-buy", "A", "4.00", 2),
		line("l-get", "B", "1.00", 1),
	}}
	offers := Offers{BOGOs: []BOGOOffer{{
		ID:            "b-buy50",
		BuyQty:        2,
		GetQty:        1,
		Kind:          KindPercentage,
		Value:         decimal.NewFromInt(50),
		DiscountOnBuy: true,
		Active:        true,
		BuyProductIDs: []string{"A"},
		GetProductIDs: []string{"B"},
	}}}

	got, sum, err := engine.Apply(cart, offers, monday14)
	require.NoError(t, err)

	require.Len(t, sum.BOGOs, 1)
	equalDec(t, dec("4.00"), sum.BOGOs[0].Amount) // 50% of 2 x 4.00
	equalDec(t, dec("4.00"), got.Lines[0].BOGOShare)
	equalDec(t, decimal.Zero, got.Lines[1].BOGOShare)
}

func TestApply_BOGOCappedByGetAvailability(t *testing.T) {
	// 4 buy units would allow two instances, but only one get unit exists.
	engine := NewEngine(DefaultPolicy())
	cart := Cart{Lines: []CartLine{
		line("l-buy", "A", "2.00", 4),
		line("l-get", "B", "3.00", 1),
	}}
	offers := Offers{BOGOs: []BOGOOffer{{
		ID:            "b-free",
		BuyQty:        2,
		GetQty:        1,
		Kind:          KindFree,
		Active:        true,
		BuyProductIDs: []string{"A"},
		GetProductIDs: []string{"B"},
	}}}

	_, sum, err := engine.Apply(cart, offers, monday14)
	require.NoError(t, err)

	require.Len(t, sum.BOGOs, 1)
	equalDec(t, dec("3.00"), sum.BOGOs[0].Amount)
}

func TestApply_TimeDiscountOutsideWindow(t *testing.T) {
	// Whole-cart 10% active Mon-Fri 14:00-16:00; computing at 10:00 on a
	// Monday yields no time-discount entries at all.
	engine := NewEngine(DefaultPolicy())
	cart := Cart{Lines: []CartLine{line("l1", "A", "5.00", 2)}}
	offers := Offers{Times: []TimeDiscount{weekdayAfternoonPct10()}}

	monday10 := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	got, sum, err := engine.Apply(cart, offers, monday10)
	require.NoError(t, err)

	assert.Empty(t, sum.Times)
	equalDec(t, decimal.Zero, sum.TotalDiscount)
	equalDec(t, dec("10.00"), got.Lines[0].LineTotal)
}

func weekdayAfternoonPct10() TimeDiscount {
	return TimeDiscount{
		ID:        "t-pct10",
		Kind:      KindPercentage,
		Value:     decimal.NewFromInt(10),
		Days:      []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Start:     NewTimeOfDay(14, 0),
		End:       NewTimeOfDay(16, 0),
		Active:    true,
		WholeCart: true,
	}
}

func TestApply_TimeDiscountUsesPostDiscountBase(t *testing.T) {
	// Group takes 0.60 off a 10.00 line; the 10% time discount applies to
	// the remaining 9.40, not the original subtotal.
	engine := NewEngine(DefaultPolicy())
	cart := Cart{Lines: []CartLine{line("l1", "A", "2.00", 5)}}
	offers := Offers{
		Groups: []GroupOffer{groupBuy3Pct10("A")},
		Times:  []TimeDiscount{weekdayAfternoonPct10()},
	}

	got, sum, err := engine.Apply(cart, offers, monday14)
	require.NoError(t, err)

	require.Len(t, sum.Times, 1)
	equalDec(t, dec("0.94"), sum.Times[0].Amount)
	equalDec(t, dec("1.54"), sum.TotalDiscount)

	l := got.Lines[0]
	equalDec(t, dec("0.60"), l.GroupShare)
	equalDec(t, dec("0.94"), l.TimeShare)
	equalDec(t, dec("8.46"), l.LineTotal)
}

func TestApply_TimeDiscountCategoryScope(t *testing.T) {
	engine := NewEngine(DefaultPolicy())
	drinks := line("l1", "A", "4.00", 1)
	drinks.Category = "drinks"
	food := line("l2", "B", "6.00", 1)
	food.Category = "food"

	td := weekdayAfternoonPct10()
	td.WholeCart = false
	td.Category = "drinks"

	got, sum, err := engine.Apply(Cart{Lines: []CartLine{drinks, food}}, Offers{Times: []TimeDiscount{td}}, monday14)
	require.NoError(t, err)

	require.Len(t, sum.Times, 1)
	equalDec(t, dec("0.40"), sum.Times[0].Amount)
	equalDec(t, dec("0.40"), got.Lines[0].TimeShare)
	equalDec(t, decimal.Zero, got.Lines[1].TimeShare)
}

func TestApply_ClampNeverNegative(t *testing.T) {
	// A free group offer takes the whole 5.00 line; a BOGO free targeting
	// the same line has nothing left to discount. The excess is dropped
	// and the line total stays at zero.
	engine := NewEngine(DefaultPolicy())
	cart := Cart{Lines: []CartLine{
		line("l-target", "A", "5.00", 1),
		line("l-buy", "B", "1.00", 2),
	}}
	offers := Offers{
		Groups: []GroupOffer{{
			ID:          "g-free",
			RequiredQty: 1,
			Kind:        KindFree,
			Active:      true,
			ProductIDs:  []string{"A"},
		}},
		BOGOs: []BOGOOffer{{
			ID:            "b-free",
			BuyQty:        2,
			GetQty:        1,
			Kind:          KindFree,
			Active:        true,
			BuyProductIDs: []string{"B"},
			GetProductIDs: []string{"A"},
		}},
	}

	got, sum, err := engine.Apply(cart, offers, monday14)
	require.NoError(t, err)

	target := got.Lines[0]
	equalDec(t, dec("5.00"), target.GroupShare)
	equalDec(t, decimal.Zero, target.BOGOShare)
	equalDec(t, decimal.Zero, target.LineTotal)
	assert.False(t, target.LineTotal.IsNegative())

	// The BOGO instance is recorded with the clamped (zero) amount so the
	// ledger still matches the per-line attribution.
	require.Len(t, sum.BOGOs, 1)
	equalDec(t, decimal.Zero, sum.BOGOs[0].Amount)
	equalDec(t, got.TotalDiscount(), sum.TotalDiscount)
}

func TestApply_CrossKindStackingPolicy(t *testing.T) {
	// With stacking allowed (default) the same 3 units feed both the group
	// threshold and the BOGO; with stacking disabled the BOGO finds no
	// units left.
	cart := Cart{Lines: []CartLine{line("l1", "B", "3.00", 3)}}
	offers := Offers{
		Groups: []GroupOffer{{
			ID:          "g-pct10",
			RequiredQty: 3,
			Kind:        KindPercentage,
			Value:       decimal.NewFromInt(10),
			Active:      true,
			ProductIDs:  []string{"B"},
		}},
		BOGOs: []BOGOOffer{{
			ID:            "b-free",
			BuyQty:        2,
			GetQty:        1,
			Kind:          KindFree,
			Active:        true,
			BuyProductIDs: []string{"B"},
			GetProductIDs: []string{"B"},
		}},
	}

	_, sum, err := NewEngine(DefaultPolicy()).Apply(cart, offers, monday14)
	require.NoError(t, err)
	assert.Len(t, sum.Groups, 1)
	assert.Len(t, sum.BOGOs, 1)

	_, sum, err = NewEngine(Policy{CrossKindStacking: false}).Apply(cart, offers, monday14)
	require.NoError(t, err)
	assert.Len(t, sum.Groups, 1)
	assert.Empty(t, sum.BOGOs)
}

func TestApply_WeighedLineWholeUnitsOnly(t *testing.T) {
	// A weighed line of 2.5 kg contributes 2 whole units to the group
	// threshold but its full value to the time-discount base.
	weighed := CartLine{
		ID:         "l1",
		ProductID:  "A",
		Quantity:   dec("2.5"),
		UnitPrice:  dec("2.00"),
		Weighed:    true,
		WeightUnit: "kg",
	}
	offers := Offers{
		Groups: []GroupOffer{{
			ID:          "g-pct10",
			RequiredQty: 3,
			Kind:        KindPercentage,
			Value:       decimal.NewFromInt(10),
			Active:      true,
			ProductIDs:  []string{"A"},
		}},
		Times: []TimeDiscount{weekdayAfternoonPct10()},
	}

	got, sum, err := NewEngine(DefaultPolicy()).Apply(Cart{Lines: []CartLine{weighed}}, offers, monday14)
	require.NoError(t, err)

	assert.Empty(t, sum.Groups) // only 2 whole units, threshold is 3
	require.Len(t, sum.Times, 1)
	equalDec(t, dec("0.50"), sum.Times[0].Amount) // 10% of 5.00
	equalDec(t, dec("4.50"), got.Lines[0].LineTotal)
}

func TestApply_Idempotent(t *testing.T) {
	engine := NewEngine(DefaultPolicy())
	cart := Cart{Lines: []CartLine{
		line("l1", "A", "2.00", 5),
		line("l2", "B", "3.00", 3),
	}}
	offers := Offers{
		Groups: []GroupOffer{groupBuy3Pct10("A")},
		BOGOs: []BOGOOffer{{
			ID: "b-free", BuyQty: 2, GetQty: 1, Kind: KindFree, Active: true,
			BuyProductIDs: []string{"B"}, GetProductIDs: []string{"B"},
		}},
		Times: []TimeDiscount{weekdayAfternoonPct10()},
	}

	once, sumOnce, err := engine.Apply(cart, offers, monday14)
	require.NoError(t, err)

	// Feeding the engine its own output must not compound discounts.
	twice, sumTwice, err := engine.Apply(once, offers, monday14)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, sumOnce, sumTwice)
}

func TestApply_DeterministicUnderPermutation(t *testing.T) {
	engine := NewEngine(DefaultPolicy())
	lines := []CartLine{
		line("l1", "A", "2.00", 2),
		line("l2", "B", "1.50", 4),
		line("l3", "A", "2.00", 3),
	}
	offers := Offers{Groups: []GroupOffer{groupBuy3Pct10("A", "B")}}

	straight, sumA, err := engine.Apply(Cart{Lines: lines}, offers, monday14)
	require.NoError(t, err)

	reversed := []CartLine{lines[2], lines[1], lines[0]}
	permuted, sumB, err := engine.Apply(Cart{Lines: reversed}, offers, monday14)
	require.NoError(t, err)

	assert.Equal(t, sumA, sumB)

	byID := make(map[string]CartLine)
	for _, l := range permuted.Lines {
		byID[l.ID] = l
	}
	for _, want := range straight.Lines {
		assert.Equal(t, want, byID[want.ID], "line %s", want.ID)
	}
}

func TestApply_LedgerMatchesLineAttribution(t *testing.T) {
	engine := NewEngine(DefaultPolicy())
	cart := Cart{Lines: []CartLine{
		line("l1", "A", "1.99", 4),
		line("l2", "B", "3.49", 5),
		line("l3", "C", "0.75", 7),
	}}
	offers := Offers{
		Groups: []GroupOffer{groupBuy3Pct10("A", "C")},
		BOGOs: []BOGOOffer{{
			ID: "b-half", BuyQty: 3, GetQty: 2, Kind: KindPercentage,
			Value: decimal.NewFromInt(50), Active: true,
			BuyProductIDs: []string{"B"}, GetProductIDs: []string{"C"},
		}},
		Times: []TimeDiscount{weekdayAfternoonPct10()},
	}

	got, sum, err := engine.Apply(cart, offers, monday14)
	require.NoError(t, err)

	equalDec(t, got.TotalDiscount(), sum.TotalDiscount)
	for _, l := range got.Lines {
		equalDec(t, l.GroupShare.Add(l.BOGOShare).Add(l.TimeShare), l.LineDiscount, l.ID)
		equalDec(t, l.Subtotal.Sub(l.LineDiscount), l.LineTotal, l.ID)
		assert.False(t, l.LineDiscount.IsNegative(), l.ID)
		assert.True(t, l.LineDiscount.LessThanOrEqual(l.Subtotal), l.ID)
	}
}

func TestApply_MalformedOffersSkipped(t *testing.T) {
	engine := NewEngine(DefaultPolicy())
	cart := Cart{Lines: []CartLine{line("l1", "A", "2.00", 5)}}
	offers := Offers{
		Groups: []GroupOffer{
			{ID: "g-zero", RequiredQty: 0, Kind: KindFixed, Value: decimal.NewFromInt(1), Active: true, ProductIDs: []string{"A"}},
			{ID: "g-empty", RequiredQty: 2, Kind: KindFixed, Value: decimal.NewFromInt(1), Active: true},
			{ID: "g-negative", RequiredQty: 2, Kind: KindFixed, Value: decimal.NewFromInt(-1), Active: true, ProductIDs: []string{"A"}},
		},
		BOGOs: []BOGOOffer{
			{ID: "b-zero", BuyQty: 0, GetQty: 1, Kind: KindFree, Active: true, BuyProductIDs: []string{"A"}, GetProductIDs: []string{"A"}},
		},
	}

	_, sum, err := engine.Apply(cart, offers, monday14)
	require.NoError(t, err)
	assert.Empty(t, sum.Groups)
	assert.Empty(t, sum.BOGOs)
	equalDec(t, decimal.Zero, sum.TotalDiscount)
}
