// Package promo implements the promotion allocation engine: it turns a cart
// snapshot plus the tenant's active offer definitions into a fully attributed
// price breakdown. The engine is a pure function of (cart, offers, now) and
// performs no I/O.
package promo

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountKind enumerates the supported discount strategies. It is a closed
// set: every allocator switches exhaustively over it, so adding a kind forces
// every call site to handle it.
type DiscountKind uint8

const (
	// KindPercentage discounts a percentage (0-100) of the affected value.
	KindPercentage DiscountKind = iota
	// KindFixed discounts a flat monetary amount, capped at the affected value.
	KindFixed
	// KindFree discounts the full affected value.
	KindFree
)

// String returns the storage/wire name of the discount kind.
func (k DiscountKind) String() string {
	switch k {
	case KindPercentage:
		return "percentage"
	case KindFixed:
		return "fixed"
	case KindFree:
		return "free"
	default:
		return "unknown"
	}
}

// ParseDiscountKind maps a storage/wire name back to a DiscountKind.
// The boolean result is false for unrecognized names.
func ParseDiscountKind(s string) (DiscountKind, bool) {
	switch s {
	case "percentage":
		return KindPercentage, true
	case "fixed":
		return KindFixed, true
	case "free":
		return KindFree, true
	default:
		return 0, false
	}
}

// TimeOfDay is a minute offset from midnight in the cart's local day,
// in the range [0, 1440).
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from an hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// timeOfDay extracts the minute-of-day from a timestamp.
func timeOfDay(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// GroupOffer is a quantity-threshold rule: buy at least RequiredQty units
// across the eligible product set, get a discount per full group.
type GroupOffer struct {
	ID          string
	Name        string
	RequiredQty int
	Kind        DiscountKind
	Value       decimal.Decimal
	Priority    int // lower runs first
	Active      bool
	ActiveFrom  *time.Time
	ActiveTo    *time.Time

	// ProductIDs is the closed eligible set: only these products count
	// toward the threshold and receive the discount.
	ProductIDs []string
}

// BOGOOffer is a buy-X-get-Y rule pairing a buy set with a get set.
type BOGOOffer struct {
	ID       string
	Name     string
	BuyQty   int
	GetQty   int
	Kind     DiscountKind
	Value    decimal.Decimal
	Priority int
	Active   bool
	// DiscountOnBuy applies the discount to the consumed buy units instead
	// of the get units.
	DiscountOnBuy bool
	ActiveFrom    *time.Time
	ActiveTo      *time.Time

	BuyProductIDs []string
	GetProductIDs []string
}

// TimeDiscount is a schedule-gated rule active only on the configured
// weekdays within [Start, End). Windows where End < Start wrap past midnight.
type TimeDiscount struct {
	ID       string
	Name     string
	Kind     DiscountKind
	Value    decimal.Decimal
	Days     []time.Weekday
	Start    TimeOfDay
	End      TimeOfDay
	Priority int
	Active   bool
	// WholeCart applies the discount to every line; otherwise only lines
	// matching Category are affected.
	WholeCart  bool
	Category   string
	ActiveFrom *time.Time
	ActiveTo   *time.Time
}

// Offers bundles the tenant's active rule definitions of all three kinds,
// already filtered by tenant by the caller.
type Offers struct {
	Groups []GroupOffer
	BOGOs  []BOGOOffer
	Times  []TimeDiscount
}

// CartLine is one entry in the cart. Product fields are snapshots taken when
// the item was added, not live lookups. The engine populates the discount
// share fields; everything else belongs to the caller.
type CartLine struct {
	ID        string
	ProductID string
	Name      string
	SKU       string
	Category  string

	// Quantity is a unit count, or a measured weight for weighed lines.
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Weighed   bool
	// WeightUnit names the measurement unit for weighed lines (e.g. "kg").
	WeightUnit string

	Subtotal decimal.Decimal // Quantity * UnitPrice

	GroupShare decimal.Decimal
	BOGOShare  decimal.Decimal
	TimeShare  decimal.Decimal

	LineDiscount decimal.Decimal // sum of the three shares
	LineTotal    decimal.Decimal // Subtotal - LineDiscount
}

// Cart is an ordered collection of lines. The engine never mutates its input
// cart; Apply returns a new value.
type Cart struct {
	Lines []CartLine
}

// Subtotal sums the line subtotals.
func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.Subtotal)
	}
	return sum
}

// TotalDiscount sums the per-line discounts.
func (c Cart) TotalDiscount() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.LineDiscount)
	}
	return sum
}

// GroupInstance records one concrete application of a group offer.
type GroupInstance struct {
	OfferID  string
	Instance int // 1-based within this offer, in application order
	Quantity int // units consumed by this group
	Amount   decimal.Decimal
}

// BOGOInstance records one concrete application of a BOGO offer.
type BOGOInstance struct {
	OfferID  string
	Instance int
	BuyQty   int
	GetQty   int
	Amount   decimal.Decimal
}

// TimeInstance records one application of a time discount.
type TimeInstance struct {
	OfferID string
	Amount  decimal.Decimal
}

// Summary is the engine's output ledger. Each entry maps 1:1 onto a persisted
// sale discount record. TotalDiscount always equals the sum of every line's
// LineDiscount in the returned cart.
type Summary struct {
	Groups        []GroupInstance
	BOGOs         []BOGOInstance
	Times         []TimeInstance
	TotalDiscount decimal.Decimal
}
