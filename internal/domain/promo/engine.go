package promo

import (
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrLedgerMismatch indicates the ledger total diverged from the per-line
// attribution. It signals an engine bug, never bad input: callers should log
// it and fall back to the undiscounted cart rather than persist an
// inconsistent breakdown.
var ErrLedgerMismatch = errors.New("promotion ledger does not match per-line discounts")

// Policy holds engine behaviour decisions that need business sign-off.
type Policy struct {
	// CrossKindStacking allows a single unit to receive both a Group and a
	// BOGO discount in the same pass. The original checkout behaviour allows
	// it; flip this once the business confirms units must be exclusive.
	CrossKindStacking bool
}

// DefaultPolicy matches the historical checkout behaviour.
func DefaultPolicy() Policy {
	return Policy{CrossKindStacking: true}
}

// Engine computes discount attributions. It is stateless and safe to share;
// callers serialize access per cart themselves (one cart per active checkout
// session).
type Engine struct {
	policy Policy
}

// NewEngine returns an Engine with the given policy.
func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// Apply computes the discount breakdown for the cart under the given offers
// at the given instant. It returns a new cart value with every line's share
// fields populated, plus the instance ledger. The input cart is never
// mutated.
//
// Apply is deterministic and idempotent: any discount shares already present
// on the input lines are reset before allocation, so re-running it on its
// own output yields the identical result. The current time is a parameter so
// the engine stays a pure function.
//
// On ErrLedgerMismatch the returned cart is the reset, undiscounted cart and
// the summary is empty.
func (e *Engine) Apply(cart Cart, offers Offers, now time.Time) (Cart, Summary, error) {
	lines := resetLines(cart.Lines)

	// Canonical consumption order: cheapest unit price first, line id as the
	// deterministic tiebreak. The output cart keeps the caller's order.
	order := make([]int, len(lines))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		la, lb := lines[order[a]], lines[order[b]]
		if !la.UnitPrice.Equal(lb.UnitPrice) {
			return la.UnitPrice.LessThan(lb.UnitPrice)
		}
		return la.ID < lb.ID
	})

	idx := BuildIndex(offers, now)
	pool := newUnitPool(e.policy)

	// Fixed kind order: Group and BOGO decide thresholds on pre-discount
	// unit economics; Time stacks on whatever remains.
	sum := Summary{
		Groups: applyGroups(lines, order, idx, pool),
		BOGOs:  applyBOGOs(lines, order, idx, pool),
		Times:  applyTimes(lines, order, idx),
	}

	ledger := decimal.Zero
	for _, g := range sum.Groups {
		ledger = ledger.Add(g.Amount)
	}
	for _, b := range sum.BOGOs {
		ledger = ledger.Add(b.Amount)
	}
	for _, t := range sum.Times {
		ledger = ledger.Add(t.Amount)
	}
	sum.TotalDiscount = ledger

	attributed := decimal.Zero
	for i := range lines {
		l := &lines[i]
		l.LineDiscount = l.GroupShare.Add(l.BOGOShare).Add(l.TimeShare)
		l.LineTotal = l.Subtotal.Sub(l.LineDiscount)
		attributed = attributed.Add(l.LineDiscount)
	}

	if !attributed.Equal(ledger) {
		return Cart{Lines: resetLines(cart.Lines)}, Summary{},
			errors.Wrapf(ErrLedgerMismatch, "lines %s, ledger %s", attributed, ledger)
	}

	return Cart{Lines: lines}, sum, nil
}

// resetLines copies the cart lines with all discount fields zeroed and the
// subtotal recomputed from quantity and unit price.
func resetLines(in []CartLine) []CartLine {
	lines := make([]CartLine, len(in))
	copy(lines, in)
	for i := range lines {
		l := &lines[i]
		l.Subtotal = l.Quantity.Mul(l.UnitPrice).Round(2)
		l.GroupShare = decimal.Zero
		l.BOGOShare = decimal.Zero
		l.TimeShare = decimal.Zero
		l.LineDiscount = decimal.Zero
		l.LineTotal = l.Subtotal
	}
	return lines
}
