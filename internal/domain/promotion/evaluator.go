package promotion

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sanisidro/sanisidro-api/internal/domain/cart"
)

// Reasons reported by Evaluate when a promotion does not apply.
const (
	ReasonInactive          = "promotion inactive"
	ReasonNotStarted        = "promotion not started"
	ReasonExpired           = "promotion expired"
	ReasonMinAmount         = "minAmount not met"
	ReasonMinQuantity       = "minQuantity not met"
	ReasonNoApplicableItems = "no applicable products"
)

// Line is the per-product share of a cart summary.
type Line struct {
	Product string
	Amount  decimal.Decimal
}

// Summary is the view of a cart that promotion rules are evaluated against.
type Summary struct {
	Subtotal  decimal.Decimal
	ItemCount int
	Lines     []Line
}

// Summarize builds a Summary from cart items.
func Summarize(items []cart.Item) Summary {
	s := Summary{
		Subtotal:  cart.Subtotal(items),
		ItemCount: cart.Count(items),
		Lines:     make([]Line, len(items)),
	}
	for i, item := range items {
		s.Lines[i] = Line{Product: item.Name, Amount: item.Amount()}
	}
	return s
}

// Result is the outcome of Evaluate. Discount is zero unless Applicable.
type Result struct {
	Applicable bool
	Reason     string
	Discount   decimal.Decimal
}

func notApplicable(reason string) Result {
	return Result{Reason: reason, Discount: decimal.Zero}
}

// Evaluate decides whether p applies to the cart on the given day and, if so,
// computes the discount. Checks run in a fixed order and the first failing
// one is reported. Evaluate has no side effects and never reads the clock.
func Evaluate(p *Promotion, s Summary, on time.Time) Result {
	if !p.Active {
		return notApplicable(ReasonInactive)
	}

	day := dateOf(on)
	if p.StartDate != nil && day.Before(dateOf(*p.StartDate)) {
		return notApplicable(ReasonNotStarted)
	}
	if p.EndDate != nil && day.After(dateOf(*p.EndDate)) {
		return notApplicable(ReasonExpired)
	}

	if s.Subtotal.LessThan(p.MinAmount) {
		return notApplicable(ReasonMinAmount)
	}
	if s.ItemCount < p.MinQuantity {
		return notApplicable(ReasonMinQuantity)
	}

	base := s.Subtotal
	if len(p.ApplicableProducts) > 0 {
		applicable := productSet(p.ApplicableProducts)
		matched := decimal.Zero
		found := false
		for _, line := range s.Lines {
			if _, ok := applicable[productKey(line.Product)]; ok {
				matched = matched.Add(line.Amount)
				found = true
			}
		}
		if !found {
			return notApplicable(ReasonNoApplicableItems)
		}
		if p.Kind == KindProduct {
			base = matched
		}
	}

	return Result{
		Applicable: true,
		Discount:   discount(p, base, s.Subtotal),
	}
}

func discount(p *Promotion, base, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch p.DiscountType {
	case DiscountFixed:
		amount = decimal.Min(p.Value, base)
	default:
		amount = base.Mul(p.Value).Div(hundred)
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(amount.Round(2), subtotal)
}

func productSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[productKey(name)] = struct{}{}
	}
	return set
}

// productKey folds case and inner whitespace so "Lomo  Saltado" matches "lomo saltado".
func productKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// dateOf truncates t to its calendar day in t's own location.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
