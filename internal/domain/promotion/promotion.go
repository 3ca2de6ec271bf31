// Package promotion defines coded discount rules and evaluates them against carts.
package promotion

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind selects which part of the cart a promotion discounts.
type Kind string

const (
	// KindGeneral discounts the whole cart subtotal.
	KindGeneral Kind = "general"
	// KindProduct discounts only the lines whose product is applicable.
	KindProduct Kind = "producto"
)

// DiscountType fixes how Value is interpreted.
type DiscountType string

const (
	// DiscountPercentage takes Value percent of the discounted base.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed subtracts Value, capped at the discounted base.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when no promotion matches the lookup.
	ErrNotFound = errors.New("promotion not found")
	// ErrDuplicateCode is returned when a promotion code is already taken.
	ErrDuplicateCode = errors.New("promotion code already exists")
	// ErrInvalidPromotion is returned when a promotion definition breaks its invariants.
	ErrInvalidPromotion = errors.New("invalid promotion")
)

var hundred = decimal.NewFromInt(100)

// Promotion is a coded discount rule with an eligibility window and thresholds.
type Promotion struct {
	ID                 string
	Code               string
	Title              string
	Description        string
	Image              string
	Kind               Kind
	DiscountType       DiscountType
	Value              decimal.Decimal
	ApplicableProducts []string
	MinAmount          decimal.Decimal
	MinQuantity        int
	StartDate          *time.Time
	EndDate            *time.Time
	Active             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Filter narrows a promotion listing.
type Filter struct {
	ActiveOnly bool
}

// Repository provides persistence of promotions.
type Repository interface {
	Create(ctx context.Context, p *Promotion) error
	Update(ctx context.Context, p *Promotion) error
	Upsert(ctx context.Context, p *Promotion) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Promotion, error)
	FindByCode(ctx context.Context, code string) (*Promotion, error)
	List(ctx context.Context, f Filter) ([]Promotion, error)
}

// Finder resolves a promotion by its code.
type Finder interface {
	FindByCode(ctx context.Context, code string) (*Promotion, error)
}

// NormalizeCode returns the canonical, upper-cased form of a promotion code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Normalize fills defaults and canonicalizes the code and product names.
func (p *Promotion) Normalize() {
	p.Code = NormalizeCode(p.Code)
	if p.Kind == "" {
		p.Kind = KindGeneral
	}
	if p.DiscountType == "" {
		p.DiscountType = DiscountPercentage
	}
	products := p.ApplicableProducts[:0]
	for _, name := range p.ApplicableProducts {
		if name = strings.TrimSpace(name); name != "" {
			products = append(products, name)
		}
	}
	p.ApplicableProducts = products
}

// Validate checks the promotion's invariants.
func (p *Promotion) Validate() error {
	switch {
	case p.Code == "":
		return errors.Wrap(ErrInvalidPromotion, "code is required")
	case p.Kind != KindGeneral && p.Kind != KindProduct:
		return errors.Wrapf(ErrInvalidPromotion, "unsupported kind %q", p.Kind)
	case p.DiscountType != DiscountPercentage && p.DiscountType != DiscountFixed:
		return errors.Wrapf(ErrInvalidPromotion, "unsupported discount type %q", p.DiscountType)
	case p.Value.IsNegative():
		return errors.Wrap(ErrInvalidPromotion, "discount value must not be negative")
	case p.DiscountType == DiscountPercentage && p.Value.GreaterThan(hundred):
		return errors.Wrap(ErrInvalidPromotion, "percentage must not exceed 100")
	case p.MinAmount.IsNegative():
		return errors.Wrap(ErrInvalidPromotion, "minimum amount must not be negative")
	case p.MinQuantity < 0:
		return errors.Wrap(ErrInvalidPromotion, "minimum quantity must not be negative")
	case p.StartDate != nil && p.EndDate != nil && dateOf(*p.StartDate).After(dateOf(*p.EndDate)):
		return errors.Wrap(ErrInvalidPromotion, "start date is after end date")
	}
	return nil
}
