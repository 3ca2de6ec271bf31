package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/sanisidro/sanisidro-api/internal/domain/cart"
)

var (
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateInvoice is returned when an invoice number is already taken.
	ErrDuplicateInvoice = errors.New("invoice number already exists")
	// ErrUnknownPromotion is returned when an order names a promotion code that does not exist.
	ErrUnknownPromotion = errors.New("unknown promotion code")
	// ErrMissingCustomer is returned when an order has no customer name.
	ErrMissingCustomer = errors.New("customer name is required")
	// ErrPromotionNotEligible is wrapped by PromotionNotEligibleError.
	ErrPromotionNotEligible = errors.New("promotion not eligible")
)

// PromotionNotEligibleError reports why a promotion cannot be applied to a cart.
type PromotionNotEligibleError struct {
	Code   string
	Reason string
}

func (e *PromotionNotEligibleError) Error() string {
	return fmt.Sprintf("promotion %s not eligible: %s", e.Code, e.Reason)
}

func (e *PromotionNotEligibleError) Unwrap() error {
	return ErrPromotionNotEligible
}

// Customer identifies who placed an order.
type Customer struct {
	Name  string
	Email string
	Phone string
}

// Order is a persisted customer order with its commercial outcome.
type Order struct {
	ID            string
	InvoiceNumber string
	Customer      Customer
	PaymentMethod string
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	PromoCode     string
	Total         decimal.Decimal
	Status        Status
	// Details is the encoded cart and the durable source of Items.
	Details   string
	Items     []cart.Item
	CartErr   error
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter selects orders for listing. Zero value lists everything;
// Email takes precedence over Status.
type Filter struct {
	Email  string
	Status Status
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create inserts o and fills its database-managed timestamps.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// GetForUpdate reads the order and locks it for the surrounding transaction.
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	// UpdateStatus sets the status and returns the new modification time.
	UpdateStatus(ctx context.Context, id string, status Status) (time.Time, error)
	List(ctx context.Context, f Filter) ([]Order, error)
	Delete(ctx context.Context, id string) error
}

// Transactor runs fn inside a single database transaction carried by ctx.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventType names an order event.
type EventType string

const (
	EventCreated       EventType = "order.created"
	EventStatusChanged EventType = "order.status_changed"
)

// Event is published after an order change has been committed.
type Event struct {
	Type       EventType
	OrderID    string
	Invoice    string
	Status     Status
	PrevStatus Status
	Total      decimal.Decimal
	OccurredAt time.Time
}

// Publisher delivers order events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
