package order

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sanisidro/sanisidro-api/internal/domain/cart"
	"github.com/sanisidro/sanisidro-api/internal/domain/promotion"
)

// MaxDetailsLength bounds the encoded cart stored with an order, in characters.
const MaxDetailsLength = 2000

// CreateOrderRequest holds the input for creating an order.
type CreateOrderRequest struct {
	Customer      Customer
	PaymentMethod string
	// InvoiceNumber is generated when empty.
	InvoiceNumber string
	Items         []cart.Item
	PromoCode     string
}

// Service encapsulates order creation, status changes and queries.
type Service struct {
	orders     Repository
	promotions promotion.Finder
	tx         Transactor
	events     Publisher
	loc        *time.Location
	now        func() time.Time
}

// NewService creates an order Service. Promotion eligibility days and invoice
// numbers are computed in loc.
func NewService(
	orders Repository,
	promotions promotion.Finder,
	tx Transactor,
	events Publisher,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		orders:     orders,
		promotions: promotions,
		tx:         tx,
		events:     events,
		loc:        loc,
		now:        time.Now,
	}
}

// CreateOrder checks the customer name and cart, applies the promotion named
// by PromoCode, and persists a pending order. Nothing is written when any
// check fails.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if strings.TrimSpace(req.Customer.Name) == "" {
		return nil, ErrMissingCustomer
	}
	if err := cart.Validate(req.Items); err != nil {
		return nil, err
	}
	details := cart.Encode(req.Items)
	if utf8.RuneCountInString(details) > MaxDetailsLength {
		return nil, errors.Wrapf(cart.ErrInvalidCart, "encoded cart exceeds %d characters", MaxDetailsLength)
	}

	now := s.now().In(s.loc)
	subtotal := cart.Subtotal(req.Items)

	discount := decimal.Zero
	code := promotion.NormalizeCode(req.PromoCode)
	if code != "" {
		p, err := s.promotions.FindByCode(ctx, code)
		if err != nil {
			if errors.Is(err, promotion.ErrNotFound) {
				return nil, errors.Wrap(ErrUnknownPromotion, code)
			}
			return nil, errors.Wrap(err, "resolve promotion")
		}

		res := promotion.Evaluate(p, promotion.Summarize(req.Items), now)
		if !res.Applicable {
			return nil, &PromotionNotEligibleError{Code: code, Reason: res.Reason}
		}
		discount = res.Discount
	}

	invoice := strings.TrimSpace(req.InvoiceNumber)
	if invoice == "" {
		invoice = NewInvoiceNumber(now)
	}

	o := &Order{
		ID:            uuid.New().String(),
		InvoiceNumber: invoice,
		Customer:      req.Customer,
		PaymentMethod: req.PaymentMethod,
		Subtotal:      subtotal,
		Discount:      discount,
		PromoCode:     code,
		Total:         subtotal.Sub(discount),
		Status:        StatusPending,
		Details:       details,
		Items:         req.Items,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.publish(ctx, Event{
		Type:       EventCreated,
		OrderID:    o.ID,
		Invoice:    o.InvoiceNumber,
		Status:     o.Status,
		Total:      o.Total,
		OccurredAt: o.CreatedAt,
	})
	return o, nil
}

// UpdateOrderStatus moves an order to status. The read, the lifecycle check
// and the write happen in one transaction with the row locked, so two
// concurrent requests cannot both apply a transition from the same state.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status Status) (*Order, error) {
	var (
		o    *Order
		prev Status
	)
	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := Transition(current.Status, status)
		if err != nil {
			return err
		}
		updatedAt, err := s.orders.UpdateStatus(ctx, id, next)
		if err != nil {
			return errors.Wrap(err, "update status")
		}

		prev = current.Status
		current.Status = next
		current.UpdatedAt = updatedAt
		o = current
		return nil
	}); err != nil {
		return nil, err
	}

	s.decodeItems(ctx, o)
	s.publish(ctx, Event{
		Type:       EventStatusChanged,
		OrderID:    o.ID,
		Invoice:    o.InvoiceNumber,
		Status:     o.Status,
		PrevStatus: prev,
		Total:      o.Total,
		OccurredAt: o.UpdatedAt,
	})
	return o, nil
}

// GetOrder returns the order with the given id.
func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.decodeItems(ctx, o)
	return o, nil
}

// ListOrders returns orders matching f, newest first. Orders whose stored
// cart cannot be decoded are still returned, with empty Items and CartErr set.
func (s *Service) ListOrders(ctx context.Context, f Filter) ([]Order, error) {
	f.Email = strings.TrimSpace(f.Email)
	orders, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	for i := range orders {
		s.decodeItems(ctx, &orders[i])
	}
	return orders, nil
}

// DeleteOrder removes the order with the given id.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	return s.orders.Delete(ctx, id)
}

func (s *Service) decodeItems(ctx context.Context, o *Order) {
	items, err := cart.Decode(o.Details)
	o.Items, o.CartErr = items, err
	if err != nil {
		zctx.From(ctx).Warn("Stored cart is malformed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}

func (s *Service) publish(ctx context.Context, e Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		zctx.From(ctx).Warn("Publish order event",
			zap.String("type", string(e.Type)),
			zap.String("order_id", e.OrderID),
			zap.Error(err),
		)
	}
}
