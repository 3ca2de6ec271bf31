// Package handler exposes the order, promotion and DNI lookup operations over
// HTTP.
package handler

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/metric"

	"github.com/sanisidro/sanisidro-api/internal/domain/cart"
	"github.com/sanisidro/sanisidro-api/internal/domain/identity"
	"github.com/sanisidro/sanisidro-api/internal/domain/order"
	"github.com/sanisidro/sanisidro-api/internal/domain/promotion"
)

// OrderService is the order use-case surface the handlers need.
type OrderService interface {
	CreateOrder(ctx context.Context, req order.CreateOrderRequest) (*order.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status order.Status) (*order.Order, error)
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	ListOrders(ctx context.Context, f order.Filter) ([]order.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

// PromotionService is the promotion use-case surface the handlers need.
type PromotionService interface {
	Create(ctx context.Context, p *promotion.Promotion) error
	Update(ctx context.Context, id string, p *promotion.Promotion) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*promotion.Promotion, error)
	GetByCode(ctx context.Context, code string) (*promotion.Promotion, error)
	List(ctx context.Context, f promotion.Filter) ([]promotion.Promotion, error)
	Check(ctx context.Context, code string, items []cart.Item) (*promotion.Promotion, promotion.Result, error)
}

// Handler serves the /api routes.
type Handler struct {
	orders     OrderService
	promotions PromotionService
	// identity is nil when DNI lookups are disabled.
	identity identity.Lookup
	validate *validator.Validate

	ordersCreated      metric.Int64Counter
	promotionsRejected metric.Int64Counter
}

// New returns a Handler. A nil lookup disables the DNI endpoint.
func New(orders OrderService, promotions PromotionService, lookup identity.Lookup, meter metric.Meter) (*Handler, error) {
	ordersCreated, err := meter.Int64Counter("sanisidro.orders.created",
		metric.WithDescription("Orders persisted"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders counter")
	}
	promotionsRejected, err := meter.Int64Counter("sanisidro.promotions.rejected",
		metric.WithDescription("Promotion codes rejected at checkout or validation"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "promotions counter")
	}

	return &Handler{
		orders:             orders,
		promotions:         promotions,
		identity:           lookup,
		validate:           validator.New(validator.WithRequiredStructEnabled()),
		ordersCreated:      ordersCreated,
		promotionsRejected: promotionsRejected,
	}, nil
}

// Init registers the API routes on r.
func (h *Handler) Init(r chi.Router) {
	r.Route("/api/pedidos", func(r chi.Router) {
		r.Get("/", h.ListOrders)
		r.Post("/", h.CreateOrder)
		r.Get("/usuario/{email}", h.ListOrdersByEmail)
		r.Get("/estado/{estado}", h.ListOrdersByStatus)
		r.Get("/{id}", h.GetOrder)
		r.Put("/{id}/estado", h.UpdateOrderStatus)
		r.Delete("/{id}", h.DeleteOrder)
	})
	r.Route("/api/promociones", func(r chi.Router) {
		r.Get("/", h.ListPromotions)
		r.Post("/", h.CreatePromotion)
		r.Post("/validar", h.ValidatePromotion)
		r.Get("/codigo/{codigo}", h.GetPromotionByCode)
		r.Get("/{id}", h.GetPromotion)
		r.Put("/{id}", h.UpdatePromotion)
		r.Delete("/{id}", h.DeletePromotion)
	})
	r.Get("/api/reniec/consulta/{dni}", h.LookupDNI)
}
