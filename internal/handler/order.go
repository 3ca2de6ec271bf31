package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/sanisidro/sanisidro-api/internal/domain/cart"
	"github.com/sanisidro/sanisidro-api/internal/domain/order"
)

type itemDTO struct {
	Nombre   string `json:"nombre"`
	Cantidad int    `json:"cantidad"`
	Precio   Money  `json:"precio"`
}

func itemsFromDTO(in []itemDTO) []cart.Item {
	items := make([]cart.Item, len(in))
	for i, it := range in {
		items[i] = cart.Item{Name: it.Nombre, Quantity: it.Cantidad, Price: it.Precio.Decimal()}
	}
	return items
}

func itemsToDTO(in []cart.Item) []itemDTO {
	out := make([]itemDTO, len(in))
	for i, it := range in {
		out[i] = itemDTO{Nombre: it.Name, Cantidad: it.Quantity, Precio: Money(it.Price)}
	}
	return out
}

type createOrderRequest struct {
	NombreCliente string `json:"nombreCliente" validate:"max=200"`
	// Cliente is the older name field, used when NombreCliente is empty.
	Cliente       string    `json:"cliente" validate:"max=200"`
	Email         string    `json:"email" validate:"omitempty,email,max=254"`
	Telefono      string    `json:"telefono" validate:"max=30"`
	MetodoPago    string    `json:"metodoPago" validate:"max=50"`
	NumeroFactura string    `json:"numeroFactura" validate:"max=64"`
	CodigoPromo   string    `json:"codigoPromo" validate:"max=64"`
	Items         []itemDTO `json:"items"`
	// Detalles is an already encoded cart, accepted when Items is empty.
	Detalles string `json:"detalles"`
}

func (req createOrderRequest) items() ([]cart.Item, error) {
	if len(req.Items) > 0 || strings.TrimSpace(req.Detalles) == "" {
		return itemsFromDTO(req.Items), nil
	}
	items, err := cart.Decode(req.Detalles)
	if err != nil {
		return nil, errors.Wrap(cart.ErrInvalidCart, err.Error())
	}
	return items, nil
}

type orderResponse struct {
	ID                string    `json:"id"`
	NumeroFactura     string    `json:"numeroFactura"`
	NombreCliente     string    `json:"nombreCliente"`
	Email             string    `json:"email"`
	Telefono          string    `json:"telefono"`
	MetodoPago        string    `json:"metodoPago"`
	Subtotal          Money     `json:"subtotal"`
	Descuento         Money     `json:"descuento"`
	CodigoPromo       string    `json:"codigoPromo,omitempty"`
	Total             Money     `json:"total"`
	Estado            string    `json:"estado"`
	Detalles          string    `json:"detalles"`
	Items             []itemDTO `json:"items"`
	ErrorDetalles     string    `json:"errorDetalles,omitempty"`
	FechaCreacion     time.Time `json:"fechaCreacion"`
	FechaModificacion time.Time `json:"fechaModificacion"`
}

func toOrderResponse(o *order.Order) orderResponse {
	res := orderResponse{
		ID:                o.ID,
		NumeroFactura:     o.InvoiceNumber,
		NombreCliente:     o.Customer.Name,
		Email:             o.Customer.Email,
		Telefono:          o.Customer.Phone,
		MetodoPago:        o.PaymentMethod,
		Subtotal:          Money(o.Subtotal),
		Descuento:         Money(o.Discount),
		CodigoPromo:       o.PromoCode,
		Total:             Money(o.Total),
		Estado:            string(o.Status),
		Detalles:          o.Details,
		Items:             itemsToDTO(o.Items),
		FechaCreacion:     o.CreatedAt,
		FechaModificacion: o.UpdatedAt,
	}
	if o.CartErr != nil {
		res.ErrorDetalles = o.CartErr.Error()
	}
	return res
}

func toOrderResponses(orders []order.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	return out
}

// CreateOrder handles POST /api/pedidos.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	items, err := req.items()
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	name := req.NombreCliente
	if name == "" {
		name = req.Cliente
	}
	o, err := h.orders.CreateOrder(r.Context(), order.CreateOrderRequest{
		Customer: order.Customer{
			Name:  strings.TrimSpace(name),
			Email: strings.TrimSpace(req.Email),
			Phone: strings.TrimSpace(req.Telefono),
		},
		PaymentMethod: strings.TrimSpace(req.MetodoPago),
		InvoiceNumber: req.NumeroFactura,
		Items:         items,
		PromoCode:     req.CodigoPromo,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.ordersCreated.Add(r.Context(), 1)
	WriteJSON(w, toOrderResponse(o), http.StatusCreated)
}

// GetOrder handles GET /api/pedidos/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, toOrderResponse(o), http.StatusOK)
}

// ListOrders handles GET /api/pedidos.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	h.listOrders(w, r, order.Filter{})
}

// ListOrdersByEmail handles GET /api/pedidos/usuario/{email}.
func (h *Handler) ListOrdersByEmail(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if err := h.validate.Var(email, "required,email"); err != nil {
		WriteValidationError(w, err)
		return
	}
	h.listOrders(w, r, order.Filter{Email: email})
}

// ListOrdersByStatus handles GET /api/pedidos/estado/{estado}.
func (h *Handler) ListOrdersByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := order.ParseStatus(chi.URLParam(r, "estado"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.listOrders(w, r, order.Filter{Status: status})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, f order.Filter) {
	orders, err := h.orders.ListOrders(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, toOrderResponses(orders), http.StatusOK)
}

type updateStatusRequest struct {
	Estado string `json:"estado" validate:"required"`
}

// UpdateOrderStatus handles PUT /api/pedidos/{id}/estado.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	status, err := order.ParseStatus(req.Estado)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	o, err := h.orders.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, toOrderResponse(o), http.StatusOK)
}

// DeleteOrder handles DELETE /api/pedidos/{id}.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
