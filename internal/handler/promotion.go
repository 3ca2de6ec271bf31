package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/sanisidro/sanisidro-api/internal/domain/cart"
	"github.com/sanisidro/sanisidro-api/internal/domain/promotion"
)

const dateLayout = "2006-01-02"

// Date is a calendar day encoded as YYYY-MM-DD. A longer timestamp is
// accepted on input and truncated to its date part.
type Date struct{ time.Time }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.Wrap(err, "date must be a string")
	}
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return errors.Wrap(err, "parse date")
	}
	d.Time = t
	return nil
}

func datePtr(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func dateFrom(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	return &Date{*t}
}

// ProductList decodes from a JSON array or a comma-separated string.
type ProductList []string

func (p *ProductList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*p = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "products must be an array or a string")
	}
	*p = nil
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			*p = append(*p, name)
		}
	}
	return nil
}

type promotionRequest struct {
	Codigo              string      `json:"codigo" validate:"required,max=64"`
	Titulo              string      `json:"titulo" validate:"max=200"`
	Descripcion         string      `json:"descripcion" validate:"max=1000"`
	Imagen              string      `json:"imagen" validate:"max=500"`
	TipoPromocion       string      `json:"tipoPromocion" validate:"omitempty,oneof=general producto"`
	TipoDescuento       string      `json:"tipoDescuento" validate:"omitempty,oneof=percentage fixed"`
	Descuento           Money       `json:"descuento"`
	ProductosAplicables ProductList `json:"productosAplicables" validate:"max=100,dive,max=200"`
	MontoMinimo         Money       `json:"montoMinimo"`
	CantidadMinima      int         `json:"cantidadMinima" validate:"gte=0"`
	FechaInicio         *Date       `json:"fechaInicio"`
	FechaFin            *Date       `json:"fechaFin"`
	Activa              *bool       `json:"activa"`
}

func (req promotionRequest) toDomain() *promotion.Promotion {
	active := true
	if req.Activa != nil {
		active = *req.Activa
	}
	return &promotion.Promotion{
		Code:               req.Codigo,
		Title:              req.Titulo,
		Description:        req.Descripcion,
		Image:              req.Imagen,
		Kind:               promotion.Kind(req.TipoPromocion),
		DiscountType:       promotion.DiscountType(req.TipoDescuento),
		Value:              req.Descuento.Decimal(),
		ApplicableProducts: req.ProductosAplicables,
		MinAmount:          req.MontoMinimo.Decimal(),
		MinQuantity:        req.CantidadMinima,
		StartDate:          datePtr(req.FechaInicio),
		EndDate:            datePtr(req.FechaFin),
		Active:             active,
	}
}

type promotionResponse struct {
	ID                  string    `json:"id"`
	Codigo              string    `json:"codigo"`
	Titulo              string    `json:"titulo"`
	Descripcion         string    `json:"descripcion"`
	Imagen              string    `json:"imagen"`
	TipoPromocion       string    `json:"tipoPromocion"`
	TipoDescuento       string    `json:"tipoDescuento"`
	Descuento           Money     `json:"descuento"`
	ProductosAplicables []string  `json:"productosAplicables"`
	MontoMinimo         Money     `json:"montoMinimo"`
	CantidadMinima      int       `json:"cantidadMinima"`
	FechaInicio         *Date     `json:"fechaInicio"`
	FechaFin            *Date     `json:"fechaFin"`
	Activa              bool      `json:"activa"`
	FechaCreacion       time.Time `json:"fechaCreacion"`
	FechaModificacion   time.Time `json:"fechaModificacion"`
}

func toPromotionResponse(p *promotion.Promotion) promotionResponse {
	products := p.ApplicableProducts
	if products == nil {
		products = []string{}
	}
	return promotionResponse{
		ID:                  p.ID,
		Codigo:              p.Code,
		Titulo:              p.Title,
		Descripcion:         p.Description,
		Imagen:              p.Image,
		TipoPromocion:       string(p.Kind),
		TipoDescuento:       string(p.DiscountType),
		Descuento:           Money(p.Value),
		ProductosAplicables: products,
		MontoMinimo:         Money(p.MinAmount),
		CantidadMinima:      p.MinQuantity,
		FechaInicio:         dateFrom(p.StartDate),
		FechaFin:            dateFrom(p.EndDate),
		Activa:              p.Active,
		FechaCreacion:       p.CreatedAt,
		FechaModificacion:   p.UpdatedAt,
	}
}

// ListPromotions handles GET /api/promociones. ?activas=true lists only
// active promotions.
func (h *Handler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("activas"))
	promos, err := h.promotions.List(r.Context(), promotion.Filter{ActiveOnly: activeOnly})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]promotionResponse, len(promos))
	for i := range promos {
		out[i] = toPromotionResponse(&promos[i])
	}
	WriteJSON(w, out, http.StatusOK)
}

// GetPromotion handles GET /api/promociones/{id}.
func (h *Handler) GetPromotion(w http.ResponseWriter, r *http.Request) {
	p, err := h.promotions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, toPromotionResponse(p), http.StatusOK)
}

// GetPromotionByCode handles GET /api/promociones/codigo/{codigo}.
func (h *Handler) GetPromotionByCode(w http.ResponseWriter, r *http.Request) {
	p, err := h.promotions.GetByCode(r.Context(), chi.URLParam(r, "codigo"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, toPromotionResponse(p), http.StatusOK)
}

// CreatePromotion handles POST /api/promociones.
func (h *Handler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	var req promotionRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	p := req.toDomain()
	if err := h.promotions.Create(r.Context(), p); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, toPromotionResponse(p), http.StatusCreated)
}

// UpdatePromotion handles PUT /api/promociones/{id}.
func (h *Handler) UpdatePromotion(w http.ResponseWriter, r *http.Request) {
	var req promotionRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	p := req.toDomain()
	if err := h.promotions.Update(r.Context(), chi.URLParam(r, "id"), p); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, toPromotionResponse(p), http.StatusOK)
}

// DeletePromotion handles DELETE /api/promociones/{id}.
func (h *Handler) DeletePromotion(w http.ResponseWriter, r *http.Request) {
	if err := h.promotions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type validateRequest struct {
	Codigo string    `json:"codigo" validate:"required,max=64"`
	Items  []itemDTO `json:"items"`
}

type validateResponse struct {
	Codigo    string `json:"codigo"`
	Aplicable bool   `json:"aplicable"`
	Motivo    string `json:"motivo,omitempty"`
	Subtotal  Money  `json:"subtotal"`
	Descuento Money  `json:"descuento"`
	Total     Money  `json:"total"`
}

// ValidatePromotion handles POST /api/promociones/validar. It previews the
// discount a code would give the cart without creating an order.
func (h *Handler) ValidatePromotion(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	items := itemsFromDTO(req.Items)
	p, res, err := h.promotions.Check(r.Context(), req.Codigo, items)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if !res.Applicable {
		h.promotionsRejected.Add(r.Context(), 1)
	}

	subtotal := cart.Subtotal(items)
	WriteJSON(w, validateResponse{
		Codigo:    p.Code,
		Aplicable: res.Applicable,
		Motivo:    res.Reason,
		Subtotal:  Money(subtotal),
		Descuento: Money(res.Discount),
		Total:     Money(subtotal.Sub(res.Discount)),
	}, http.StatusOK)
}
