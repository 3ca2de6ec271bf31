package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sanisidro/sanisidro-api/internal/domain/cart"
	"github.com/sanisidro/sanisidro-api/internal/domain/identity"
	"github.com/sanisidro/sanisidro-api/internal/domain/order"
	"github.com/sanisidro/sanisidro-api/internal/domain/promotion"
)

const maxBodyBytes = 1 << 20

// Money is a decimal that encodes as a bare JSON number and decodes from a
// number or a numeric string.
type Money decimal.Decimal

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*m = Money(decimal.Zero)
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return errors.Wrapf(err, "invalid amount %s", b)
	}
	*m = Money(d)
	return nil
}

func (m Money) Decimal() decimal.Decimal { return decimal.Decimal(m) }

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Message string `json:"message"`
	// Reason explains a rejected promotion.
	Reason string `json:"reason,omitempty"`
}

// ValidationErrorResponse lists the failing field rules of a request.
type ValidationErrorResponse struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

func WriteJSON(w http.ResponseWriter, payload any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, message string, code int) {
	WriteJSON(w, ErrorResponse{Message: message}, code)
}

func WriteValidationError(w http.ResponseWriter, err error) {
	res := ValidationErrorResponse{
		Message: "invalid request",
		Fields:  make(map[string]string),
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			res.Fields[fe.Field()] = fe.Tag()
		}
	}
	WriteJSON(w, res, http.StatusBadRequest)
}

// decodeBody reads a JSON body into v and validates it.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		WriteError(w, "malformed request body", http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		WriteValidationError(w, err)
		return false
	}
	return true
}

// writeDomainError maps a domain error to its HTTP status.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var notEligible *order.PromotionNotEligibleError
	switch {
	case errors.As(err, &notEligible):
		h.promotionsRejected.Add(r.Context(), 1)
		WriteJSON(w, ErrorResponse{Message: err.Error(), Reason: notEligible.Reason}, http.StatusUnprocessableEntity)
	case errors.Is(err, order.ErrUnknownPromotion):
		h.promotionsRejected.Add(r.Context(), 1)
		WriteError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, cart.ErrInvalidCart),
		errors.Is(err, order.ErrMissingCustomer),
		errors.Is(err, cart.ErrMalformed),
		errors.Is(err, order.ErrUnknownStatus),
		errors.Is(err, promotion.ErrInvalidPromotion),
		errors.Is(err, identity.ErrInvalidDocument):
		WriteError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, promotion.ErrNotFound),
		errors.Is(err, identity.ErrNotFound):
		WriteError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrDuplicateInvoice),
		errors.Is(err, promotion.ErrDuplicateCode):
		WriteError(w, err.Error(), http.StatusConflict)
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		WriteError(w, "internal server error", http.StatusInternalServerError)
	}
}
