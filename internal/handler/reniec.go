package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/sanisidro/sanisidro-api/internal/domain/identity"
)

type personResponse struct {
	FirstName      string `json:"first_name"`
	FirstLastName  string `json:"first_last_name"`
	SecondLastName string `json:"second_last_name"`
	DocumentNumber string `json:"document_number"`
	FullName       string `json:"full_name"`
}

// LookupDNI handles GET /api/reniec/consulta/{dni}.
func (h *Handler) LookupDNI(w http.ResponseWriter, r *http.Request) {
	if h.identity == nil {
		WriteError(w, "dni lookup is not configured", http.StatusServiceUnavailable)
		return
	}

	p, err := h.identity.LookupDNI(r.Context(), chi.URLParam(r, "dni"))
	switch {
	case err == nil:
	case errors.Is(err, identity.ErrInvalidDocument), errors.Is(err, identity.ErrNotFound):
		h.writeDomainError(w, r, err)
		return
	default:
		zctx.From(r.Context()).Warn("DNI lookup failed", zap.Error(err))
		WriteError(w, "dni lookup failed", http.StatusBadGateway)
		return
	}

	WriteJSON(w, personResponse{
		FirstName:      p.FirstName,
		FirstLastName:  p.FirstLastName,
		SecondLastName: p.SecondLastName,
		DocumentNumber: p.DocumentNumber,
		FullName:       p.FullName,
	}, http.StatusOK)
}
