//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestPromotionCRUD(t *testing.T) {
	code := uniqueCode("verano")

	resp := doPost(t, "/api/promociones", promotionRequest{
		Codigo:    code,
		Titulo:    "Verano",
		Descuento: 20,
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusCreated)
	created := decodeJSON[promotionResponse](t, resp)

	if created.TipoPromocion != "general" || created.TipoDescuento != "percentage" || !created.Activa {
		t.Errorf("defaults not applied: %+v", created)
	}

	dup := doPost(t, "/api/promociones", promotionRequest{Codigo: code, Descuento: 5})
	defer dup.Body.Close()
	expectStatus(t, dup, http.StatusConflict)

	inactive := false
	upd := doPut(t, "/api/promociones/"+created.ID, promotionRequest{
		Codigo:        created.Codigo,
		TipoDescuento: "fixed",
		Descuento:     7,
		Activa:        &inactive,
	})
	defer upd.Body.Close()
	expectStatus(t, upd, http.StatusOK)

	// An inactive code is known but not eligible.
	rejected := doPost(t, "/api/pedidos", orderRequest{
		NombreCliente: "Ana",
		CodigoPromo:   created.Codigo,
		Items:         []item{{Nombre: "Ceviche", Cantidad: 1, Precio: 25}},
	})
	defer rejected.Body.Close()
	expectStatus(t, rejected, http.StatusUnprocessableEntity)
	if body := decodeJSON[errorResponse](t, rejected); body.Reason != "promotion inactive" {
		t.Errorf("reason: got %q, want promotion inactive", body.Reason)
	}

	del := do(t, http.MethodDelete, "/api/promociones/"+created.ID, nil)
	defer del.Body.Close()
	expectStatus(t, del, http.StatusNoContent)

	gone := doGet(t, "/api/promociones/codigo/"+created.Codigo)
	defer gone.Body.Close()
	expectStatus(t, gone, http.StatusNotFound)
}

func TestCreatePromotion_Invalid(t *testing.T) {
	resp := doPost(t, "/api/promociones", promotionRequest{Codigo: uniqueCode("mal"), Descuento: 150})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestPromotionWindow(t *testing.T) {
	resp := doPost(t, "/api/promociones", promotionRequest{
		Codigo:      uniqueCode("pasada"),
		Descuento:   10,
		FechaInicio: "2020-01-01",
		FechaFin:    "2020-01-31",
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusCreated)
	p := decodeJSON[promotionResponse](t, resp)

	check := doPost(t, "/api/promociones/validar", map[string]any{
		"codigo": p.Codigo,
		"items":  []item{{Nombre: "Ceviche", Cantidad: 1, Precio: 25}},
	})
	defer check.Body.Close()
	expectStatus(t, check, http.StatusOK)

	res := decodeJSON[validateResponse](t, check)
	if res.Aplicable || res.Motivo != "promotion expired" || res.Total != 25 {
		t.Errorf("got %+v, want expired and total 25", res)
	}
}

func TestValidatePromotion(t *testing.T) {
	resp := doPost(t, "/api/promociones/validar", map[string]any{
		"codigo": "PROMO10",
		"items":  []item{{Nombre: "Ceviche", Cantidad: 4, Precio: 25}},
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	res := decodeJSON[validateResponse](t, resp)
	if !res.Aplicable || res.Subtotal != 100 || res.Descuento != 10 || res.Total != 90 {
		t.Errorf("got %+v, want applicable 100/10/90", res)
	}
}

func TestValidatePromotion_UnknownCode(t *testing.T) {
	resp := doPost(t, "/api/promociones/validar", map[string]any{
		"codigo": "NOEXISTE",
		"items":  []item{{Nombre: "Ceviche", Cantidad: 1, Precio: 25}},
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusNotFound)
}

func TestListPromotions_ActiveOnly(t *testing.T) {
	resp := doGet(t, "/api/promociones?activas=true")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	promos := decodeJSON[[]promotionResponse](t, resp)
	seeded := 0
	for _, p := range promos {
		if !p.Activa {
			t.Errorf("inactive promotion %s listed", p.Codigo)
		}
		switch p.Codigo {
		case "PROMO10", "CEVICHE15", "BIENVENIDA5":
			seeded++
		}
	}
	if seeded != 3 {
		t.Errorf("expected 3 seeded promotions, got %d", seeded)
	}
}

func TestLookupDNI_Disabled(t *testing.T) {
	resp := doGet(t, "/api/reniec/consulta/12345678")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusServiceUnavailable)
}
