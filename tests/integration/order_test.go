//go:build integration

package integration

import (
	"net/http"
	"net/url"
	"regexp"
	"testing"
)

var invoicePattern = regexp.MustCompile(`^\d{8}-\d{6}-[0-9A-F]{4}$`)

func createOrder(t *testing.T, req orderRequest) orderResponse {
	t.Helper()
	resp := doPost(t, "/api/pedidos", req)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusCreated)
	return decodeJSON[orderResponse](t, resp)
}

func TestCreateOrder_NoPromotion(t *testing.T) {
	o := createOrder(t, orderRequest{
		NombreCliente: "Rosa Quispe",
		Email:         "rosa@example.com",
		MetodoPago:    "efectivo",
		Items:         []item{{Nombre: "Ceviche", Cantidad: 2, Precio: 25}},
	})

	if o.Subtotal != 50 || o.Descuento != 0 || o.Total != 50 {
		t.Errorf("amounts: got %v/%v/%v, want 50/0/50", o.Subtotal, o.Descuento, o.Total)
	}
	if o.Estado != "pending" {
		t.Errorf("estado: got %q, want pending", o.Estado)
	}
	if !invoicePattern.MatchString(o.NumeroFactura) {
		t.Errorf("numeroFactura %q does not match %s", o.NumeroFactura, invoicePattern)
	}
	if len(o.Items) != 1 || o.Items[0].Nombre != "Ceviche" {
		t.Errorf("items: got %+v", o.Items)
	}
}

func TestCreateOrder_WithPromotion(t *testing.T) {
	o := createOrder(t, orderRequest{
		NombreCliente: "Luis",
		CodigoPromo:   "promo10",
		Items: []item{
			{Nombre: "Lomo saltado", Cantidad: 2, Precio: 35},
			{Nombre: "Chicha morada", Cantidad: 3, Precio: 10},
		},
	})

	if o.Subtotal != 100 || o.Descuento != 10 || o.Total != 90 {
		t.Errorf("amounts: got %v/%v/%v, want 100/10/90", o.Subtotal, o.Descuento, o.Total)
	}
	if o.CodigoPromo != "PROMO10" {
		t.Errorf("codigoPromo: got %q, want PROMO10", o.CodigoPromo)
	}
}

func TestCreateOrder_ProductPromotion(t *testing.T) {
	o := createOrder(t, orderRequest{
		NombreCliente: "Carmen",
		CodigoPromo:   "CEVICHE15",
		Items: []item{
			{Nombre: "ceviche", Cantidad: 1, Precio: 30},
			{Nombre: "Inca Kola", Cantidad: 1, Precio: 10},
		},
	})

	// Only the ceviche line is discounted.
	if o.Descuento != 4.5 || o.Total != 35.5 {
		t.Errorf("amounts: got discount %v total %v, want 4.5/35.5", o.Descuento, o.Total)
	}
}

func TestCreateOrder_FromDetails(t *testing.T) {
	o := createOrder(t, orderRequest{
		NombreCliente: "Ana",
		Detalles:      `[{"nombre":"Anticuchos","cantidad":2,"precio":"12.50"}]`,
	})

	if o.Total != 25 {
		t.Errorf("total: got %v, want 25", o.Total)
	}
}

func TestCreateOrder_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		req        orderRequest
		wantStatus int
		wantReason string
	}{
		{
			name:       "empty cart",
			req:        orderRequest{NombreCliente: "Ana"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing customer",
			req:        orderRequest{Items: []item{{Nombre: "Ceviche", Cantidad: 1, Precio: 25}}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "zero quantity",
			req:        orderRequest{NombreCliente: "Ana", Items: []item{{Nombre: "Ceviche", Cantidad: 0, Precio: 25}}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown promotion",
			req:        orderRequest{NombreCliente: "Ana", CodigoPromo: "NOEXISTE", Items: []item{{Nombre: "Ceviche", Cantidad: 1, Precio: 25}}},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "below minimum amount",
			req:        orderRequest{NombreCliente: "Ana", CodigoPromo: "PROMO10", Items: []item{{Nombre: "Ceviche", Cantidad: 1, Precio: 25}}},
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: "minAmount not met",
		},
		{
			name:       "below minimum quantity",
			req:        orderRequest{NombreCliente: "Ana", CodigoPromo: "BIENVENIDA5", Items: []item{{Nombre: "Ceviche", Cantidad: 1, Precio: 25}}},
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: "minQuantity not met",
		},
		{
			name:       "no applicable product",
			req:        orderRequest{NombreCliente: "Ana", CodigoPromo: "CEVICHE15", Items: []item{{Nombre: "Arroz chaufa", Cantidad: 1, Precio: 25}}},
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: "no applicable products",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doPost(t, "/api/pedidos", tt.req)
			defer resp.Body.Close()
			expectStatus(t, resp, tt.wantStatus)

			body := decodeJSON[errorResponse](t, resp)
			if tt.wantReason != "" && body.Reason != tt.wantReason {
				t.Errorf("reason: got %q, want %q", body.Reason, tt.wantReason)
			}
		})
	}
}

func TestOrderLifecycle(t *testing.T) {
	o := createOrder(t, orderRequest{NombreCliente: "Ana", Items: []item{{Nombre: "Ceviche", Cantidad: 1, Precio: 25}}})

	for _, status := range []string{"confirmado", "preparing", "LISTO", "delivered"} {
		resp := doPut(t, "/api/pedidos/"+o.ID+"/estado", map[string]string{"estado": status})
		expectStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	}

	resp := doPut(t, "/api/pedidos/"+o.ID+"/estado", map[string]string{"estado": "cancelled"})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusConflict)

	got := doGet(t, "/api/pedidos/"+o.ID)
	defer got.Body.Close()
	expectStatus(t, got, http.StatusOK)
	if final := decodeJSON[orderResponse](t, got); final.Estado != "delivered" {
		t.Errorf("estado: got %q, want delivered", final.Estado)
	}
}

func TestOrderLifecycle_SkipRejected(t *testing.T) {
	o := createOrder(t, orderRequest{NombreCliente: "Ana", Items: []item{{Nombre: "Ceviche", Cantidad: 1, Precio: 25}}})

	resp := doPut(t, "/api/pedidos/"+o.ID+"/estado", map[string]string{"estado": "ready"})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusConflict)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	resp := doPut(t, "/api/pedidos/00000000-0000-0000-0000-000000000000/estado", map[string]string{"estado": "confirmed"})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusNotFound)
}

func TestListOrders_ByEmailAndStatus(t *testing.T) {
	email := uniqueCode("cliente") + "@example.com"
	first := createOrder(t, orderRequest{NombreCliente: "Ana", Email: email, Items: []item{{Nombre: "Ceviche", Cantidad: 1, Precio: 25}}})
	second := createOrder(t, orderRequest{NombreCliente: "Ana", Email: email, Items: []item{{Nombre: "Causa", Cantidad: 1, Precio: 18}}})

	resp := doGet(t, "/api/pedidos/usuario/"+url.PathEscape(email))
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	orders := decodeJSON[[]orderResponse](t, resp)
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].ID != second.ID || orders[1].ID != first.ID {
		t.Errorf("expected newest first, got %s, %s", orders[0].ID, orders[1].ID)
	}

	cancel := doPut(t, "/api/pedidos/"+first.ID+"/estado", map[string]string{"estado": "cancelado"})
	expectStatus(t, cancel, http.StatusOK)
	cancel.Body.Close()

	byStatus := doGet(t, "/api/pedidos/estado/cancelled")
	defer byStatus.Body.Close()
	expectStatus(t, byStatus, http.StatusOK)

	found := false
	for _, o := range decodeJSON[[]orderResponse](t, byStatus) {
		if o.Estado != "cancelled" {
			t.Errorf("order %s has estado %q", o.ID, o.Estado)
		}
		found = found || o.ID == first.ID
	}
	if !found {
		t.Errorf("cancelled order %s not listed", first.ID)
	}
}

func TestListOrders_UnknownStatus(t *testing.T) {
	resp := doGet(t, "/api/pedidos/estado/enviado")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)
}
