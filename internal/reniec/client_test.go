package reniec

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/sanisidro/sanisidro-api/internal/domain/identity"
)

// --- Helpers ---

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := NewClient(Config{BaseURL: srv.URL + "/v1/reniec/dni", Token: "secret", Retries: 2}, noop.NewTracerProvider())
	c.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c
}

// --- Tests ---

func TestLookupDNI(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/reniec/dni", r.URL.Path)
		assert.Equal(t, "12345678", r.URL.Query().Get("numero"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"first_name": "ROSA",
			"first_last_name": "QUISPE",
			"second_last_name": "MAMANI",
			"full_name": "QUISPE MAMANI ROSA",
			"document_number": "12345678",
			"extra": {"ignored": [1, 2]}
		}`))
	})

	p, err := c.LookupDNI(context.Background(), "12345678")
	require.NoError(t, err)
	assert.Equal(t, identity.Person{
		DocumentNumber: "12345678",
		FirstName:      "ROSA",
		FirstLastName:  "QUISPE",
		SecondLastName: "MAMANI",
		FullName:       "QUISPE MAMANI ROSA",
	}, *p)
}

func TestLookupDNI_ComposesFullName(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"first_name":"ROSA","first_last_name":"QUISPE","second_last_name":"MAMANI","full_name":null,"document_number":"12345678"}`))
	})

	p, err := c.LookupDNI(context.Background(), "12345678")
	require.NoError(t, err)
	assert.Equal(t, "ROSA QUISPE MAMANI", p.FullName)
}

func TestLookupDNI_InvalidDocument(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) { calls.Add(1) })

	_, err := c.LookupDNI(context.Background(), "12ab")
	require.ErrorIs(t, err, identity.ErrInvalidDocument)
	assert.Zero(t, calls.Load())
}

func TestLookupDNI_NotFound(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.LookupDNI(context.Background(), "12345678")
	require.ErrorIs(t, err, identity.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLookupDNI_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"document_number":"12345678","full_name":"ROSA"}`))
	})

	p, err := c.LookupDNI(context.Background(), "12345678")
	require.NoError(t, err)
	assert.Equal(t, "ROSA", p.FullName)
	assert.Equal(t, int32(3), calls.Load())
}

func TestLookupDNI_GivesUp(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.LookupDNI(context.Background(), "12345678")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.Equal(t, int32(3), calls.Load())
}

func TestLookupDNI_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.LookupDNI(context.Background(), "12345678")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLookupDNI_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"first_name": 42}`))
	})

	_, err := c.LookupDNI(context.Background(), "12345678")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}
