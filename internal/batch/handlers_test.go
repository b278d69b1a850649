package batch_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/partquote/internal/batch"
)

const itemBody = `{"material":"aluminum","process":"cnc_milling","lengthMm":100,"widthMm":50,"heightMm":25,"complexityScore":2.5,"quantity":100,"shippingZone":1}`

type batchResponse struct {
	Data batch.Batch `json:"data"`
}

func newRouter(h *batch.Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/quotes/batch", h.Submit)
	r.Get("/api/v1/quotes/batch/{id}", h.Get)
	return r
}

func TestBatchHandlers(t *testing.T) {
	f := newFixture(t, 5)
	router := newRouter(batch.NewHandler(batch.HandlerConfig{Service: f.service, MaxBodyBytes: 1 << 20}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/batch", strings.NewReader(`{"items":[`+itemBody+`]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var submitted batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	require.Equal(t, batch.StatusPending, submitted.Data.Status)
	require.Equal(t, "/api/v1/quotes/batch/"+submitted.Data.ID, rec.Header().Get("Location"))

	require.NoError(t, f.service.Process(context.Background(), submitted.Data.ID))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/quotes/batch/"+submitted.Data.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	require.Equal(t, batch.StatusCompleted, fetched.Data.Status)
	require.Equal(t, 1, fetched.Data.Succeeded)
}

func TestBatchHandlerErrors(t *testing.T) {
	f := newFixture(t, 1)
	router := newRouter(batch.NewHandler(batch.HandlerConfig{Service: f.service}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/quotes/batch", strings.NewReader(`{"items":[]}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	body := `{"items":[` + itemBody + `,` + itemBody + `]}`
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/quotes/batch", strings.NewReader(body)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/quotes/batch", strings.NewReader(`not json`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/quotes/batch/7d1b9f0e-5a8c-4b3e-9d2f-0c6a1e4b7f22", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchHandlerWithoutService(t *testing.T) {
	h := batch.NewHandler(batch.HandlerConfig{})
	rec := httptest.NewRecorder()
	h.Submit(rec, httptest.NewRequest(http.MethodPost, "/api/v1/quotes/batch", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
