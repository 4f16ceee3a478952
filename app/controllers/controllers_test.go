package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PriceSync/app/models"
	"github.com/ManuelReschke/PriceSync/internal/pkg/checkout"
	"github.com/ManuelReschke/PriceSync/internal/pkg/docstore"
	"github.com/ManuelReschke/PriceSync/internal/pkg/gateway"
)

const snapshotBody = `[
	{"segment": "Personal", "billingCycle": "Monthly", "planName": "Startup", "price": 120},
	{"segment": "Funnel Level", "billingCycle": "Monthly", "funnelLevel": "TOFU", "leadGenName": "Email Campaign", "price": 50, "minimumPrice": 35}
]`

type stubGateway struct {
	orders map[string]*gateway.Order
}

func (g *stubGateway) CreateOrder(_ context.Context, in gateway.CreateOrderInput) (*gateway.Order, error) {
	amount := in.Amount
	o := &gateway.Order{ID: "ORDER-1", Status: gateway.StatusCreated, ApprovalURL: "https://paypal.test/approve", Amount: &amount, Currency: in.Currency, CustomID: in.CustomID}
	g.orders[o.ID] = o
	return o, nil
}

func (g *stubGateway) GetOrder(_ context.Context, id string) (*gateway.Order, error) {
	if o, ok := g.orders[id]; ok {
		return o, nil
	}
	return nil, gateway.ErrOrderNotFound
}

func (g *stubGateway) CaptureOrder(_ context.Context, id string) (*gateway.Order, error) {
	if _, ok := g.orders[id]; !ok {
		return nil, gateway.ErrOrderNotFound
	}
	return &gateway.Order{ID: id, Status: "PENDING"}, nil
}

type stubSnapshots struct {
	stored   map[string][]models.PriceListRow
	archived int
}

func (s *stubSnapshots) Fetch(_ context.Context, key string) ([]models.PriceListRow, error) {
	rows, ok := s.stored[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return rows, nil
}

func (s *stubSnapshots) Archive(_ context.Context, rows []models.PriceListRow) (string, error) {
	s.archived++
	return "snapshots/test.json", nil
}

func newTestApp(paths *docstore.Paths, snapshots SnapshotStore) *fiber.App {
	pricing := NewPricingController(paths, snapshots)
	orders := NewOrderController(checkout.NewService(&stubGateway{orders: map[string]*gateway.Order{}}, pricing.resolver, "USD"))

	app := fiber.New()
	app.Post("/sync", pricing.HandleSync)
	app.Get("/resolve", pricing.HandleResolve)
	app.Get("/meta", pricing.HandleMeta)
	app.Post("/orders", orders.HandleCreateOrder)
	app.Get("/orders/:id", orders.HandleGetOrder)
	app.Post("/orders/:id/capture", orders.HandleCaptureOrder)
	return app
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestSyncResolveAndMeta(t *testing.T) {
	store := docstore.NewMemoryBackend()
	snapshots := &stubSnapshots{}
	app := newTestApp(&docstore.Paths{Privileged: store}, snapshots)

	status, body := do(t, app, http.MethodPost, "/sync", snapshotBody)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, false, body["dryRun"])
	assert.Equal(t, "snapshots/test.json", body["archivedKey"])
	assert.Equal(t, 1, snapshots.archived)

	status, body = do(t, app, http.MethodGet, "/resolve?segment=Funnel%20Level&billingCycle=Monthly&funnelLevel=TOFU&leadGenName=Email%20Campaign", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "35.00", body["price"])
	assert.Equal(t, "memory", body["path"])

	status, body = do(t, app, http.MethodGet, "/meta", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(2), body["count"])
}

func TestSyncDryRunDoesNotWrite(t *testing.T) {
	store := docstore.NewMemoryBackend()
	app := newTestApp(&docstore.Paths{Privileged: store}, nil)

	status, body := do(t, app, http.MethodPost, "/sync?dryRun=true", snapshotBody)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["dryRun"])
	assert.Equal(t, float64(2), body["count"])

	docs, err := store.List(context.Background(), models.CatalogCollection)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSyncFromS3Key(t *testing.T) {
	store := docstore.NewMemoryBackend()
	snapshots := &stubSnapshots{stored: map[string][]models.PriceListRow{
		"snapshots/2026/03/a.json": {{Segment: "Business", BillingCycle: "Yearly", PlanName: "Pro", Price: dec("990")}},
	}}
	app := newTestApp(&docstore.Paths{Privileged: store}, snapshots)

	status, body := do(t, app, http.MethodPost, "/sync?s3Key=snapshots/2026/03/a.json", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, 0, snapshots.archived)

	status, _ = do(t, app, http.MethodPost, "/sync?s3Key=missing.json", "")
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestSyncErrors(t *testing.T) {
	app := newTestApp(&docstore.Paths{Privileged: docstore.NewMemoryBackend()}, nil)

	status, body := do(t, app, http.MethodPost, "/sync", "not json")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", body["error"])

	status, _ = do(t, app, http.MethodPost, "/sync", `[{"segment": "Personal", "billingCycle": "Monthly"}]`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, app, http.MethodPost, "/sync?s3Key=a.json", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "not_configured", body["error"])

	unconfigured := newTestApp(&docstore.Paths{}, nil)
	status, body = do(t, unconfigured, http.MethodPost, "/sync", snapshotBody)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body["message"], "DB_USER")
}

func TestResolveErrors(t *testing.T) {
	app := newTestApp(&docstore.Paths{Privileged: docstore.NewMemoryBackend()}, nil)

	status, _ := do(t, app, http.MethodGet, "/resolve?segment=Personal", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := do(t, app, http.MethodGet, "/resolve?segment=Personal&billingCycle=Monthly&planName=Pro", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["error"])

	status, _ = do(t, app, http.MethodGet, "/meta", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestOrderLifecycle(t *testing.T) {
	app := newTestApp(&docstore.Paths{Privileged: docstore.NewMemoryBackend()}, nil)
	status, _ := do(t, app, http.MethodPost, "/sync", snapshotBody)
	require.Equal(t, http.StatusOK, status)

	status, body := do(t, app, http.MethodPost, "/orders", `{"segment":"Funnel Level","billingCycle":"Monthly","funnelLevel":"TOFU","leadGenName":"Email Campaign"}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "ORDER-1", body["orderId"])
	assert.Equal(t, "Funnel Level~Monthly~TOFU|Email Campaign~35.00", body["metadata"])

	status, body = do(t, app, http.MethodGet, "/orders/ORDER-1", "")
	require.Equal(t, http.StatusOK, status, body)
	ctx := body["context"].(map[string]any)
	assert.Equal(t, "TOFU|Email Campaign", ctx["identifier"])
	assert.Equal(t, "35", ctx["amount"])

	status, body = do(t, app, http.MethodPost, "/orders/ORDER-1/capture", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, false, body["completed"])
	assert.Contains(t, body["warning"], "PENDING")

	status, _ = do(t, app, http.MethodGet, "/orders/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreateOrderErrors(t *testing.T) {
	app := newTestApp(&docstore.Paths{Privileged: docstore.NewMemoryBackend()}, nil)

	status, _ := do(t, app, http.MethodPost, "/orders", "{")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := do(t, app, http.MethodPost, "/orders", `{"segment":"Personal","billingCycle":"Monthly","planName":"Ghost"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "invalid plan or non-numeric price: no matching price row", body["message"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{docstore.ErrDatabaseAbsent, http.StatusServiceUnavailable},
		{&gateway.APIError{StatusCode: 500}, http.StatusBadGateway},
		{gateway.ErrUnavailable, http.StatusBadGateway},
		{checkout.ErrAmountMismatch, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := statusFor(tt.err)
		assert.Equal(t, tt.want, got, tt.err.Error())
	}
}
