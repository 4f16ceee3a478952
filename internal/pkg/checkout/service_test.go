package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PriceSync/app/models"
	"github.com/ManuelReschke/PriceSync/internal/pkg/catalog"
	"github.com/ManuelReschke/PriceSync/internal/pkg/docstore"
	"github.com/ManuelReschke/PriceSync/internal/pkg/gateway"
	"github.com/ManuelReschke/PriceSync/internal/pkg/ordermeta"
)

type fakeGateway struct {
	created  []gateway.CreateOrderInput
	orders   map[string]*gateway.Order
	captured string
	err      error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{orders: map[string]*gateway.Order{}}
}

func (g *fakeGateway) CreateOrder(_ context.Context, in gateway.CreateOrderInput) (*gateway.Order, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.created = append(g.created, in)
	amount := in.Amount
	o := &gateway.Order{
		ID:          "ORDER-1",
		Status:      gateway.StatusCreated,
		ApprovalURL: "https://paypal.test/approve?token=ORDER-1",
		Amount:      &amount,
		Currency:    in.Currency,
		CustomID:    in.CustomID,
	}
	g.orders[o.ID] = o
	return o, nil
}

func (g *fakeGateway) GetOrder(_ context.Context, id string) (*gateway.Order, error) {
	if o, ok := g.orders[id]; ok {
		return o, nil
	}
	return nil, gateway.ErrOrderNotFound
}

func (g *fakeGateway) CaptureOrder(_ context.Context, id string) (*gateway.Order, error) {
	o, ok := g.orders[id]
	if !ok {
		return nil, gateway.ErrOrderNotFound
	}
	g.captured = id
	return o, nil
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newService(t *testing.T, gw Gateway) *Service {
	t.Helper()
	mem := docstore.NewMemoryBackend()
	_, err := catalog.NewReconciler(mem).Reconcile(context.Background(), []models.PriceListRow{
		{Segment: models.SegmentPersonal, BillingCycle: models.BillingCycleMonthly, PlanName: "Startup", Price: dec("120")},
		{Segment: models.SegmentPersonal, BillingCycle: models.BillingCycleMonthly, PlanName: "Free", Price: dec("0")},
		{Segment: models.SegmentFunnelLevel, BillingCycle: models.BillingCycleMonthly, FunnelLevel: "TOFU", LeadGenName: "Email Campaign", Price: dec("50"), MinimumPrice: dec("35")},
		{Segment: models.SegmentFunnelLevel, BillingCycle: models.BillingCycleMonthly, FunnelLevel: "BOFU", LeadGenName: "Referral", Price: dec("0"), MinimumPrice: dec("0")},
	})
	require.NoError(t, err)

	return NewService(gw, catalog.NewResolver(&docstore.Paths{Privileged: mem}), "usd")
}

func TestCreateOrder_Plan(t *testing.T) {
	gw := newFakeGateway()
	svc := newService(t, gw)

	out, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		Segment: "Personal", BillingCycle: "Monthly", PlanName: "Startup",
	})
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", out.OrderID)
	assert.Equal(t, "120.00", out.Amount.StringFixed(2))
	assert.Equal(t, "USD", out.Currency)
	assert.Equal(t, "Personal~Monthly~Startup~120.00", out.Metadata)

	require.Len(t, gw.created, 1)
	assert.Equal(t, out.Metadata, gw.created[0].CustomID)
	assert.Equal(t, "USD", gw.created[0].Currency)
}

func TestCreateOrder_FunnelUsesMinimum(t *testing.T) {
	gw := newFakeGateway()
	svc := newService(t, gw)

	out, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		Segment: "Funnel Level", BillingCycle: "Monthly", FunnelLevel: "TOFU", LeadGenName: "Email Campaign",
	})
	require.NoError(t, err)
	assert.Equal(t, "35.00", out.Amount.StringFixed(2))
	assert.Equal(t, "Funnel Level~Monthly~TOFU|Email Campaign~35.00", out.Metadata)
}

func TestCreateOrder_ExplicitAmount(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateOrderRequest
		want    string
		wantErr error
	}{
		{
			name: "plan matches",
			req:  CreateOrderRequest{Segment: "Personal", BillingCycle: "Monthly", PlanName: "Startup", Amount: dec("120")},
			want: "120.00",
		},
		{
			name:    "plan differs",
			req:     CreateOrderRequest{Segment: "Personal", BillingCycle: "Monthly", PlanName: "Startup", Amount: dec("100")},
			wantErr: ErrAmountMismatch,
		},
		{
			name: "funnel above minimum",
			req:  CreateOrderRequest{Segment: "Funnel Level", BillingCycle: "Monthly", FunnelLevel: "TOFU", LeadGenName: "Email Campaign", Amount: dec("42.5")},
			want: "42.50",
		},
		{
			name:    "funnel below minimum",
			req:     CreateOrderRequest{Segment: "Funnel Level", BillingCycle: "Monthly", FunnelLevel: "TOFU", LeadGenName: "Email Campaign", Amount: dec("20")},
			wantErr: ErrAmountMismatch,
		},
		{
			name:    "non-positive",
			req:     CreateOrderRequest{Segment: "Funnel Level", BillingCycle: "Monthly", FunnelLevel: "TOFU", LeadGenName: "Email Campaign", Amount: dec("0")},
			wantErr: ErrInvalidOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, newFakeGateway())
			out, err := svc.CreateOrder(context.Background(), tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Amount.StringFixed(2))
		})
	}
}

func TestCreateOrder_InvalidPlanStopsBeforeGateway(t *testing.T) {
	gw := newFakeGateway()
	svc := newService(t, gw)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		Segment: "Personal", BillingCycle: "Monthly", PlanName: "Enterprise",
	})
	require.ErrorIs(t, err, ErrInvalidPlan)
	assert.Contains(t, err.Error(), "invalid plan or non-numeric price")
	assert.Empty(t, gw.created)
}

func TestCreateOrder_ZeroPriceStopsBeforeGateway(t *testing.T) {
	gw := newFakeGateway()
	svc := newService(t, gw)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{Segment: "Personal", BillingCycle: "Monthly", PlanName: "Free"})
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = svc.CreateOrder(context.Background(), CreateOrderRequest{Segment: "Personal", BillingCycle: "Monthly", PlanName: "Free", Amount: dec("5")})
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = svc.CreateOrder(context.Background(), CreateOrderRequest{Segment: "Funnel Level", BillingCycle: "Monthly", FunnelLevel: "BOFU", LeadGenName: "Referral"})
	assert.ErrorIs(t, err, ErrInvalidPlan)
	assert.Empty(t, gw.created)

	out, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		Segment: "Funnel Level", BillingCycle: "Monthly", FunnelLevel: "BOFU", LeadGenName: "Referral", Amount: dec("10"),
	})
	require.NoError(t, err)
	assert.Equal(t, "10.00", out.Amount.StringFixed(2))
	assert.Len(t, gw.created, 1)
}

func TestCreateOrder_Validation(t *testing.T) {
	gw := newFakeGateway()
	svc := newService(t, gw)

	tests := []CreateOrderRequest{
		{BillingCycle: "Monthly", PlanName: "Startup"},
		{Segment: "Personal", BillingCycle: "Monthly"},
		{Segment: "Funnel Level", BillingCycle: "Monthly", FunnelLevel: "TOFU"},
		{Segment: "Personal", BillingCycle: "Monthly", PlanName: "Startup", Currency: "XXXX"},
		{Segment: "Personal", BillingCycle: "Monthly", PlanName: "Start~up"},
	}
	for _, req := range tests {
		_, err := svc.CreateOrder(context.Background(), req)
		assert.Error(t, err, "%+v", req)
	}
	assert.Empty(t, gw.created)
}

func TestCreateOrder_GatewayError(t *testing.T) {
	gw := newFakeGateway()
	gw.err = &gateway.APIError{Operation: "create order", StatusCode: 500}
	svc := newService(t, gw)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{Segment: "Personal", BillingCycle: "Monthly", PlanName: "Startup"})
	var apiErr *gateway.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestGetOrder_DecodesContext(t *testing.T) {
	gw := newFakeGateway()
	svc := newService(t, gw)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		Segment: "Funnel Level", BillingCycle: "Monthly", FunnelLevel: "TOFU", LeadGenName: "Email Campaign",
	})
	require.NoError(t, err)

	details, err := svc.GetOrder(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusCreated, details.Status)
	assert.Equal(t, "Funnel Level", details.Context.Segment)
	assert.Equal(t, "Monthly", details.Context.BillingCycle)
	assert.Equal(t, "TOFU|Email Campaign", details.Context.Identifier)
	require.NotNil(t, details.Context.Amount)
	assert.Equal(t, "35.00", details.Context.Amount.StringFixed(2))

	level, leadGen, ok := ordermeta.SplitIdentifier(details.Context.Identifier)
	assert.True(t, ok)
	assert.Equal(t, "TOFU", level)
	assert.Equal(t, "Email Campaign", leadGen)

	_, err = svc.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, gateway.ErrOrderNotFound)
}

func TestCaptureOrder(t *testing.T) {
	gw := newFakeGateway()
	svc := newService(t, gw)
	gw.orders["DONE"] = &gateway.Order{ID: "DONE", Status: gateway.StatusCompleted}
	gw.orders["PENDING"] = &gateway.Order{ID: "PENDING", Status: "PENDING"}

	res, err := svc.CaptureOrder(context.Background(), "DONE")
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Empty(t, res.Warning)

	res, err = svc.CaptureOrder(context.Background(), "PENDING")
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Contains(t, res.Warning, "PENDING")
}

func TestNewService_DefaultCurrency(t *testing.T) {
	t.Setenv("CHECKOUT_CURRENCY", "eur")
	svc := NewService(newFakeGateway(), nil, "")
	assert.Equal(t, "EUR", svc.currency)
}

type failingResolver struct{ err error }

func (r failingResolver) Resolve(context.Context, catalog.Request) (*catalog.Resolution, error) {
	return nil, r.err
}

func TestCreateOrder_BackendFailureIsNotInvalidPlan(t *testing.T) {
	gw := newFakeGateway()
	outage := errors.New("dial tcp 10.0.0.5:3306: connection refused")
	svc := NewService(gw, failingResolver{err: fmt.Errorf("resolve price: %w", outage)}, "USD")

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{Segment: "Personal", BillingCycle: "Monthly", PlanName: "Startup"})
	require.Error(t, err)
	assert.ErrorIs(t, err, outage)
	assert.NotErrorIs(t, err, ErrInvalidPlan)
	assert.Empty(t, gw.created)
}
