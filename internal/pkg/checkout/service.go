// Package checkout creates, reads and captures gateway orders priced from the
// catalog, carrying the order context in the gateway's custom_id field.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/PriceSync/internal/pkg/catalog"
	"github.com/ManuelReschke/PriceSync/internal/pkg/env"
	"github.com/ManuelReschke/PriceSync/internal/pkg/gateway"
	"github.com/ManuelReschke/PriceSync/internal/pkg/ordermeta"
)

const DefaultCurrency = "USD"

var (
	// ErrInvalidPlan is returned before any gateway call when the plan has no
	// usable price.
	ErrInvalidPlan = errors.New("invalid plan or non-numeric price")
	// ErrAmountMismatch means an explicit amount does not fit the catalog price.
	ErrAmountMismatch = errors.New("amount does not match catalog price")
	ErrInvalidOrder   = errors.New("invalid order request")
)

var validate = validator.New()

// Gateway is the subset of the payment gateway the service needs.
type Gateway interface {
	CreateOrder(ctx context.Context, in gateway.CreateOrderInput) (*gateway.Order, error)
	GetOrder(ctx context.Context, orderID string) (*gateway.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*gateway.Order, error)
}

// PriceResolver is satisfied by *catalog.Resolver.
type PriceResolver interface {
	Resolve(ctx context.Context, q catalog.Request) (*catalog.Resolution, error)
}

type CreateOrderRequest struct {
	Segment      string           `json:"segment" validate:"required,max=64"`
	BillingCycle string           `json:"billingCycle" validate:"required,max=32"`
	PlanName     string           `json:"planName,omitempty" validate:"max=64"`
	FunnelLevel  string           `json:"funnelLevel,omitempty" validate:"max=64"`
	LeadGenName  string           `json:"leadGenName,omitempty" validate:"max=64"`
	Currency     string           `json:"currency,omitempty" validate:"omitempty,iso4217"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
}

func (r CreateOrderRequest) priceRequest() catalog.Request {
	return catalog.Request{
		Segment:      strings.TrimSpace(r.Segment),
		BillingCycle: strings.TrimSpace(r.BillingCycle),
		PlanName:     strings.TrimSpace(r.PlanName),
		FunnelLevel:  strings.TrimSpace(r.FunnelLevel),
		LeadGenName:  strings.TrimSpace(r.LeadGenName),
	}
}

type CreatedOrder struct {
	OrderID     string          `json:"orderId"`
	ApprovalURL string          `json:"approvalUrl,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Metadata    string          `json:"metadata"`
}

type OrderDetails struct {
	OrderID  string            `json:"orderId"`
	Status   string            `json:"status"`
	Amount   *decimal.Decimal  `json:"amount,omitempty"`
	Currency string            `json:"currency,omitempty"`
	Context  ordermeta.Context `json:"context"`
}

type CaptureResult struct {
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	Completed bool   `json:"completed"`
	Warning   string `json:"warning,omitempty"`
}

type Service struct {
	gateway  Gateway
	resolver PriceResolver
	currency string
}

// NewService wires a gateway and resolver. An empty currency falls back to
// CHECKOUT_CURRENCY and then USD.
func NewService(gw Gateway, resolver PriceResolver, currency string) *Service {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = strings.ToUpper(strings.TrimSpace(env.GetEnv("CHECKOUT_CURRENCY", DefaultCurrency)))
	}
	return &Service{gateway: gw, resolver: resolver, currency: currency}
}

func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreatedOrder, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	q := req.priceRequest()
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	res, err := s.resolver.Resolve(ctx, q)
	if err != nil {
		if errors.Is(err, catalog.ErrPriceNotFound) || errors.Is(err, catalog.ErrNonNumericPrice) {
			log.Warnf("[Checkout] No price for %s/%s/%s: %v", q.Segment, q.BillingCycle,
				ordermeta.Identifier(q.Segment, q.PlanName, q.FunnelLevel, q.LeadGenName), err)
			return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
		}
		return nil, err
	}

	amount, err := chargeAmount(q, res.Price, req.Amount)
	if err != nil {
		return nil, err
	}

	currency := s.currency
	if req.Currency != "" {
		currency = strings.ToUpper(req.Currency)
	}

	customID, err := ordermeta.Encode(ordermeta.Context{
		Segment:      q.Segment,
		BillingCycle: q.BillingCycle,
		Identifier:   ordermeta.Identifier(q.Segment, q.PlanName, q.FunnelLevel, q.LeadGenName),
		Amount:       &amount,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	order, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderInput{
		Amount:      amount,
		Currency:    currency,
		CustomID:    customID,
		Description: description(q),
	})
	if err != nil {
		return nil, err
	}

	log.Infof("[Checkout] Created order %s for %s (%s %s, path=%s)", order.ID, customID, amount.StringFixed(2), currency, res.Path)
	return &CreatedOrder{
		OrderID:     order.ID,
		ApprovalURL: order.ApprovalURL,
		Amount:      amount,
		Currency:    currency,
		Metadata:    customID,
	}, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*OrderDetails, error) {
	order, err := s.gateway.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderDetails{
		OrderID:  order.ID,
		Status:   order.Status,
		Amount:   order.Amount,
		Currency: order.Currency,
		Context:  ordermeta.Decode(order.CustomID),
	}, nil
}

// CaptureOrder settles an approved order. A capture that returns any status
// other than COMPLETED is reported as a warning, not an error.
func (s *Service) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	order, err := s.gateway.CaptureOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	result := &CaptureResult{
		OrderID:   order.ID,
		Status:    order.Status,
		Completed: order.Status == gateway.StatusCompleted,
	}
	if !result.Completed {
		result.Warning = fmt.Sprintf("capture returned status %s", order.Status)
		log.Warnf("[Checkout] Order %s captured with status %s", order.ID, order.Status)
	}
	return result, nil
}

// chargeAmount applies an explicit amount: plans must pay the catalog price,
// funnel orders at least the minimum. A zero catalog price cannot be charged
// through the gateway, so it only stands for funnel orders with an explicit
// amount.
func chargeAmount(q catalog.Request, resolved decimal.Decimal, explicit *decimal.Decimal) (decimal.Decimal, error) {
	resolved = resolved.Round(2)
	if !resolved.IsPositive() && (explicit == nil || !q.IsFunnel()) {
		return decimal.Zero, fmt.Errorf("%w: catalog price %s cannot be charged", ErrInvalidPlan, resolved.StringFixed(2))
	}
	if explicit == nil {
		return resolved, nil
	}
	amount := explicit.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be positive", ErrInvalidOrder)
	}
	if q.IsFunnel() {
		if amount.LessThan(resolved) {
			return decimal.Zero, fmt.Errorf("%w: %s is below minimum %s", ErrAmountMismatch, amount.StringFixed(2), resolved.StringFixed(2))
		}
		return amount, nil
	}
	if !amount.Equal(resolved) {
		return decimal.Zero, fmt.Errorf("%w: %s != %s", ErrAmountMismatch, amount.StringFixed(2), resolved.StringFixed(2))
	}
	return amount, nil
}

func description(q catalog.Request) string {
	if q.IsFunnel() {
		return fmt.Sprintf("%s %s: %s / %s", q.Segment, q.BillingCycle, q.FunnelLevel, q.LeadGenName)
	}
	return fmt.Sprintf("%s %s: %s", q.Segment, q.BillingCycle, q.PlanName)
}
