package gateway

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	StatusCreated   = "CREATED"
	StatusApproved  = "APPROVED"
	StatusCompleted = "COMPLETED"
)

var (
	// ErrOrderNotFound is returned when the gateway has no order with that id.
	ErrOrderNotFound = errors.New("order not found")
	ErrNotConfigured = errors.New("PAYPAL_CLIENT_ID/PAYPAL_CLIENT_SECRET are not configured")
	// ErrUnavailable wraps transport failures talking to the gateway.
	ErrUnavailable = errors.New("payment gateway unavailable")
)

// APIError carries the gateway's own error payload for diagnostics.
type APIError struct {
	Operation  string
	StatusCode int
	Name       string
	Message    string
	DebugID    string
	Payload    []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal %s failed: status=%d name=%s message=%s debug_id=%s",
		e.Operation, e.StatusCode, e.Name, e.Message, e.DebugID)
}

// CreateOrderInput is a single-item order.
type CreateOrderInput struct {
	Amount      decimal.Decimal
	Currency    string
	CustomID    string
	Description string
}

// Order is the subset of the gateway order the service uses.
type Order struct {
	ID          string
	Status      string
	ApprovalURL string
	Amount      *decimal.Decimal
	Currency    string
	CustomID    string
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	Amount      *money `json:"amount,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	Description string `json:"description,omitempty"`
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type orderResponse struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
	Links         []link         `json:"links"`
}

type applicationContext struct {
	ReturnURL string `json:"return_url,omitempty"`
	CancelURL string `json:"cancel_url,omitempty"`
}

type createOrderRequest struct {
	Intent             string              `json:"intent"`
	PurchaseUnits      []purchaseUnit      `json:"purchase_units"`
	ApplicationContext *applicationContext `json:"application_context,omitempty"`
}

type errorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id"`
}

func (r orderResponse) toOrder() *Order {
	o := &Order{ID: r.ID, Status: r.Status}
	for _, l := range r.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			o.ApprovalURL = l.Href
			break
		}
	}
	if len(r.PurchaseUnits) > 0 {
		pu := r.PurchaseUnits[0]
		o.CustomID = pu.CustomID
		if pu.Amount != nil {
			o.Currency = pu.Amount.CurrencyCode
			if v, err := decimal.NewFromString(pu.Amount.Value); err == nil {
				o.Amount = &v
			}
		}
	}
	return o
}
