package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ManuelReschke/PriceSync/internal/pkg/env"
	"github.com/ManuelReschke/PriceSync/internal/pkg/metrics"
)

const defaultPayPalAPIBaseURL = "https://api-m.sandbox.paypal.com"

// PayPalClient talks to the PayPal Orders v2 API.
type PayPalClient struct {
	ClientID     string
	ClientSecret string
	APIBaseURL   string
	ReturnURL    string
	CancelURL    string

	HTTPClient *http.Client

	authOnce   sync.Once
	authClient *http.Client
}

func NewPayPalClientFromEnv() *PayPalClient {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	returnURL := strings.TrimSpace(env.GetEnv("PAYPAL_RETURN_URL", ""))
	if returnURL == "" && base != "" {
		returnURL = base + "/checkout/complete"
	}
	cancelURL := strings.TrimSpace(env.GetEnv("PAYPAL_CANCEL_URL", ""))
	if cancelURL == "" && base != "" {
		cancelURL = base + "/pricing"
	}

	return &PayPalClient{
		ClientID:     strings.TrimSpace(env.GetEnv("PAYPAL_CLIENT_ID", "")),
		ClientSecret: strings.TrimSpace(env.GetEnv("PAYPAL_CLIENT_SECRET", "")),
		APIBaseURL:   strings.TrimRight(strings.TrimSpace(env.GetEnv("PAYPAL_API_BASE_URL", defaultPayPalAPIBaseURL)), "/"),
		ReturnURL:    returnURL,
		CancelURL:    cancelURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Configured reports whether API credentials are present.
func (c *PayPalClient) Configured() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

// httpClient returns the client that attaches the bearer token. It is built
// once so the token is fetched once and refreshed only when it expires.
func (c *PayPalClient) httpClient() *http.Client {
	c.authOnce.Do(func() {
		ctx := context.Background()
		if c.HTTPClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
		}
		cfg := clientcredentials.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			TokenURL:     c.APIBaseURL + "/v1/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		c.authClient = oauth2.NewClient(ctx, cfg.TokenSource(ctx))
		if c.HTTPClient != nil {
			c.authClient.Timeout = c.HTTPClient.Timeout
		}
	})
	return c.authClient
}

func (c *PayPalClient) CreateOrder(ctx context.Context, in CreateOrderInput) (order *Order, err error) {
	defer func() { metrics.GatewayRequest("create", err) }()
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	body := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			Amount:      &money{CurrencyCode: strings.ToUpper(in.Currency), Value: in.Amount.StringFixed(2)},
			CustomID:    in.CustomID,
			Description: in.Description,
		}},
	}
	if c.ReturnURL != "" || c.CancelURL != "" {
		body.ApplicationContext = &applicationContext{ReturnURL: c.ReturnURL, CancelURL: c.CancelURL}
	}

	var out orderResponse
	if err := c.do(ctx, "create order", http.MethodPost, "/v2/checkout/orders", body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("paypal create order returned empty id")
	}
	order = out.toOrder()
	if order.CustomID == "" {
		order.CustomID = in.CustomID
	}
	if order.Amount == nil {
		amount := in.Amount
		order.Amount = &amount
		order.Currency = strings.ToUpper(in.Currency)
	}
	return order, nil
}

func (c *PayPalClient) GetOrder(ctx context.Context, orderID string) (order *Order, err error) {
	defer func() { metrics.GatewayRequest("get", err) }()
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return nil, errors.New("order id is required")
	}

	var out orderResponse
	if err := c.do(ctx, "get order", http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out.toOrder(), nil
}

func (c *PayPalClient) CaptureOrder(ctx context.Context, orderID string) (order *Order, err error) {
	defer func() { metrics.GatewayRequest("capture", err) }()
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return nil, errors.New("order id is required")
	}

	var out orderResponse
	path := "/v2/checkout/orders/" + url.PathEscape(id) + "/capture"
	if err := c.do(ctx, "capture order", http.MethodPost, path, struct{}{}, &out); err != nil {
		return nil, err
	}
	return out.toOrder(), nil
}

func (c *PayPalClient) do(ctx context.Context, op, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		req.Header.Set("PayPal-Request-Id", uuid.NewString())
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%w: paypal %s: %v", ErrUnavailable, op, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: paypal %s", ErrOrderNotFound, op)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Operation: op, StatusCode: resp.StatusCode, Payload: body}
		var e errorResponse
		if json.Unmarshal(body, &e) == nil {
			apiErr.Name, apiErr.Message, apiErr.DebugID = e.Name, e.Message, e.DebugID
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("paypal %s: decode response: %w", op, err)
	}
	return nil
}
