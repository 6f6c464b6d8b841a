// Package paymob talks to the Paymob Accept API: payment links for
// students, payouts and payout recipients for teachers, and verification of
// transaction callbacks.
package paymob

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"go.uber.org/zap"

	"github.com/iliyamo/tutor-marketplace/internal/config"
)

// Error describes a non-2xx answer or transport failure from the gateway.
type Error struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("paymob %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("paymob %s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *Error) Unwrap() error { return e.Err }

// Billing is the customer data the payment key requires. The gateway
// rejects empty fields, so unknown values are sent as "NA".
type Billing struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// OrderRequest describes a charge to create.
type OrderRequest struct {
	AmountCents     int64
	MerchantOrderID string
	Billing         Billing
}

// PaymentLink is the result of creating a charge.
type PaymentLink struct {
	OrderID      string
	PaymentToken string
	URL          string
}

// PayoutRequest sends money to a registered recipient.
type PayoutRequest struct {
	AmountCents int64
	RecipientID string
	Description string
}

// RecipientRequest registers a teacher's bank account or wallet.
type RecipientRequest struct {
	Name          string
	Email         string
	Phone         string
	Type          string // bank or wallet
	AccountNumber string
	BankName      string
}

// Client is a long-lived gateway client shared by the settlement and
// teacher services.
type Client struct {
	cfg    config.PaymobConfig
	http   *rest.Client
	logger *zap.Logger
}

// NewClient builds a client from cfg.
func NewClient(cfg config.PaymobConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &rest.Client{HTTPClient: &http.Client{Timeout: timeout}},
		logger: logger,
	}
}

// VerifyCallback checks a callback signature against the configured secret.
func (c *Client) VerifyCallback(obj map[string]any, signature string) bool {
	return Verify(c.cfg.HMACSecret, obj, signature)
}

// CreatePaymentLink runs auth -> order -> payment key and returns the iframe
// URL the student completes payment in.
func (c *Client) CreatePaymentLink(ctx context.Context, req OrderRequest) (PaymentLink, error) {
	token, err := c.authToken(ctx)
	if err != nil {
		return PaymentLink{}, err
	}

	var order struct {
		ID any `json:"id"`
	}
	if err := c.post(ctx, "create order", "/ecommerce/orders", "", map[string]any{
		"auth_token":        token,
		"delivery_needed":   false,
		"amount_cents":      req.AmountCents,
		"currency":          c.cfg.Currency,
		"merchant_order_id": req.MerchantOrderID,
		"items":             []any{},
	}, &order); err != nil {
		return PaymentLink{}, err
	}
	orderID := idString(order.ID)
	if orderID == "" {
		return PaymentLink{}, &Error{Op: "create order", Status: http.StatusOK, Body: "missing order id"}
	}

	var key struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "payment key", "/acceptance/payment_keys", "", map[string]any{
		"auth_token":     token,
		"amount_cents":   req.AmountCents,
		"expiration":     3600,
		"order_id":       orderID,
		"billing_data":   billingData(req.Billing),
		"currency":       c.cfg.Currency,
		"integration_id": c.cfg.IntegrationID,
	}, &key); err != nil {
		return PaymentLink{}, err
	}
	if key.Token == "" {
		return PaymentLink{}, &Error{Op: "payment key", Status: http.StatusOK, Body: "missing payment token"}
	}

	return PaymentLink{
		OrderID:      orderID,
		PaymentToken: key.Token,
		URL: fmt.Sprintf("%s/acceptance/iframes/%s?payment_token=%s",
			strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.IframeID, key.Token),
	}, nil
}

// Payout transfers money to a registered recipient and returns the payout id.
func (c *Client) Payout(ctx context.Context, req PayoutRequest) (string, error) {
	var out struct {
		ID any `json:"id"`
	}
	if err := c.post(ctx, "payout", "/acceptance/payout", c.cfg.PayoutAPIKey, map[string]any{
		"amount":      req.AmountCents,
		"currency":    c.cfg.Currency,
		"recipient":   req.RecipientID,
		"description": req.Description,
	}, &out); err != nil {
		return "", err
	}
	id := idString(out.ID)
	if id == "" {
		return "", &Error{Op: "payout", Status: http.StatusOK, Body: "missing payout id"}
	}
	c.logger.Info("payout issued", zap.String("payout_id", id), zap.String("recipient", req.RecipientID),
		zap.Int64("amount_cents", req.AmountCents))
	return id, nil
}

// RegisterRecipient registers a payout account and returns its recipient id.
func (c *Client) RegisterRecipient(ctx context.Context, req RecipientRequest) (string, error) {
	var out struct {
		ID any `json:"id"`
	}
	if err := c.post(ctx, "register recipient", "/acceptance/payouts/recipients", c.cfg.PayoutAPIKey, map[string]any{
		"name":           req.Name,
		"email":          req.Email,
		"phone":          req.Phone,
		"type":           req.Type,
		"account_number": req.AccountNumber,
		"bank_name":      req.BankName,
	}, &out); err != nil {
		return "", err
	}
	id := idString(out.ID)
	if id == "" {
		return "", &Error{Op: "register recipient", Status: http.StatusOK, Body: "missing recipient id"}
	}
	return id, nil
}

func (c *Client) authToken(ctx context.Context) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "auth", "/auth/tokens", "", map[string]any{"api_key": c.cfg.APIKey}, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", &Error{Op: "auth", Status: http.StatusOK, Body: "missing token"}
	}
	return out.Token, nil
}

// post sends a JSON body and decodes a 2xx JSON answer into out. bearer is
// optional.
func (c *Client) post(ctx context.Context, op, path, bearer string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	if bearer != "" {
		headers["Authorization"] = "Bearer " + bearer
	}
	req := rest.Request{
		Method:  rest.Post,
		BaseURL: strings.TrimRight(c.cfg.BaseURL, "/") + path,
		Headers: headers,
		Body:    payload,
	}

	res, err := c.http.SendWithContext(ctx, req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.logger.Warn("paymob request rejected", zap.String("op", op), zap.Int("status", res.StatusCode))
		return &Error{Op: op, Status: res.StatusCode, Body: truncate(res.Body, 512)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(res.Body), out); err != nil {
		return &Error{Op: op, Status: res.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

func billingData(b Billing) map[string]string {
	na := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "NA"
		}
		return s
	}
	return map[string]string{
		"first_name":      na(b.FirstName),
		"last_name":       na(b.LastName),
		"email":           na(b.Email),
		"phone_number":    na(b.Phone),
		"apartment":       "NA",
		"floor":           "NA",
		"street":          "NA",
		"building":        "NA",
		"shipping_method": "NA",
		"postal_code":     "NA",
		"city":            "NA",
		"country":         "NA",
		"state":           "NA",
	}
}

// idString normalizes ids the gateway returns as numbers or strings.
func idString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%.0f", t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
