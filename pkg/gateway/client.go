package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Response is a parsed gateway reply. Raw holds every field the gateway
// returned, including ones not broken out here.
type Response struct {
	ResponseText    string
	ResponseCode    string
	AuthCode        string
	TransactionID   string
	OrderID         string
	CustomerVaultID string
	SubscriptionID  string
	Raw             url.Values
}

// CustomerData is optional billing identity attached to vault records and
// transactions.
type CustomerData struct {
	FirstName string
	LastName  string
	Email     string
	Company   string
}

// SaleOptions carries optional fields for sale and auth transactions.
type SaleOptions struct {
	OrderID          string
	OrderDescription string
	Customer         CustomerData
}

// SubscriptionRequest describes a recurring billing schedule charged against
// a vault record. PlanPayments zero means the schedule recurs until
// cancelled.
type SubscriptionRequest struct {
	CustomerVaultID string
	PlanAmount      decimal.Decimal
	PlanPayments    int
	MonthFrequency  int
	DayOfMonth      int
}

// Client talks to the gateway's transaction API.
type Client struct {
	endpoint    string
	securityKey string
	httpc       *http.Client
	log         *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, e.g. to add a proxy or
// custom TLS configuration. The configured timeout still applies per request
// context.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		if httpc != nil {
			c.httpc = httpc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a gateway client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.SecurityKey == "" {
		return nil, ErrMissingSecurityKey
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		endpoint:    cfg.Endpoint,
		securityKey: cfg.SecurityKey,
		httpc:       &http.Client{Timeout: timeout},
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Sale charges a one-time payment token immediately.
func (c *Client) Sale(ctx context.Context, paymentToken string, amount decimal.Decimal, opts SaleOptions) (*Response, error) {
	params := url.Values{
		"type":          {"sale"},
		"payment_token": {paymentToken},
		"amount":        {amount.StringFixed(2)},
	}
	applySaleOptions(params, opts)
	return c.send(ctx, params)
}

// Authorize places a hold on the payment method without capturing funds.
func (c *Client) Authorize(ctx context.Context, paymentToken string, amount decimal.Decimal, opts SaleOptions) (*Response, error) {
	params := url.Values{
		"type":          {"auth"},
		"payment_token": {paymentToken},
		"amount":        {amount.StringFixed(2)},
	}
	applySaleOptions(params, opts)
	return c.send(ctx, params)
}

// Capture settles a previously authorized transaction. A zero amount
// captures the full authorized amount.
func (c *Client) Capture(ctx context.Context, transactionID string, amount decimal.Decimal) (*Response, error) {
	params := url.Values{
		"type":          {"capture"},
		"transactionid": {transactionID},
	}
	if amount.IsPositive() {
		params.Set("amount", amount.StringFixed(2))
	}
	return c.send(ctx, params)
}

// Void cancels an unsettled transaction.
func (c *Client) Void(ctx context.Context, transactionID string) (*Response, error) {
	return c.send(ctx, url.Values{
		"type":          {"void"},
		"transactionid": {transactionID},
	})
}

// Refund returns funds from a settled transaction. A zero amount refunds the
// full transaction.
func (c *Client) Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (*Response, error) {
	params := url.Values{
		"type":          {"refund"},
		"transactionid": {transactionID},
	}
	if amount.IsPositive() {
		params.Set("amount", amount.StringFixed(2))
	}
	return c.send(ctx, params)
}

// ValidateToken verifies a payment token without moving money.
func (c *Client) ValidateToken(ctx context.Context, paymentToken string) (*Response, error) {
	return c.send(ctx, url.Values{
		"type":          {"validate"},
		"payment_token": {paymentToken},
	})
}

// AddToVault stores the payment method behind a one-time token in the
// customer vault and returns its vault ID.
func (c *Client) AddToVault(ctx context.Context, paymentToken string, customer CustomerData) (*Response, error) {
	params := url.Values{
		"customer_vault": {"add_customer"},
		"payment_token":  {paymentToken},
	}
	applyCustomer(params, customer)
	return c.send(ctx, params)
}

// UpdateVault replaces the payment method on an existing vault record.
func (c *Client) UpdateVault(ctx context.Context, vaultID, paymentToken string, customer CustomerData) (*Response, error) {
	params := url.Values{
		"customer_vault":    {"update_customer"},
		"customer_vault_id": {vaultID},
	}
	if paymentToken != "" {
		params.Set("payment_token", paymentToken)
	}
	applyCustomer(params, customer)
	return c.send(ctx, params)
}

// DeleteFromVault removes a vault record.
func (c *Client) DeleteFromVault(ctx context.Context, vaultID string) (*Response, error) {
	return c.send(ctx, url.Values{
		"customer_vault":    {"delete_customer"},
		"customer_vault_id": {vaultID},
	})
}

// ChargeVault charges a stored vault record.
func (c *Client) ChargeVault(ctx context.Context, vaultID string, amount decimal.Decimal, opts SaleOptions) (*Response, error) {
	params := url.Values{
		"type":              {"sale"},
		"customer_vault_id": {vaultID},
		"amount":            {amount.StringFixed(2)},
	}
	applySaleOptions(params, opts)
	return c.send(ctx, params)
}

// CreateSubscription starts a recurring billing schedule against a vault
// record and returns the gateway's subscription ID.
func (c *Client) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Response, error) {
	return c.send(ctx, url.Values{
		"recurring":         {"add_subscription"},
		"customer_vault_id": {req.CustomerVaultID},
		"plan_amount":       {req.PlanAmount.StringFixed(2)},
		"plan_payments":     {strconv.Itoa(req.PlanPayments)},
		"month_frequency":   {strconv.Itoa(req.MonthFrequency)},
		"day_of_month":      {strconv.Itoa(req.DayOfMonth)},
	})
}

// UpdateSubscription changes the amount of an existing recurring schedule.
func (c *Client) UpdateSubscription(ctx context.Context, subscriptionID string, planAmount decimal.Decimal) (*Response, error) {
	return c.send(ctx, url.Values{
		"recurring":       {"update_subscription"},
		"subscription_id": {subscriptionID},
		"plan_amount":     {planAmount.StringFixed(2)},
	})
}

// CancelSubscription stops a recurring schedule.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (*Response, error) {
	return c.send(ctx, url.Values{
		"recurring":       {"delete_subscription"},
		"subscription_id": {subscriptionID},
	})
}

func applySaleOptions(params url.Values, opts SaleOptions) {
	if opts.OrderID != "" {
		params.Set("orderid", opts.OrderID)
	}
	if opts.OrderDescription != "" {
		params.Set("orderdescription", opts.OrderDescription)
	}
	applyCustomer(params, opts.Customer)
}

func applyCustomer(params url.Values, customer CustomerData) {
	if customer.FirstName != "" {
		params.Set("first_name", customer.FirstName)
	}
	if customer.LastName != "" {
		params.Set("last_name", customer.LastName)
	}
	if customer.Email != "" {
		params.Set("email", customer.Email)
	}
	if customer.Company != "" {
		params.Set("company", customer.Company)
	}
}

func (c *Client) send(ctx context.Context, params url.Values) (*Response, error) {
	params.Set("security_key", c.securityKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.ErrorContext(ctx, "gateway request failed",
			"params", scrub(params), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrGatewayUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.ErrorContext(ctx, "gateway returned non-200",
			"status", resp.StatusCode, "params", scrub(params))
		return nil, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", ErrGatewayUnavailable, err)
	}

	result := &Response{
		ResponseText:    values.Get("responsetext"),
		ResponseCode:    values.Get("response_code"),
		AuthCode:        values.Get("authcode"),
		TransactionID:   values.Get("transactionid"),
		OrderID:         values.Get("orderid"),
		CustomerVaultID: values.Get("customer_vault_id"),
		SubscriptionID:  values.Get("subscription_id"),
		Raw:             values,
	}

	if values.Get("response") != "1" {
		c.log.WarnContext(ctx, "gateway declined transaction",
			"response_text", result.ResponseText,
			"response_code", result.ResponseCode,
			"transaction_id", result.TransactionID)
		return nil, &DeclineError{Text: result.ResponseText, Code: result.ResponseCode}
	}
	return result, nil
}

// scrub returns a copy of params safe for logging.
func scrub(params url.Values) url.Values {
	clean := make(url.Values, len(params))
	for key, vals := range params {
		switch key {
		case "security_key", "payment_token":
			clean.Set(key, "[redacted]")
		default:
			clean[key] = vals
		}
	}
	return clean
}
