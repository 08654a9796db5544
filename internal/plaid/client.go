package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	exchangePath   = "/item/public_token/exchange"
	linkTokenPath  = "/link/token/create"
	itemRemovePath = "/item/remove"
)

var environments = map[string]string{
	"sandbox":     "https://sandbox.plaid.com",
	"development": "https://development.plaid.com",
	"production":  "https://production.plaid.com",
}

// API is the subset of the Plaid API this service depends on.
type API interface {
	ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResult, error)
	CreateLinkToken(ctx context.Context, params CreateLinkTokenParams) (*LinkTokenResult, error)
	RemoveItem(ctx context.Context, accessToken string) error
}

// Client handles communication with the Plaid API
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
}

// Ensure Client implements API
var _ API = (*Client)(nil)

type Option func(*Client)

// WithBaseURL overrides the environment base URL. Used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// NewClient creates a new Plaid API client for the given environment.
func NewClient(environment, clientID, secret string, timeout time.Duration, opts ...Option) *Client {
	baseURL, ok := environments[environment]
	if !ok {
		baseURL = environments["sandbox"]
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:  baseURL,
		clientID: clientID,
		secret:   secret,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExchangeResult is the durable credential pair a public token trades for.
type ExchangeResult struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

type CreateLinkTokenParams struct {
	UserID     string
	WebhookURL string
	Products   []string
}

// LinkTokenResult is the short-lived token the client opens Link with.
type LinkTokenResult struct {
	LinkToken  string `json:"link_token"`
	Expiration string `json:"expiration"`
	RequestID  string `json:"request_id"`
}

// apiError is the error body Plaid returns on non-2xx responses.
type apiError struct {
	ErrorType      string `json:"error_type"`
	ErrorCode      string `json:"error_code"`
	ErrorMessage   string `json:"error_message"`
	DisplayMessage string `json:"display_message"`
	RequestID      string `json:"request_id"`
}

// ExchangePublicToken trades a public token for an access token and the
// Plaid item id. Token-level rejections and service failures come back
// as TokenExchangeError with distinct kinds.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResult, error) {
	body := map[string]string{
		"client_id":    c.clientID,
		"secret":       c.secret,
		"public_token": publicToken,
	}

	var result ExchangeResult
	if err := c.post(ctx, exchangePath, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateLinkToken issues a link token for a new Link flow.
func (c *Client) CreateLinkToken(ctx context.Context, params CreateLinkTokenParams) (*LinkTokenResult, error) {
	products := params.Products
	if len(products) == 0 {
		products = []string{"transactions"}
	}

	body := map[string]any{
		"client_id":     c.clientID,
		"secret":        c.secret,
		"client_name":   "finbridge",
		"language":      "en",
		"country_codes": []string{"US"},
		"products":      products,
		"user": map[string]string{
			"client_user_id": params.UserID,
		},
	}
	if params.WebhookURL != "" {
		body["webhook"] = params.WebhookURL
	}

	var result LinkTokenResult
	if err := c.post(ctx, linkTokenPath, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RemoveItem revokes the item's access token on the Plaid side.
func (c *Client) RemoveItem(ctx context.Context, accessToken string) error {
	body := map[string]string{
		"client_id":    c.clientID,
		"secret":       c.secret,
		"access_token": accessToken,
	}
	return c.post(ctx, itemRemovePath, body, &struct{}{})
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return unavailableError("plaid request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return unavailableError("read plaid response", err)
	}

	if resp.StatusCode >= 500 {
		return unavailableError(fmt.Sprintf("plaid returned %d", resp.StatusCode), nil)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.Unmarshal(data, &apiErr); err != nil || apiErr.ErrorType == "" {
			return unavailableError(fmt.Sprintf("plaid returned %d", resp.StatusCode), nil)
		}
		if apiErr.ErrorType == "API_ERROR" || apiErr.ErrorType == "RATE_LIMIT_EXCEEDED" {
			return unavailableError(apiErr.ErrorMessage, nil)
		}
		return invalidTokenError(apiErr.ErrorCode, apiErr.ErrorMessage)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode plaid response: %w", err)
	}
	return nil
}
