package management

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-pay/internal/obs"
)

// APIError is the error shape returned by the merchant management API.
type APIError struct {
	Status    int    `json:"status"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	ErrorType string `json:"errorType"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("management api: %s (status %d, code %s)", e.Message, e.Status, e.ErrorCode)
}

// Me describes the API credential details returned by GET /me.
type Me struct {
	ClientKey string   `json:"clientKey"`
	Roles     []string `json:"roles"`
}

// Merchant is a single merchant account entry.
type Merchant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PageLink is a hypermedia link in a paged collection response.
type PageLink struct {
	Href string `json:"href"`
}

// MerchantPage is one page of the merchant account collection.
type MerchantPage struct {
	ItemsTotal int        `json:"itemsTotal"`
	PagesTotal int        `json:"pagesTotal"`
	Data       []Merchant `json:"data"`
	Links      struct {
		Next *PageLink `json:"next"`
	} `json:"_links"`
}

// WebhookRequest configures a merchant webhook.
type WebhookRequest struct {
	URL                 string `json:"url"`
	Username            string `json:"username"`
	Password            string `json:"password"`
	CommunicationFormat string `json:"communicationFormat"`
	Active              bool   `json:"active"`
	Type                string `json:"type,omitempty"`
}

// Webhook is a configured merchant webhook.
type Webhook struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
}

// HmacKey is the response of the HMAC generation endpoint.
type HmacKey struct {
	HmacKey string `json:"hmacKey"`
}

// AllowedOrigin is a registered client-side origin.
type AllowedOrigin struct {
	ID     string `json:"id"`
	Domain string `json:"domain"`
}

// AllowedOriginList wraps the allowed origin collection.
type AllowedOriginList struct {
	Data []AllowedOrigin `json:"data"`
}

// TestWebhookResponse is the outcome of a webhook test dispatch.
type TestWebhookResponse struct {
	Data []struct {
		MerchantID   string `json:"merchantId"`
		Output       string `json:"output"`
		RequestSent  string `json:"requestSent"`
		ResponseCode string `json:"responseCode"`
		ResponseTime string `json:"responseTime"`
		Status       string `json:"status"`
	} `json:"data"`
}

// Client is a thin JSON client for the merchant management API. A client is
// bound to one API key and one environment base URL.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// NewClient builds a client with an instrumented transport.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:  apiKey,
		HTTP: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Me retrieves the credential details for the configured API key.
func (c *Client) Me(ctx context.Context) (Me, error) {
	var out Me
	err := c.do(ctx, "me", http.MethodGet, "/me", nil, nil, &out)
	return out, err
}

// ListMerchants fetches one page of the merchant account collection.
func (c *Client) ListMerchants(ctx context.Context, pageSize, pageNumber int) (MerchantPage, error) {
	query := url.Values{}
	query.Set("pageSize", strconv.Itoa(pageSize))
	if pageNumber > 1 {
		query.Set("pageNumber", strconv.Itoa(pageNumber))
	}
	var out MerchantPage
	err := c.do(ctx, "merchants.list", http.MethodGet, "/merchants", query, nil, &out)
	return out, err
}

// CreateWebhook registers a new webhook for the merchant account.
func (c *Client) CreateWebhook(ctx context.Context, merchantID string, req WebhookRequest) (Webhook, error) {
	var out Webhook
	err := c.do(ctx, "webhooks.create", http.MethodPost, "/merchants/"+url.PathEscape(merchantID)+"/webhooks", nil, req, &out)
	return out, err
}

// UpdateWebhook updates an existing webhook configuration.
func (c *Client) UpdateWebhook(ctx context.Context, merchantID, webhookID string, req WebhookRequest) (Webhook, error) {
	var out Webhook
	path := "/merchants/" + url.PathEscape(merchantID) + "/webhooks/" + url.PathEscape(webhookID)
	err := c.do(ctx, "webhooks.update", http.MethodPatch, path, nil, req, &out)
	return out, err
}

// GenerateHmac creates a fresh HMAC key for the webhook.
func (c *Client) GenerateHmac(ctx context.Context, merchantID, webhookID string) (HmacKey, error) {
	var out HmacKey
	path := "/merchants/" + url.PathEscape(merchantID) + "/webhooks/" + url.PathEscape(webhookID) + "/generateHmac"
	err := c.do(ctx, "webhooks.generateHmac", http.MethodPost, path, nil, struct{}{}, &out)
	return out, err
}

// ListAllowedOrigins fetches the origins registered for the API credential.
func (c *Client) ListAllowedOrigins(ctx context.Context) (AllowedOriginList, error) {
	var out AllowedOriginList
	err := c.do(ctx, "allowedOrigins.list", http.MethodGet, "/allowedOrigins", nil, nil, &out)
	return out, err
}

// CreateAllowedOrigin registers a new origin for the API credential.
func (c *Client) CreateAllowedOrigin(ctx context.Context, domain string) error {
	body := map[string]string{"domain": domain}
	return c.do(ctx, "allowedOrigins.create", http.MethodPost, "/allowedOrigins", nil, body, nil)
}

// TestWebhook asks the remote API to dispatch test notifications.
func (c *Client) TestWebhook(ctx context.Context, merchantID, webhookID string, types []string) (TestWebhookResponse, error) {
	body := map[string][]string{"types": types}
	var out TestWebhookResponse
	path := "/merchants/" + url.PathEscape(merchantID) + "/webhooks/" + url.PathEscape(webhookID) + "/test"
	err := c.do(ctx, "webhooks.test", http.MethodPost, path, nil, body, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	if c == nil || strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("management client not configured")
	}
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", c.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		observeCall(op, "transport_error")
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		observeCall(op, "read_error")
		return err
	}
	observeCall(op, strconv.Itoa(resp.StatusCode))

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
			if apiErr.Message == "" {
				apiErr.Message = http.StatusText(resp.StatusCode)
			}
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func observeCall(op, status string) {
	if obs.ManagementCallsTotal != nil {
		obs.ManagementCallsTotal.WithLabelValues(op, status).Inc()
	}
}
