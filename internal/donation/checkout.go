package donation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// refusedResultCodes are processor outcomes treated as capture failures even
// when the HTTP call itself succeeds.
var refusedResultCodes = map[string]struct{}{
	"Refused":   {},
	"Error":     {},
	"Cancelled": {},
}

// CheckoutClient captures donations through the payment processor's checkout
// API. It implements CaptureCommand.
type CheckoutClient struct {
	BaseURL         string
	APIKey          string
	MerchantAccount string
	HTTP            *http.Client
}

// NewCheckoutClient builds a capture client with an instrumented transport.
func NewCheckoutClient(baseURL, apiKey, merchantAccount string, timeout time.Duration) *CheckoutClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CheckoutClient{
		BaseURL:         strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:          apiKey,
		MerchantAccount: merchantAccount,
		HTTP: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Execute implements CaptureCommand by posting the donation payload.
func (c *CheckoutClient) Execute(ctx context.Context, payload map[string]any) error {
	if c == nil || c.BaseURL == "" {
		return fmt.Errorf("checkout client not configured")
	}
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["merchantAccount"] = c.MerchantAccount

	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode donation: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/donations", bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.APIKey)

	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("donation capture rejected: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out struct {
		Status     string `json:"status"`
		ResultCode string `json:"resultCode"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("decode donation response: %w", err)
		}
	}
	if _, refused := refusedResultCodes[out.ResultCode]; refused {
		return fmt.Errorf("donation capture refused: %s", out.ResultCode)
	}
	if strings.EqualFold(out.Status, "refused") {
		return fmt.Errorf("donation capture refused")
	}
	return nil
}
