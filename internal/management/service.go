package management

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-pay/internal/common"
	"github.com/noah-isme/backend-pay/internal/store"
)

// merchantPageSize is the fixed page size used when listing merchant accounts.
const merchantPageSize = 100

// maskedKeyPattern matches an API key that the admin UI sent back masked.
var maskedKeyPattern = regexp.MustCompile(`^\*+$`)

// API is the subset of the management client the service depends on.
type API interface {
	Me(ctx context.Context) (Me, error)
	ListMerchants(ctx context.Context, pageSize, pageNumber int) (MerchantPage, error)
	CreateWebhook(ctx context.Context, merchantID string, req WebhookRequest) (Webhook, error)
	UpdateWebhook(ctx context.Context, merchantID, webhookID string, req WebhookRequest) (Webhook, error)
	GenerateHmac(ctx context.Context, merchantID, webhookID string) (HmacKey, error)
	ListAllowedOrigins(ctx context.Context) (AllowedOriginList, error)
	CreateAllowedOrigin(ctx context.Context, domain string) error
	TestWebhook(ctx context.Context, merchantID, webhookID string, types []string) (TestWebhookResponse, error)
}

// KeySource supplies fallback API keys from static configuration.
type KeySource interface {
	ManagementAPIKey(mode string) string
	ManagementBaseURL(mode string) string
}

// Service wraps the management API with the merchant onboarding operations
// exposed to the admin surface.
type Service struct {
	Settings    store.Settings
	Keys        KeySource
	Logger      zerolog.Logger
	HTTPTimeout time.Duration

	// Dial overrides client construction, used by tests.
	Dial func(baseURL, apiKey string, timeout time.Duration) API
}

// AccountsResult is the outcome of MerchantAccountsAndClientKey.
type AccountsResult struct {
	ClientKey        string   `json:"clientKey"`
	MerchantAccounts []string `json:"associatedMerchantAccounts"`
}

// SetupWebhookInput collects the credentials for webhook provisioning.
type SetupWebhookInput struct {
	APIKey          string `json:"apiKey" validate:"required"`
	MerchantAccount string `json:"merchantAccount" validate:"required"`
	Username        string `json:"username" validate:"required"`
	Password        string `json:"password" validate:"required"`
	URL             string `json:"url" validate:"required,url"`
	Mode            string `json:"mode" validate:"required,oneof=live test"`
}

// TestWebhookResult carries either the remote response or the API error
// message from a webhook test. Exactly one side is set.
type TestWebhookResult struct {
	Response *TestWebhookResponse `json:"response,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// MerchantAccountsAndClientKey retrieves the credential's client key and the
// ids of all associated merchant accounts, paginating the merchant collection
// until the accumulated count reaches the server-reported total.
func (s *Service) MerchantAccountsAndClientKey(ctx context.Context, apiKey, mode string) (AccountsResult, error) {
	ctx, span := otel.Tracer("management.Service").Start(ctx, "Service.MerchantAccountsAndClientKey")
	defer span.End()
	span.SetAttributes(attribute.String("management.mode", mode))

	api, err := s.api(ctx, mode, apiKey)
	if err != nil {
		return AccountsResult{}, err
	}
	me, err := api.Me(ctx)
	if err != nil {
		return AccountsResult{}, err
	}

	accounts := make([]string, 0, merchantPageSize)
	page := 1
	resp, err := api.ListMerchants(ctx, merchantPageSize, page)
	if err != nil {
		return AccountsResult{}, err
	}
	for len(accounts) < resp.ItemsTotal {
		for _, m := range resp.Data {
			accounts = append(accounts, m.ID)
		}
		if resp.Links.Next == nil || len(resp.Data) == 0 {
			break
		}
		page++
		resp, err = api.ListMerchants(ctx, merchantPageSize, page)
		if err != nil {
			return AccountsResult{}, err
		}
	}
	span.SetAttributes(attribute.Int("management.merchant_accounts", len(accounts)))

	return AccountsResult{ClientKey: me.ClientKey, MerchantAccounts: accounts}, nil
}

// SetupWebhook creates or updates the merchant webhook, then generates and
// persists a fresh HMAC key for the selected mode. The webhook id is stored on
// first creation and reused afterwards.
func (s *Service) SetupWebhook(ctx context.Context, in SetupWebhookInput) error {
	ctx, span := otel.Tracer("management.Service").Start(ctx, "Service.SetupWebhook")
	defer span.End()

	api, err := s.api(ctx, in.Mode, in.APIKey)
	if err != nil {
		return err
	}

	params := WebhookRequest{
		URL:                 in.URL,
		Username:            in.Username,
		Password:            in.Password,
		CommunicationFormat: "json",
		Active:              true,
	}

	webhookID, err := s.storedWebhookID(ctx)
	if err != nil {
		return err
	}
	if webhookID != "" {
		if _, err := api.UpdateWebhook(ctx, in.MerchantAccount, webhookID, params); err != nil {
			return err
		}
	} else {
		params.Type = "standard"
		created, err := api.CreateWebhook(ctx, in.MerchantAccount, params)
		if err != nil {
			return err
		}
		webhookID = created.ID
		if err := s.Settings.Set(ctx, store.KeyWebhookID, webhookID); err != nil {
			return fmt.Errorf("persist webhook id: %w", err)
		}
	}

	hmac, err := api.GenerateHmac(ctx, in.MerchantAccount, webhookID)
	if err != nil {
		return err
	}
	key := store.KeyHmacKeyTest
	if strings.EqualFold(in.Mode, "live") {
		key = store.KeyHmacKeyLive
	}
	if err := s.Settings.Set(ctx, key, hmac.HmacKey); err != nil {
		return fmt.Errorf("persist hmac key: %w", err)
	}

	s.Logger.Info().
		Str("merchant_account", in.MerchantAccount).
		Str("webhook_id", webhookID).
		Str("mode", in.Mode).
		Msg("webhook credentials configured")
	return nil
}

// AllowedOrigins lists the origins registered for the credential.
func (s *Service) AllowedOrigins(ctx context.Context, apiKey, mode string) ([]string, error) {
	api, err := s.api(ctx, mode, apiKey)
	if err != nil {
		return nil, err
	}
	resp, err := api.ListAllowedOrigins(ctx)
	if err != nil {
		return nil, err
	}
	domains := make([]string, 0, len(resp.Data))
	for _, origin := range resp.Data {
		domains = append(domains, origin.Domain)
	}
	return domains, nil
}

// SaveAllowedOrigin registers a new origin for the credential.
func (s *Service) SaveAllowedOrigin(ctx context.Context, apiKey, mode, domain string) error {
	api, err := s.api(ctx, mode, apiKey)
	if err != nil {
		return err
	}
	return api.CreateAllowedOrigin(ctx, domain)
}

// TestWebhook dispatches a test notification to the configured webhook. A
// rejection by the remote API is folded into the result instead of being
// returned as an error, so callers always get a renderable outcome; transport
// failures still propagate.
func (s *Service) TestWebhook(ctx context.Context, merchantAccount, mode string) (TestWebhookResult, error) {
	webhookID, err := s.storedWebhookID(ctx)
	if err != nil {
		return TestWebhookResult{}, err
	}
	if webhookID == "" {
		return TestWebhookResult{}, common.NewAppError("WEBHOOK_NOT_CONFIGURED", "no webhook configured", http.StatusPreconditionFailed, nil)
	}

	api, err := s.api(ctx, mode, "")
	if err != nil {
		return TestWebhookResult{}, err
	}
	resp, err := api.TestWebhook(ctx, merchantAccount, webhookID, []string{"AUTHORISATION"})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			s.Logger.Error().Err(apiErr).Str("webhook_id", webhookID).Msg("webhook test rejected")
			return TestWebhookResult{Error: apiErr.Message}, nil
		}
		return TestWebhookResult{}, err
	}

	s.Logger.Info().Str("webhook_id", webhookID).Interface("response", resp).Msg("webhook test dispatched")
	return TestWebhookResult{Response: &resp}, nil
}

func (s *Service) storedWebhookID(ctx context.Context) (string, error) {
	if s.Settings == nil {
		return "", errors.New("management service: settings not configured")
	}
	id, err := s.Settings.Get(ctx, store.KeyWebhookID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return id, err
}

// api resolves the effective API key and opens a client for the mode.
func (s *Service) api(ctx context.Context, mode, apiKey string) (API, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" || maskedKeyPattern.MatchString(key) {
		resolved, err := s.storedAPIKey(ctx, mode)
		if err != nil {
			return nil, err
		}
		key = resolved
	}
	if key == "" {
		return nil, common.NewAppError("API_KEY_MISSING", "no api key available", http.StatusBadRequest, nil)
	}

	baseURL := ""
	if s.Keys != nil {
		baseURL = s.Keys.ManagementBaseURL(mode)
	}
	if s.Dial != nil {
		return s.Dial(baseURL, key, s.HTTPTimeout), nil
	}
	return NewClient(baseURL, key, s.HTTPTimeout), nil
}

// storedAPIKey prefers a key persisted via settings, then the static config.
func (s *Service) storedAPIKey(ctx context.Context, mode string) (string, error) {
	settingKey := store.KeyAPIKeyTest
	if strings.EqualFold(mode, "live") {
		settingKey = store.KeyAPIKeyLive
	}
	if s.Settings != nil {
		key, err := s.Settings.Get(ctx, settingKey)
		if err == nil && strings.TrimSpace(key) != "" {
			return key, nil
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
	}
	if s.Keys != nil {
		return s.Keys.ManagementAPIKey(mode), nil
	}
	return "", nil
}
