package management

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-pay/internal/common"
)

// Handler exposes the admin configuration endpoints backed by the merchant
// management API.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type accountsReq struct {
	APIKey string `json:"apiKey" validate:"required"`
	Mode   string `json:"mode" validate:"required,oneof=live test"`
}

// MerchantAccounts resolves the client key and merchant accounts for an API key.
func (h *Handler) MerchantAccounts(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "MANAGEMENT_NOT_CONFIGURED", "management handler unavailable")
		return
	}
	var req accountsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body")
		return
	}
	if err := h.validate(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "apiKey and mode are required")
		return
	}
	result, err := h.Svc.MerchantAccountsAndClientKey(r.Context(), req.APIKey, req.Mode)
	if err != nil {
		renderAPIError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, result)
}

// SetupWebhook creates or updates the merchant webhook and rotates its HMAC key.
func (h *Handler) SetupWebhook(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "MANAGEMENT_NOT_CONFIGURED", "management handler unavailable")
		return
	}
	var req SetupWebhookInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body")
		return
	}
	if err := h.validate(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid webhook configuration")
		return
	}
	if err := h.Svc.SetupWebhook(r.Context(), req); err != nil {
		renderAPIError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{"status": "configured"})
}

type testWebhookReq struct {
	MerchantAccount string `json:"merchantAccount" validate:"required"`
	Mode            string `json:"mode" validate:"required,oneof=live test"`
}

// TestWebhook dispatches a test notification to the configured webhook.
func (h *Handler) TestWebhook(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "MANAGEMENT_NOT_CONFIGURED", "management handler unavailable")
		return
	}
	var req testWebhookReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body")
		return
	}
	if err := h.validate(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "merchantAccount and mode are required")
		return
	}
	result, err := h.Svc.TestWebhook(r.Context(), req.MerchantAccount, req.Mode)
	if err != nil {
		renderAPIError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, result)
}

type originsReq struct {
	APIKey string `json:"apiKey" validate:"required"`
	Mode   string `json:"mode" validate:"required,oneof=live test"`
	Domain string `json:"domain" validate:"omitempty,url"`
}

// AllowedOrigins lists the origins registered for the credential.
func (h *Handler) AllowedOrigins(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "MANAGEMENT_NOT_CONFIGURED", "management handler unavailable")
		return
	}
	apiKey := r.Header.Get("X-API-Key")
	mode := strings.ToLower(r.URL.Query().Get("mode"))
	if mode != "live" && mode != "test" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "mode must be live or test")
		return
	}
	origins, err := h.Svc.AllowedOrigins(r.Context(), apiKey, mode)
	if err != nil {
		renderAPIError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"origins": origins})
}

// SaveAllowedOrigin registers a new origin for the credential.
func (h *Handler) SaveAllowedOrigin(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "MANAGEMENT_NOT_CONFIGURED", "management handler unavailable")
		return
	}
	var req originsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body")
		return
	}
	if err := h.validate(req); err != nil || strings.TrimSpace(req.Domain) == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "domain must be a valid URL")
		return
	}
	if err := h.Svc.SaveAllowedOrigin(r.Context(), req.APIKey, req.Mode, req.Domain); err != nil {
		renderAPIError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *Handler) validate(v any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(v)
}

// renderAPIError maps remote API rejections to their upstream status and
// everything else to a bad gateway.
func renderAPIError(w http.ResponseWriter, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		status := apiErr.Status
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		common.JSONError(w, status, "MANAGEMENT_API_ERROR", apiErr.Message)
		return
	}
	common.RenderError(w, err, http.StatusBadGateway, "MANAGEMENT_ERROR")
}
