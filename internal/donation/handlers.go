package donation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-pay/internal/common"
)

// Handler exposes the donation capture endpoint.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type donateAmount struct {
	Currency string `json:"currency" validate:"required,len=3,uppercase"`
	Value    int64  `json:"value" validate:"required,gt=0"`
}

type donateReq struct {
	OrderID   string       `json:"orderId" validate:"required"`
	Amount    donateAmount `json:"amount" validate:"required"`
	ReturnURL string       `json:"returnUrl" validate:"required,url"`
}

// Donate accepts a donation request for a placed order.
func (h *Handler) Donate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "DONATION_NOT_CONFIGURED", "donation handler unavailable")
		return
	}
	var req donateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body")
		return
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid donation request")
			return
		}
	}

	err := h.Svc.Donate(r.Context(), Request{
		OrderIncrementID: req.OrderID,
		Currency:         req.Amount.Currency,
		AmountMinor:      req.Amount.Value,
		ReturnURL:        req.ReturnURL,
	})
	if err != nil {
		if errors.Is(err, ErrDonationFailed) {
			common.JSONError(w, http.StatusUnprocessableEntity, "DONATION_FAILED", ErrDonationFailed.Error())
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "donation failed")
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{"status": "captured"})
}
