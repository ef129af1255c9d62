package donation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-pay/internal/currency"
	"github.com/noah-isme/backend-pay/internal/obs"
	"github.com/noah-isme/backend-pay/internal/store"
)

// ErrDonationFailed is returned for every rejected or failed donation so the
// caller cannot distinguish validation failures from capture failures.
var ErrDonationFailed = errors.New("donation failed")

// maxTryCount is the number of failed captures after which the donation token
// is revoked.
const maxTryCount = 5

// minShopperRefLength pads short customer ids so shopper references stay
// accepted downstream.
const minShopperRefLength = 3

// CaptureCommand submits the donation payment to the processor.
type CaptureCommand interface {
	Execute(ctx context.Context, payload map[string]any) error
}

// Locker serialises concurrent donation attempts for one order.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Request is a validated donation capture request.
type Request struct {
	OrderIncrementID string
	Currency         string
	AmountMinor      int64
	ReturnURL        string
}

// Service validates and captures customer donations against placed orders.
type Service struct {
	Orders     store.Orders
	Reconciler *currency.Reconciler
	Capture    CaptureCommand
	Logger     zerolog.Logger

	// Amounts is the allow-list of donation amounts in major units.
	Amounts []decimal.Decimal
	// CardMethod is the payment method code that maps to the scheme variant.
	CardMethod string
	// TxVariants maps alternative payment method codes to donation variants.
	TxVariants map[string]string

	// Lock guards the read-modify-write of the payment record. Optional.
	Lock    Locker
	LockTTL time.Duration
}

// Donate validates the request against the order's payment record and captures
// the donation. All rejections surface as ErrDonationFailed.
func (s *Service) Donate(ctx context.Context, req Request) error {
	ctx, span := otel.Tracer("donation.Service").Start(ctx, "Service.Donate")
	defer span.End()
	span.SetAttributes(attribute.String("order.increment_id", req.OrderIncrementID))

	if s.Lock == nil {
		return s.donate(ctx, req)
	}
	return s.Lock.WithLock(ctx, "donation:order:"+req.OrderIncrementID, s.LockTTL, func(ctx context.Context) error {
		return s.donate(ctx, req)
	})
}

func (s *Service) donate(ctx context.Context, req Request) error {
	order, err := s.Orders.ByIncrementID(ctx, req.OrderIncrementID)
	if err != nil {
		return s.reject(err, req.OrderIncrementID, "order not found")
	}

	token := order.Payment.AdditionalInfo[store.InfoDonationToken]
	if strings.TrimSpace(token) == "" {
		return s.reject(nil, req.OrderIncrementID, "order has no donation token")
	}

	orderAmount := s.Reconciler.OrderAmount(order.Amounts, false)
	if !strings.EqualFold(orderAmount.CurrencyCode, req.Currency) {
		return s.reject(nil, req.OrderIncrementID, "donation currency does not match order")
	}
	if !s.amountAllowed(req.AmountMinor, req.Currency) {
		return s.reject(nil, req.OrderIncrementID, "donation amount not in configured list")
	}

	variant, ok := s.donationVariant(order.Payment.Method)
	if !ok {
		return s.reject(nil, req.OrderIncrementID, "payment method not eligible for donations")
	}

	payload := map[string]any{
		"amount": map[string]any{
			"currency": req.Currency,
			"value":    req.AmountMinor,
		},
		"reference":                    order.IncrementID,
		"paymentMethod":                map[string]any{"type": variant},
		"donationToken":                token,
		"donationOriginalPspReference": order.Payment.AdditionalInfo[store.InfoPSPReference],
		"returnUrl":                    req.ReturnURL,
		"shopperReference":             shopperReference(order),
	}

	start := time.Now()
	captureErr := s.Capture.Execute(ctx, payload)
	if obs.DonationCaptureLatency != nil {
		obs.DonationCaptureLatency.Observe(obs.DurationMillis(time.Since(start)))
	}
	if captureErr != nil {
		if err := s.recordFailure(ctx, order); err != nil {
			s.Logger.Error().Err(err).Str("order", order.IncrementID).Msg("persist donation try count")
		}
		return s.reject(captureErr, req.OrderIncrementID, "donation capture failed")
	}

	if err := s.clearDonationData(ctx, order); err != nil {
		s.Logger.Error().Err(err).Str("order", order.IncrementID).Msg("clear donation token")
	}
	observeAttempt("success")
	s.Logger.Info().
		Str("order", order.IncrementID).
		Str("currency", req.Currency).
		Int64("amount_minor", req.AmountMinor).
		Msg("donation captured")
	return nil
}

// amountAllowed reports whether the requested minor-unit amount matches one of
// the configured donation amounts.
func (s *Service) amountAllowed(amountMinor int64, currencyCode string) bool {
	for _, a := range s.Amounts {
		if currency.MinorUnits(a, currencyCode) == amountMinor {
			return true
		}
	}
	return false
}

// donationVariant maps the order's payment method to the donation payment
// method type. Card payments donate through the scheme variant.
func (s *Service) donationVariant(method string) (string, bool) {
	if method == s.CardMethod {
		return "scheme", true
	}
	variant, ok := s.TxVariants[method]
	return variant, ok && variant != ""
}

// recordFailure bumps the try counter and revokes the token after the cap.
func (s *Service) recordFailure(ctx context.Context, order store.Order) error {
	info := cloneInfo(order.Payment.AdditionalInfo)
	count, _ := strconv.Atoi(info[store.InfoDonationTryCount])
	count++
	if count >= maxTryCount {
		delete(info, store.InfoDonationToken)
		delete(info, store.InfoDonationTryCount)
	} else {
		info[store.InfoDonationTryCount] = strconv.Itoa(count)
	}
	return s.Orders.SavePaymentInfo(ctx, order.IncrementID, info)
}

// clearDonationData removes the single-use token after a successful capture.
func (s *Service) clearDonationData(ctx context.Context, order store.Order) error {
	info := cloneInfo(order.Payment.AdditionalInfo)
	delete(info, store.InfoDonationToken)
	delete(info, store.InfoDonationTryCount)
	return s.Orders.SavePaymentInfo(ctx, order.IncrementID, info)
}

func (s *Service) reject(cause error, orderID, reason string) error {
	observeAttempt("failed")
	evt := s.Logger.Warn().Str("order", orderID).Str("reason", reason)
	if cause != nil {
		evt = evt.Err(cause)
	}
	evt.Msg("donation rejected")
	return ErrDonationFailed
}

// shopperReference derives a stable shopper id. Registered customers use their
// zero-padded id; guests get the order increment id plus a random suffix.
func shopperReference(order store.Order) string {
	if id := strings.TrimSpace(order.CustomerID); id != "" {
		for len(id) < minShopperRefLength {
			id = "0" + id
		}
		return id
	}
	return order.IncrementID + uuid.NewString()
}

func cloneInfo(info map[string]string) map[string]string {
	out := make(map[string]string, len(info))
	for k, v := range info {
		out[k] = v
	}
	return out
}

func observeAttempt(result string) {
	if obs.DonationAttemptsTotal != nil {
		obs.DonationAttemptsTotal.WithLabelValues(result).Inc()
	}
}
