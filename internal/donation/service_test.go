package donation_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pay/internal/currency"
	"github.com/noah-isme/backend-pay/internal/donation"
	"github.com/noah-isme/backend-pay/internal/store"
)

type captureSpy struct {
	payloads []map[string]any
	err      error
}

func (c *captureSpy) Execute(_ context.Context, payload map[string]any) error {
	c.payloads = append(c.payloads, payload)
	return c.err
}

func testOrder(mutate ...func(*store.Order)) store.Order {
	o := store.Order{
		IncrementID: "000000123",
		CustomerID:  "7",
		Amounts: currency.Order{
			StoreID:           "1",
			BaseCurrencyCode:  "EUR",
			OrderCurrencyCode: "USD",
			GrandTotal:        decimal.RequireFromString("100.00"),
			ChargedCurrency:   currency.ModeDisplay,
		},
		Payment: store.Payment{
			Method: "cc",
			AdditionalInfo: map[string]string{
				store.InfoDonationToken: "tok-1",
				store.InfoPSPReference:  "psp-1",
			},
		},
	}
	for _, fn := range mutate {
		fn(&o)
	}
	return o
}

func newDonationService(orders store.Orders, capture donation.CaptureCommand) *donation.Service {
	return &donation.Service{
		Orders:     orders,
		Reconciler: &currency.Reconciler{},
		Capture:    capture,
		Logger:     zerolog.Nop(),
		Amounts: []decimal.Decimal{
			decimal.RequireFromString("1"),
			decimal.RequireFromString("5"),
			decimal.RequireFromString("10"),
		},
		CardMethod: "cc",
		TxVariants: map[string]string{"ideal_ext": "ideal"},
	}
}

func validRequest() donation.Request {
	return donation.Request{
		OrderIncrementID: "000000123",
		Currency:         "USD",
		AmountMinor:      500,
		ReturnURL:        "https://shop.example.com/checkout/success",
	}
}

func TestDonateCapturesAndClearsToken(t *testing.T) {
	orders := store.NewMemoryOrders(testOrder())
	capture := &captureSpy{}
	svc := newDonationService(orders, capture)

	require.NoError(t, svc.Donate(context.Background(), validRequest()))
	require.Len(t, capture.payloads, 1)

	payload := capture.payloads[0]
	require.Equal(t, "tok-1", payload["donationToken"])
	require.Equal(t, "psp-1", payload["donationOriginalPspReference"])
	require.Equal(t, "000000123", payload["reference"])
	require.Equal(t, map[string]any{"type": "scheme"}, payload["paymentMethod"])
	require.Equal(t, map[string]any{"currency": "USD", "value": int64(500)}, payload["amount"])
	require.Equal(t, "007", payload["shopperReference"])

	saved, err := orders.ByIncrementID(context.Background(), "000000123")
	require.NoError(t, err)
	require.NotContains(t, saved.Payment.AdditionalInfo, store.InfoDonationToken)
}

func TestDonateGuestShopperReference(t *testing.T) {
	orders := store.NewMemoryOrders(testOrder(func(o *store.Order) { o.CustomerID = "" }))
	capture := &captureSpy{}
	svc := newDonationService(orders, capture)

	require.NoError(t, svc.Donate(context.Background(), validRequest()))

	ref, ok := capture.payloads[0]["shopperReference"].(string)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(ref, "000000123"))
	require.Greater(t, len(ref), len("000000123"))
}

func TestDonateAlternativeVariant(t *testing.T) {
	orders := store.NewMemoryOrders(testOrder(func(o *store.Order) { o.Payment.Method = "ideal_ext" }))
	capture := &captureSpy{}
	svc := newDonationService(orders, capture)

	require.NoError(t, svc.Donate(context.Background(), validRequest()))
	require.Equal(t, map[string]any{"type": "ideal"}, capture.payloads[0]["paymentMethod"])
}

func TestDonateRejectsUnknownOrder(t *testing.T) {
	svc := newDonationService(store.NewMemoryOrders(), &captureSpy{})
	req := validRequest()
	req.OrderIncrementID = "missing"
	require.ErrorIs(t, svc.Donate(context.Background(), req), donation.ErrDonationFailed)
}

func TestDonateRejectsWithoutToken(t *testing.T) {
	orders := store.NewMemoryOrders(testOrder(func(o *store.Order) {
		delete(o.Payment.AdditionalInfo, store.InfoDonationToken)
	}))
	capture := &captureSpy{}
	svc := newDonationService(orders, capture)

	require.ErrorIs(t, svc.Donate(context.Background(), validRequest()), donation.ErrDonationFailed)
	require.Empty(t, capture.payloads)
}

func TestDonateRejectsCurrencyMismatch(t *testing.T) {
	capture := &captureSpy{}
	svc := newDonationService(store.NewMemoryOrders(testOrder()), capture)

	req := validRequest()
	req.Currency = "EUR"
	require.ErrorIs(t, svc.Donate(context.Background(), req), donation.ErrDonationFailed)
	require.Empty(t, capture.payloads)
}

func TestDonateChargedCurrencyModeControlsMatch(t *testing.T) {
	// An order charged in base currency donates in base currency.
	orders := store.NewMemoryOrders(testOrder(func(o *store.Order) {
		o.Amounts.ChargedCurrency = currency.ModeBase
	}))
	capture := &captureSpy{}
	svc := newDonationService(orders, capture)

	req := validRequest()
	req.Currency = "EUR"
	require.NoError(t, svc.Donate(context.Background(), req))

	req.Currency = "USD"
	require.ErrorIs(t, svc.Donate(context.Background(), req), donation.ErrDonationFailed)
}

func TestDonateRejectsAmountOutsideList(t *testing.T) {
	capture := &captureSpy{}
	svc := newDonationService(store.NewMemoryOrders(testOrder()), capture)

	req := validRequest()
	req.AmountMinor = 250
	require.ErrorIs(t, svc.Donate(context.Background(), req), donation.ErrDonationFailed)
	require.Empty(t, capture.payloads)
}

func TestDonateRejectsIneligiblePaymentMethod(t *testing.T) {
	orders := store.NewMemoryOrders(testOrder(func(o *store.Order) { o.Payment.Method = "banktransfer" }))
	capture := &captureSpy{}
	svc := newDonationService(orders, capture)

	require.ErrorIs(t, svc.Donate(context.Background(), validRequest()), donation.ErrDonationFailed)
	require.Empty(t, capture.payloads)
}

func TestDonateCaptureFailureIncrementsTryCount(t *testing.T) {
	orders := store.NewMemoryOrders(testOrder())
	capture := &captureSpy{err: errors.New("refused")}
	svc := newDonationService(orders, capture)

	require.ErrorIs(t, svc.Donate(context.Background(), validRequest()), donation.ErrDonationFailed)

	saved, err := orders.ByIncrementID(context.Background(), "000000123")
	require.NoError(t, err)
	require.Equal(t, "1", saved.Payment.AdditionalInfo[store.InfoDonationTryCount])
	require.Equal(t, "tok-1", saved.Payment.AdditionalInfo[store.InfoDonationToken])
}

func TestDonateTokenRevokedAfterFiveFailures(t *testing.T) {
	orders := store.NewMemoryOrders(testOrder())
	capture := &captureSpy{err: errors.New("refused")}
	svc := newDonationService(orders, capture)

	for i := 1; i <= 5; i++ {
		require.ErrorIs(t, svc.Donate(context.Background(), validRequest()), donation.ErrDonationFailed)

		saved, err := orders.ByIncrementID(context.Background(), "000000123")
		require.NoError(t, err)
		if i < 5 {
			require.Equal(t, strconv.Itoa(i), saved.Payment.AdditionalInfo[store.InfoDonationTryCount])
		} else {
			require.NotContains(t, saved.Payment.AdditionalInfo, store.InfoDonationToken)
			require.NotContains(t, saved.Payment.AdditionalInfo, store.InfoDonationTryCount)
		}
	}

	// The token is gone, so further attempts fail before reaching capture.
	calls := len(capture.payloads)
	require.ErrorIs(t, svc.Donate(context.Background(), validRequest()), donation.ErrDonationFailed)
	require.Len(t, capture.payloads, calls)
}
