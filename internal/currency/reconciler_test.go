package currency_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pay/internal/currency"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixedMode(mode currency.Mode) currency.ModeSourceFunc {
	return func(string) currency.Mode { return mode }
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, d(want).Equal(got), "want %s got %s", want, got)
}

func TestOrderAmountUsesStoredMode(t *testing.T) {
	order := currency.Order{
		StoreID:           "1",
		BaseCurrencyCode:  "EUR",
		OrderCurrencyCode: "USD",
		BaseGrandTotal:    d("90.00"),
		GrandTotal:        d("100.00"),
		BaseTotalDue:      d("45.00"),
		TotalDue:          d("50.00"),
		ChargedCurrency:   currency.ModeBase,
	}

	// Store config says display, but the placed order's stored mode wins.
	r := &currency.Reconciler{Modes: fixedMode(currency.ModeDisplay)}
	got := r.OrderAmount(order, false)
	require.Equal(t, "EUR", got.CurrencyCode)
	requireAmount(t, "90.00", got.Amount)
	requireAmount(t, "45.00", got.AmountDue)
}

func TestOrderAmountAtPlacementReadsStoreConfig(t *testing.T) {
	order := currency.Order{
		StoreID:           "1",
		BaseCurrencyCode:  "EUR",
		OrderCurrencyCode: "USD",
		BaseGrandTotal:    d("90.00"),
		GrandTotal:        d("100.00"),
		ChargedCurrency:   currency.ModeBase,
	}

	r := &currency.Reconciler{Modes: fixedMode(currency.ModeDisplay)}
	got := r.OrderAmount(order, true)
	require.Equal(t, "USD", got.CurrencyCode)
	requireAmount(t, "100.00", got.Amount)
}

func TestOrderAmountDefaultsToDisplayWithoutModeSource(t *testing.T) {
	order := currency.Order{
		BaseCurrencyCode:  "EUR",
		OrderCurrencyCode: "USD",
		GrandTotal:        d("100.00"),
	}

	var r *currency.Reconciler
	got := r.OrderAmount(order, true)
	require.Equal(t, "USD", got.CurrencyCode)
}

func TestQuoteAmountModes(t *testing.T) {
	quote := currency.Quote{
		StoreID:           "1",
		BaseCurrencyCode:  "EUR",
		QuoteCurrencyCode: "USD",
		BaseGrandTotal:    d("80.00"),
		GrandTotal:        d("88.00"),
	}

	base := &currency.Reconciler{Modes: fixedMode(currency.ModeBase)}
	got := base.QuoteAmount(quote)
	require.Equal(t, "EUR", got.CurrencyCode)
	requireAmount(t, "80.00", got.Amount)

	display := &currency.Reconciler{Modes: fixedMode(currency.ModeDisplay)}
	got = display.QuoteAmount(quote)
	require.Equal(t, "USD", got.CurrencyCode)
	requireAmount(t, "88.00", got.Amount)
}

func TestQuoteItemAmountDisplayWithoutCompensation(t *testing.T) {
	// Tax-inclusive discount: the platform records row tax of 1 while the
	// incl/excl price gap says 1 per unit, so 2 is folded into the discount.
	item := currency.QuoteItem{
		StoreID:           "1",
		QuoteCurrencyCode: "USD",
		Qty:               d("3"),
		Price:             d("10.00"),
		PriceInclTax:      d("11.00"),
		RowTotal:          d("30.00"),
		TaxAmount:         d("1.00"),
		DiscountAmount:    d("0"),
	}

	r := &currency.Reconciler{Modes: fixedMode(currency.ModeDisplay)}
	got := r.QuoteItemAmount(item)
	require.Equal(t, "USD", got.CurrencyCode)
	requireAmount(t, "10.00", got.Amount)
	requireAmount(t, "1.00", got.TaxAmount)
	requireAmount(t, "2.00", got.DiscountAmount)
	requireAmount(t, "11.00", got.AmountInclTax)
}

func TestQuoteItemAmountDisplayWithCompensation(t *testing.T) {
	item := currency.QuoteItem{
		StoreID:                 "1",
		QuoteCurrencyCode:       "USD",
		Qty:                     d("2"),
		Price:                   d("10.00"),
		PriceInclTax:            d("11.00"),
		RowTotal:                d("20.00"),
		TaxAmount:               d("1.50"),
		DiscountAmount:          d("3.00"),
		DiscountTaxCompensation: d("0.50"),
	}

	r := &currency.Reconciler{Modes: fixedMode(currency.ModeDisplay)}
	got := r.QuoteItemAmount(item)
	requireAmount(t, "10.00", got.Amount)
	requireAmount(t, "1.00", got.TaxAmount)
	requireAmount(t, "3.00", got.DiscountAmount)
}

func TestQuoteItemAmountBase(t *testing.T) {
	item := currency.QuoteItem{
		StoreID:                     "1",
		BaseCurrencyCode:            "EUR",
		Qty:                         d("2"),
		BasePrice:                   d("9.00"),
		BasePriceInclTax:            d("9.90"),
		BaseTaxAmount:               d("1.50"),
		BaseDiscountAmount:          d("1.00"),
		BaseDiscountTaxCompensation: d("0.30"),
	}

	r := &currency.Reconciler{Modes: fixedMode(currency.ModeBase)}
	got := r.QuoteItemAmount(item)
	require.Equal(t, "EUR", got.CurrencyCode)
	requireAmount(t, "9.00", got.Amount)
	requireAmount(t, "0.90", got.TaxAmount)
	requireAmount(t, "1.00", got.DiscountAmount)
	requireAmount(t, "9.90", got.AmountInclTax)
}

func TestQuoteItemAmountZeroQtyGuard(t *testing.T) {
	item := currency.QuoteItem{
		StoreID:          "1",
		BaseCurrencyCode: "EUR",
		Qty:              d("0"),
		BasePrice:        d("9.00"),
		BaseTaxAmount:    d("1.50"),
	}

	r := &currency.Reconciler{Modes: fixedMode(currency.ModeBase)}
	got := r.QuoteItemAmount(item)
	require.True(t, got.TaxAmount.IsZero())

	display := &currency.Reconciler{Modes: fixedMode(currency.ModeDisplay)}
	got = display.QuoteItemAmount(item)
	require.True(t, got.Amount.IsZero())
}

type quoteSaverSpy struct {
	saved *currency.Quote
}

func (s *quoteSaverSpy) SaveQuote(_ context.Context, q *currency.Quote) error {
	s.saved = q
	return nil
}

func TestQuoteShippingAmountBasePersistsCompensation(t *testing.T) {
	quote := &currency.Quote{
		StoreID:          "1",
		BaseCurrencyCode: "EUR",
		Shipping: currency.QuoteAddress{
			BaseShippingAmount:                  d("5.00"),
			BaseShippingInclTax:                 d("6.10"),
			BaseShippingTaxAmount:               d("1.00"),
			BaseShippingDiscountAmount:          d("0.50"),
			BaseShippingDiscountTaxCompensation: d("0.20"),
		},
	}

	saver := &quoteSaverSpy{}
	r := &currency.Reconciler{Modes: fixedMode(currency.ModeBase)}
	got, err := r.QuoteShippingAmount(context.Background(), quote, saver)
	require.NoError(t, err)
	require.Equal(t, "EUR", got.CurrencyCode)
	requireAmount(t, "5.00", got.Amount)
	requireAmount(t, "1.20", got.TaxAmount)
	requireAmount(t, "0.70", got.DiscountAmount)
	requireAmount(t, "6.10", got.AmountInclTax)

	require.NotNil(t, saver.saved)
	requireAmount(t, "0.10", saver.saved.Shipping.BaseDiscountTaxCompensation)
}

func TestQuoteShippingAmountDisplayIsPureRead(t *testing.T) {
	quote := &currency.Quote{
		StoreID:           "1",
		QuoteCurrencyCode: "USD",
		Shipping: currency.QuoteAddress{
			ShippingAmount:         d("5.00"),
			ShippingInclTax:        d("6.00"),
			ShippingTaxAmount:      d("0.80"),
			ShippingDiscountAmount: d("0.50"),
		},
	}

	saver := &quoteSaverSpy{}
	r := &currency.Reconciler{Modes: fixedMode(currency.ModeDisplay)}
	got, err := r.QuoteShippingAmount(context.Background(), quote, saver)
	require.NoError(t, err)
	require.Equal(t, "USD", got.CurrencyCode)
	requireAmount(t, "5.00", got.Amount)
	requireAmount(t, "1.00", got.TaxAmount)
	// 0.50 discount plus the 0.20 shortfall between incl/excl gap and raw tax.
	requireAmount(t, "0.70", got.DiscountAmount)
	require.Nil(t, saver.saved)
}

func TestInvoiceAmountsFollowStoredMode(t *testing.T) {
	inv := currency.Invoice{
		BaseCurrencyCode:      "EUR",
		OrderCurrencyCode:     "USD",
		ChargedCurrency:       currency.ModeBase,
		BaseGrandTotal:        d("90.00"),
		GrandTotal:            d("100.00"),
		BaseShippingAmount:    d("4.00"),
		ShippingAmount:        d("4.40"),
		BaseShippingTaxAmount: d("0.80"),
		ShippingTaxAmount:     d("0.88"),
	}

	r := &currency.Reconciler{}
	got := r.InvoiceAmount(inv)
	require.Equal(t, "EUR", got.CurrencyCode)
	requireAmount(t, "90.00", got.Amount)

	ship := r.InvoiceShippingAmount(inv)
	requireAmount(t, "4.00", ship.Amount)
	requireAmount(t, "0.80", ship.TaxAmount)

	inv.ChargedCurrency = currency.ModeDisplay
	got = r.InvoiceAmount(inv)
	require.Equal(t, "USD", got.CurrencyCode)
	requireAmount(t, "100.00", got.Amount)
}

func TestInvoiceItemAmountPerUnitTax(t *testing.T) {
	item := currency.InvoiceItem{
		OrderCurrencyCode: "USD",
		ChargedCurrency:   currency.ModeDisplay,
		Qty:               d("4"),
		Price:             d("25.00"),
		TaxAmount:         d("2.00"),
	}

	r := &currency.Reconciler{}
	got := r.InvoiceItemAmount(item)
	requireAmount(t, "25.00", got.Amount)
	requireAmount(t, "0.50", got.TaxAmount)

	item.Qty = d("0")
	got = r.InvoiceItemAmount(item)
	require.True(t, got.TaxAmount.IsZero())
}

func TestCreditMemoAmounts(t *testing.T) {
	memo := currency.CreditMemo{
		BaseCurrencyCode:      "EUR",
		OrderCurrencyCode:     "USD",
		ChargedCurrency:       currency.ModeDisplay,
		BaseGrandTotal:        d("45.00"),
		GrandTotal:            d("50.00"),
		BaseTaxAmount:         d("4.50"),
		TaxAmount:             d("5.00"),
		BaseAdjustment:        d("2.00"),
		Adjustment:            d("2.20"),
		BaseShippingAmount:    d("4.00"),
		ShippingAmount:        d("4.40"),
		BaseShippingTaxAmount: d("0.80"),
		ShippingTaxAmount:     d("0.88"),
	}

	r := &currency.Reconciler{}
	got := r.CreditMemoAmount(memo)
	require.Equal(t, "USD", got.CurrencyCode)
	requireAmount(t, "50.00", got.Amount)
	requireAmount(t, "5.00", got.TaxAmount)

	adj := r.CreditMemoAdjustmentAmount(memo)
	requireAmount(t, "2.20", adj.Amount)

	ship := r.CreditMemoShippingAmount(memo)
	requireAmount(t, "4.40", ship.Amount)
	requireAmount(t, "0.88", ship.TaxAmount)

	memo.ChargedCurrency = currency.ModeBase
	got = r.CreditMemoAmount(memo)
	require.Equal(t, "EUR", got.CurrencyCode)
	requireAmount(t, "45.00", got.Amount)
}

func TestCreditMemoItemAmount(t *testing.T) {
	item := currency.CreditMemoItem{
		BaseCurrencyCode: "EUR",
		ChargedCurrency:  currency.ModeBase,
		Qty:              d("2"),
		BasePrice:        d("10.00"),
		BaseTaxAmount:    d("1.00"),
	}

	r := &currency.Reconciler{}
	got := r.CreditMemoItemAmount(item)
	require.Equal(t, "EUR", got.CurrencyCode)
	requireAmount(t, "10.00", got.Amount)
	requireAmount(t, "0.50", got.TaxAmount)
}
