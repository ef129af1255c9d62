package currency

import "github.com/shopspring/decimal"

// The snapshot types below carry only the fields the reconciler reads. The
// host platform owns the real entities; hosts map their records into these
// structs before calling the reconciler.

// Order is a placed (or nearly placed) order snapshot.
type Order struct {
	StoreID           string
	BaseCurrencyCode  string
	OrderCurrencyCode string

	BaseGrandTotal decimal.Decimal
	GrandTotal     decimal.Decimal
	BaseTotalDue   decimal.Decimal
	TotalDue       decimal.Decimal

	// ChargedCurrency is the mode stored on the order at placement. Empty
	// until the order is placed.
	ChargedCurrency Mode
}

// Quote is a not-yet-placed order snapshot.
type Quote struct {
	StoreID           string
	BaseCurrencyCode  string
	QuoteCurrencyCode string

	BaseGrandTotal decimal.Decimal
	GrandTotal     decimal.Decimal

	Shipping QuoteAddress
}

// QuoteItem is a single quote line.
type QuoteItem struct {
	StoreID           string
	BaseCurrencyCode  string
	QuoteCurrencyCode string

	Qty decimal.Decimal

	BasePrice        decimal.Decimal
	Price            decimal.Decimal
	BasePriceInclTax decimal.Decimal
	PriceInclTax     decimal.Decimal
	RowTotal         decimal.Decimal

	BaseTaxAmount      decimal.Decimal
	TaxAmount          decimal.Decimal
	BaseDiscountAmount decimal.Decimal
	DiscountAmount     decimal.Decimal

	BaseDiscountTaxCompensation decimal.Decimal
	DiscountTaxCompensation     decimal.Decimal
}

// QuoteAddress holds the shipping totals of a quote's shipping address.
type QuoteAddress struct {
	BaseShippingAmount decimal.Decimal
	ShippingAmount     decimal.Decimal

	BaseShippingInclTax decimal.Decimal
	ShippingInclTax     decimal.Decimal

	BaseShippingTaxAmount decimal.Decimal
	ShippingTaxAmount     decimal.Decimal

	BaseShippingDiscountAmount decimal.Decimal
	ShippingDiscountAmount     decimal.Decimal

	BaseShippingDiscountTaxCompensation decimal.Decimal
	ShippingDiscountTaxCompensation     decimal.Decimal

	// BaseDiscountTaxCompensation is the address-level compensation written
	// by ApplyShippingTaxCompensation before the base-currency read.
	BaseDiscountTaxCompensation decimal.Decimal
}

// Invoice snapshot. ChargedCurrency comes from the invoice's order.
type Invoice struct {
	BaseCurrencyCode  string
	OrderCurrencyCode string
	ChargedCurrency   Mode

	BaseGrandTotal decimal.Decimal
	GrandTotal     decimal.Decimal

	BaseShippingAmount    decimal.Decimal
	ShippingAmount        decimal.Decimal
	BaseShippingTaxAmount decimal.Decimal
	ShippingTaxAmount     decimal.Decimal
}

// InvoiceItem is a single invoiced line.
type InvoiceItem struct {
	BaseCurrencyCode  string
	OrderCurrencyCode string
	ChargedCurrency   Mode

	Qty decimal.Decimal

	BasePrice     decimal.Decimal
	Price         decimal.Decimal
	BaseTaxAmount decimal.Decimal
	TaxAmount     decimal.Decimal
}

// CreditMemo snapshot. ChargedCurrency comes from the memo's order.
type CreditMemo struct {
	BaseCurrencyCode  string
	OrderCurrencyCode string
	ChargedCurrency   Mode

	BaseGrandTotal decimal.Decimal
	GrandTotal     decimal.Decimal

	BaseTaxAmount decimal.Decimal
	TaxAmount     decimal.Decimal

	BaseAdjustment decimal.Decimal
	Adjustment     decimal.Decimal

	BaseShippingAmount    decimal.Decimal
	ShippingAmount        decimal.Decimal
	BaseShippingTaxAmount decimal.Decimal
	ShippingTaxAmount     decimal.Decimal
}

// CreditMemoItem is a single refunded line.
type CreditMemoItem struct {
	BaseCurrencyCode  string
	OrderCurrencyCode string
	ChargedCurrency   Mode

	Qty decimal.Decimal

	BasePrice     decimal.Decimal
	Price         decimal.Decimal
	BaseTaxAmount decimal.Decimal
	TaxAmount     decimal.Decimal
}
