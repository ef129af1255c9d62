package currency

import "github.com/shopspring/decimal"

// Mode selects which set of currency fields an amount is read from.
type Mode string

const (
	// ModeBase charges in the store's base currency.
	ModeBase Mode = "base"
	// ModeDisplay charges in the currency presented to the customer.
	ModeDisplay Mode = "display"
)

// AmountCurrency is a normalised projection of a commerce entity's monetary
// fields in a single currency. It is a value, never persisted.
type AmountCurrency struct {
	Amount         decimal.Decimal
	CurrencyCode   string
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	// AmountDue is only populated for order-level reads.
	AmountDue     decimal.Decimal
	AmountInclTax decimal.Decimal
}
