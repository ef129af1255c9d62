package currency

import (
	"context"

	"github.com/shopspring/decimal"
)

// ModeSource resolves the charged-currency mode configured for a store. It is
// consulted for entities that have not been placed yet; placed orders carry
// their own stored mode.
type ModeSource interface {
	ChargedCurrency(storeID string) Mode
}

// ModeSourceFunc adapts a function to the ModeSource interface.
type ModeSourceFunc func(storeID string) Mode

// ChargedCurrency implements ModeSource.
func (f ModeSourceFunc) ChargedCurrency(storeID string) Mode { return f(storeID) }

// QuoteSaver persists a quote after ApplyShippingTaxCompensation updated its
// shipping address.
type QuoteSaver interface {
	SaveQuote(ctx context.Context, q *Quote) error
}

// Reconciler maps commerce entity snapshots to AmountCurrency records,
// selecting base or display currency fields per the charged-currency mode.
type Reconciler struct {
	Modes ModeSource
}

func (r *Reconciler) storeMode(storeID string) Mode {
	if r == nil || r.Modes == nil {
		return ModeDisplay
	}
	return r.Modes.ChargedCurrency(storeID)
}

// OrderAmount returns the order's charged amount. With orderPlacement the mode
// is read from store configuration; otherwise the mode stored on the order at
// placement is authoritative.
func (r *Reconciler) OrderAmount(o Order, orderPlacement bool) AmountCurrency {
	mode := o.ChargedCurrency
	if orderPlacement {
		mode = r.storeMode(o.StoreID)
	}
	if mode == ModeBase {
		return AmountCurrency{
			Amount:       o.BaseGrandTotal,
			CurrencyCode: o.BaseCurrencyCode,
			AmountDue:    o.BaseTotalDue,
		}
	}
	return AmountCurrency{
		Amount:       o.GrandTotal,
		CurrencyCode: o.OrderCurrencyCode,
		AmountDue:    o.TotalDue,
	}
}

// QuoteAmount returns the quote's grand total in the configured currency.
func (r *Reconciler) QuoteAmount(q Quote) AmountCurrency {
	if r.storeMode(q.StoreID) == ModeBase {
		return AmountCurrency{Amount: q.BaseGrandTotal, CurrencyCode: q.BaseCurrencyCode}
	}
	return AmountCurrency{Amount: q.GrandTotal, CurrencyCode: q.QuoteCurrencyCode}
}

// QuoteItemAmount returns the per-unit charged amount of a quote line.
//
// The display branch reconstructs discount and tax under two mutually
// exclusive policies: when a discount was applied to a tax-inclusive price the
// platform records a positive discount tax compensation, and raw tax plus
// compensation is the effective tax. Otherwise the effective tax is the
// incl/excl price difference, and the per-unit shortfall left after the raw
// tax is folded into the discount. This compensates for the platform's own
// inconsistent totals on tax-inclusive discounts; do not generalise it.
func (r *Reconciler) QuoteItemAmount(it QuoteItem) AmountCurrency {
	if r.storeMode(it.StoreID) == ModeBase {
		return AmountCurrency{
			Amount:         it.BasePrice,
			CurrencyCode:   it.BaseCurrencyCode,
			DiscountAmount: it.BaseDiscountAmount,
			TaxAmount:      perUnit(it.BaseTaxAmount.Add(it.BaseDiscountTaxCompensation), it.Qty),
			AmountInclTax:  it.BasePriceInclTax,
		}
	}

	// The row-total based amount is ambiguous across tax configurations;
	// callers needing exact values should use the incl/excl tax fields.
	amount := perUnit(it.RowTotal, it.Qty)

	var tax, discount decimal.Decimal
	if it.DiscountTaxCompensation.IsPositive() {
		tax = perUnit(it.TaxAmount.Add(it.DiscountTaxCompensation), it.Qty)
		discount = it.DiscountAmount
	} else {
		tax = it.PriceInclTax.Sub(it.Price)
		discount = it.DiscountAmount
		// The row-level tax shortfall left after the raw tax amount is
		// folded into the discount.
		if it.Qty.Sign() > 0 {
			discount = discount.Add(tax.Mul(it.Qty).Sub(it.TaxAmount))
		}
	}

	return AmountCurrency{
		Amount:         amount,
		CurrencyCode:   it.QuoteCurrencyCode,
		DiscountAmount: discount,
		TaxAmount:      tax,
		AmountInclTax:  it.PriceInclTax,
	}
}

// ApplyShippingTaxCompensation computes the base discount-tax-compensation
// amount for the quote's shipping address and persists the quote. It must run
// before a base-currency QuoteShippingAmount read so the compensation fields
// the read depends on are up to date.
func (r *Reconciler) ApplyShippingTaxCompensation(ctx context.Context, q *Quote, saver QuoteSaver) error {
	q.Shipping.BaseDiscountTaxCompensation = q.Shipping.BaseShippingInclTax.
		Sub(q.Shipping.BaseShippingAmount).
		Sub(q.Shipping.BaseShippingTaxAmount)
	if saver == nil {
		return nil
	}
	return saver.SaveQuote(ctx, q)
}

// QuoteShippingAmount returns the charged shipping amount of a quote. In base
// mode it first applies and persists the shipping tax compensation; the
// display branch is a pure read using the same compensation policy as
// QuoteItemAmount.
func (r *Reconciler) QuoteShippingAmount(ctx context.Context, q *Quote, saver QuoteSaver) (AmountCurrency, error) {
	addr := &q.Shipping
	if r.storeMode(q.StoreID) == ModeBase {
		if err := r.ApplyShippingTaxCompensation(ctx, q, saver); err != nil {
			return AmountCurrency{}, err
		}
		return AmountCurrency{
			Amount:         addr.BaseShippingAmount,
			CurrencyCode:   q.BaseCurrencyCode,
			DiscountAmount: addr.BaseShippingDiscountAmount.Add(addr.BaseShippingDiscountTaxCompensation),
			TaxAmount:      addr.BaseShippingTaxAmount.Add(addr.BaseShippingDiscountTaxCompensation),
			AmountInclTax:  addr.BaseShippingInclTax,
		}, nil
	}

	var tax, discount decimal.Decimal
	if addr.ShippingDiscountTaxCompensation.IsPositive() {
		tax = addr.ShippingTaxAmount.Add(addr.ShippingDiscountTaxCompensation)
		discount = addr.ShippingDiscountAmount
	} else {
		tax = addr.ShippingInclTax.Sub(addr.ShippingAmount)
		discount = addr.ShippingDiscountAmount.
			Add(addr.ShippingInclTax.Sub(addr.ShippingAmount).Sub(addr.ShippingTaxAmount))
	}

	// The incl-tax value deliberately omits the compensation; the platform
	// totals it reconciles against are computed without it.
	return AmountCurrency{
		Amount:         addr.ShippingAmount,
		CurrencyCode:   q.QuoteCurrencyCode,
		DiscountAmount: discount,
		TaxAmount:      tax,
		AmountInclTax:  addr.ShippingInclTax,
	}, nil
}

// InvoiceAmount returns the invoice grand total in the order's charged currency.
func (r *Reconciler) InvoiceAmount(inv Invoice) AmountCurrency {
	if inv.ChargedCurrency == ModeBase {
		return AmountCurrency{Amount: inv.BaseGrandTotal, CurrencyCode: inv.BaseCurrencyCode}
	}
	return AmountCurrency{Amount: inv.GrandTotal, CurrencyCode: inv.OrderCurrencyCode}
}

// InvoiceItemAmount returns the per-unit charged amount of an invoiced line.
func (r *Reconciler) InvoiceItemAmount(it InvoiceItem) AmountCurrency {
	if it.ChargedCurrency == ModeBase {
		return AmountCurrency{
			Amount:       it.BasePrice,
			CurrencyCode: it.BaseCurrencyCode,
			TaxAmount:    perUnit(it.BaseTaxAmount, it.Qty),
		}
	}
	return AmountCurrency{
		Amount:       it.Price,
		CurrencyCode: it.OrderCurrencyCode,
		TaxAmount:    perUnit(it.TaxAmount, it.Qty),
	}
}

// InvoiceShippingAmount returns the charged shipping amount of an invoice.
func (r *Reconciler) InvoiceShippingAmount(inv Invoice) AmountCurrency {
	if inv.ChargedCurrency == ModeBase {
		return AmountCurrency{
			Amount:       inv.BaseShippingAmount,
			CurrencyCode: inv.BaseCurrencyCode,
			TaxAmount:    inv.BaseShippingTaxAmount,
		}
	}
	return AmountCurrency{
		Amount:       inv.ShippingAmount,
		CurrencyCode: inv.OrderCurrencyCode,
		TaxAmount:    inv.ShippingTaxAmount,
	}
}

// CreditMemoAmount returns the memo grand total in the order's charged currency.
func (r *Reconciler) CreditMemoAmount(cm CreditMemo) AmountCurrency {
	if cm.ChargedCurrency == ModeBase {
		return AmountCurrency{
			Amount:       cm.BaseGrandTotal,
			CurrencyCode: cm.BaseCurrencyCode,
			TaxAmount:    cm.BaseTaxAmount,
		}
	}
	return AmountCurrency{
		Amount:       cm.GrandTotal,
		CurrencyCode: cm.OrderCurrencyCode,
		TaxAmount:    cm.TaxAmount,
	}
}

// CreditMemoAdjustmentAmount returns the memo's adjustment amount.
func (r *Reconciler) CreditMemoAdjustmentAmount(cm CreditMemo) AmountCurrency {
	if cm.ChargedCurrency == ModeBase {
		return AmountCurrency{Amount: cm.BaseAdjustment, CurrencyCode: cm.BaseCurrencyCode}
	}
	return AmountCurrency{Amount: cm.Adjustment, CurrencyCode: cm.OrderCurrencyCode}
}

// CreditMemoShippingAmount returns the refunded shipping amount.
func (r *Reconciler) CreditMemoShippingAmount(cm CreditMemo) AmountCurrency {
	if cm.ChargedCurrency == ModeBase {
		return AmountCurrency{
			Amount:       cm.BaseShippingAmount,
			CurrencyCode: cm.BaseCurrencyCode,
			TaxAmount:    cm.BaseShippingTaxAmount,
		}
	}
	return AmountCurrency{
		Amount:       cm.ShippingAmount,
		CurrencyCode: cm.OrderCurrencyCode,
		TaxAmount:    cm.ShippingTaxAmount,
	}
}

// CreditMemoItemAmount returns the per-unit charged amount of a refunded line.
func (r *Reconciler) CreditMemoItemAmount(it CreditMemoItem) AmountCurrency {
	if it.ChargedCurrency == ModeBase {
		return AmountCurrency{
			Amount:       it.BasePrice,
			CurrencyCode: it.BaseCurrencyCode,
			TaxAmount:    perUnit(it.BaseTaxAmount, it.Qty),
		}
	}
	return AmountCurrency{
		Amount:       it.Price,
		CurrencyCode: it.OrderCurrencyCode,
		TaxAmount:    perUnit(it.TaxAmount, it.Qty),
	}
}

// perUnit divides amount by qty, substituting zero when qty is not positive.
func perUnit(amount, qty decimal.Decimal) decimal.Decimal {
	if qty.Sign() <= 0 {
		return decimal.Zero
	}
	return amount.Div(qty)
}
