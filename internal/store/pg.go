package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pay/internal/currency"
)

// PGOrders reads order payment records from the host platform's tables.
// Monetary columns are selected as text and parsed into decimals so no
// precision is lost on the way through the driver.
type PGOrders struct {
	Pool *pgxpool.Pool
}

const orderByIncrementIDSQL = `
SELECT o.increment_id,
       COALESCE(o.customer_id::text, ''),
       o.store_id::text,
       o.base_currency_code,
       o.order_currency_code,
       o.base_grand_total::text,
       o.grand_total::text,
       o.base_total_due::text,
       o.total_due::text,
       COALESCE(o.charged_currency, ''),
       p.method,
       COALESCE(p.additional_info, '{}'::jsonb)
FROM sales_orders o
JOIN sales_order_payments p ON p.order_id = o.id
WHERE o.increment_id = $1`

// ByIncrementID implements Orders.
func (s PGOrders) ByIncrementID(ctx context.Context, incrementID string) (Order, error) {
	if s.Pool == nil {
		return Order{}, errors.New("store: pool not configured")
	}
	var (
		o       Order
		mode    string
		amounts [4]string
		info    []byte
	)
	row := s.Pool.QueryRow(ctx, orderByIncrementIDSQL, incrementID)
	err := row.Scan(
		&o.IncrementID,
		&o.CustomerID,
		&o.Amounts.StoreID,
		&o.Amounts.BaseCurrencyCode,
		&o.Amounts.OrderCurrencyCode,
		&amounts[0], &amounts[1], &amounts[2], &amounts[3],
		&mode,
		&o.Payment.Method,
		&info,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("load order %s: %w", incrementID, err)
	}

	if o.Amounts.BaseGrandTotal, err = decimal.NewFromString(amounts[0]); err != nil {
		return Order{}, fmt.Errorf("order %s base_grand_total: %w", incrementID, err)
	}
	if o.Amounts.GrandTotal, err = decimal.NewFromString(amounts[1]); err != nil {
		return Order{}, fmt.Errorf("order %s grand_total: %w", incrementID, err)
	}
	if o.Amounts.BaseTotalDue, err = decimal.NewFromString(amounts[2]); err != nil {
		return Order{}, fmt.Errorf("order %s base_total_due: %w", incrementID, err)
	}
	if o.Amounts.TotalDue, err = decimal.NewFromString(amounts[3]); err != nil {
		return Order{}, fmt.Errorf("order %s total_due: %w", incrementID, err)
	}
	o.Amounts.ChargedCurrency = currency.Mode(mode)

	o.Payment.AdditionalInfo = map[string]string{}
	if len(info) > 0 {
		if err := json.Unmarshal(info, &o.Payment.AdditionalInfo); err != nil {
			return Order{}, fmt.Errorf("order %s additional_info: %w", incrementID, err)
		}
	}
	return o, nil
}

const savePaymentInfoSQL = `
UPDATE sales_order_payments p
SET additional_info = $2, updated_at = now()
FROM sales_orders o
WHERE p.order_id = o.id AND o.increment_id = $1`

// SavePaymentInfo implements Orders.
func (s PGOrders) SavePaymentInfo(ctx context.Context, incrementID string, info map[string]string) error {
	if s.Pool == nil {
		return errors.New("store: pool not configured")
	}
	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode additional_info: %w", err)
	}
	tag, err := s.Pool.Exec(ctx, savePaymentInfoSQL, incrementID, payload)
	if err != nil {
		return fmt.Errorf("save payment info for %s: %w", incrementID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PGSettings persists module settings in a single key/value table:
//
//	CREATE TABLE pay_settings (
//	    key        text PRIMARY KEY,
//	    value      text NOT NULL,
//	    updated_at timestamptz NOT NULL DEFAULT now()
//	);
type PGSettings struct {
	Pool *pgxpool.Pool
}

// Get implements Settings.
func (s PGSettings) Get(ctx context.Context, key string) (string, error) {
	if s.Pool == nil {
		return "", errors.New("store: pool not configured")
	}
	var value string
	err := s.Pool.QueryRow(ctx, `SELECT value FROM pay_settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// Set implements Settings.
func (s PGSettings) Set(ctx context.Context, key, value string) error {
	if s.Pool == nil {
		return errors.New("store: pool not configured")
	}
	_, err := s.Pool.Exec(ctx, `
INSERT INTO pay_settings (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
