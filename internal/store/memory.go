package store

import (
	"context"
	"maps"
	"sync"
)

// MemoryOrders is an in-memory Orders implementation for tests and for hosts
// that inject their own entity loading.
type MemoryOrders struct {
	mu     sync.RWMutex
	orders map[string]Order
}

// NewMemoryOrders seeds an in-memory order store.
func NewMemoryOrders(orders ...Order) *MemoryOrders {
	m := &MemoryOrders{orders: make(map[string]Order, len(orders))}
	for _, o := range orders {
		m.orders[o.IncrementID] = o
	}
	return m
}

// ByIncrementID implements Orders.
func (m *MemoryOrders) ByIncrementID(_ context.Context, incrementID string) (Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[incrementID]
	if !ok {
		return Order{}, ErrNotFound
	}
	o.Payment.AdditionalInfo = maps.Clone(o.Payment.AdditionalInfo)
	return o, nil
}

// SavePaymentInfo implements Orders.
func (m *MemoryOrders) SavePaymentInfo(_ context.Context, incrementID string, info map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[incrementID]
	if !ok {
		return ErrNotFound
	}
	o.Payment.AdditionalInfo = maps.Clone(info)
	m.orders[incrementID] = o
	return nil
}

// MemorySettings is an in-memory Settings implementation.
type MemorySettings struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemorySettings seeds an in-memory settings store.
func NewMemorySettings(values map[string]string) *MemorySettings {
	m := &MemorySettings{values: map[string]string{}}
	maps.Copy(m.values, values)
	return m
}

// Get implements Settings.
func (m *MemorySettings) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set implements Settings.
func (m *MemorySettings) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
