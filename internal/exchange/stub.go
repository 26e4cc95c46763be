package exchange

import (
	"context"
	"fmt"
	"sync"
)

// Stub is an in-memory price source whose prices are set by the caller.
type Stub struct {
	mu     sync.RWMutex
	prices map[string]float64
	errs   map[string]error
}

// NewStub returns an empty stub.
func NewStub() *Stub {
	return &Stub{prices: make(map[string]float64), errs: make(map[string]error)}
}

// Set fixes the price returned for asset and clears any injected error.
func (s *Stub) Set(asset string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[asset] = price
	delete(s.errs, asset)
}

// Fail makes CurrentPrice return err for asset until the next Set.
func (s *Stub) Fail(asset string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[asset] = err
}

// CurrentPrice implements PriceSource.
func (s *Stub) CurrentPrice(_ context.Context, asset string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err, ok := s.errs[asset]; ok {
		return 0, err
	}
	px, ok := s.prices[asset]
	if !ok {
		return 0, fmt.Errorf("%s: %w", asset, ErrNoPrice)
	}
	return px, nil
}
