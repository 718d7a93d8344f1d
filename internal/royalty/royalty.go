package royalty

import (
	"context"
	"sync"
)

// Split is one creator royalty recipient with its cut of a sale in basis points.
type Split struct {
	Recipient string `json:"recipient" toml:"recipient"`
	Bps       uint32 `json:"bps" toml:"bps"`
}

type Registry interface {
	RoyaltySplitFor(ctx context.Context, contract string, tokenID string) ([]Split, error)
}

// StaticRegistry serves splits registered in process, per contract or per
// individual token. Token entries take precedence.
type StaticRegistry struct {
	mu        sync.RWMutex
	contracts map[string][]Split
	tokens    map[string]map[string][]Split
}

func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		contracts: make(map[string][]Split),
		tokens:    make(map[string]map[string][]Split),
	}
}

func (r *StaticRegistry) SetContract(contract string, splits []Split) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[contract] = append([]Split(nil), splits...)
}

func (r *StaticRegistry) SetToken(contract string, tokenID string, splits []Split) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tokens[contract] == nil {
		r.tokens[contract] = make(map[string][]Split)
	}
	r.tokens[contract][tokenID] = append([]Split(nil), splits...)
}

func (r *StaticRegistry) RoyaltySplitFor(_ context.Context, contract string, tokenID string) ([]Split, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if splits, ok := r.tokens[contract][tokenID]; ok {
		return append([]Split(nil), splits...), nil
	}
	return append([]Split(nil), r.contracts[contract]...), nil
}
