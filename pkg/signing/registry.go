// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-kms.
//
// go-kms is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package signing

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry maps chain ids to the provider that signs for them.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register assigns p to each chain id. A chain may have only one provider.
func (r *Registry) Register(p Provider, chainIDs ...string) error {
	if p == nil {
		return ErrSignerRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range chainIDs {
		if _, ok := r.providers[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateChain, id)
		}
	}
	for _, id := range chainIDs {
		r.providers[id] = p
	}
	return nil
}

// Get returns the provider for chainID.
func (r *Registry) Get(chainID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoProvider, chainID)
	}
	return p, nil
}

// ChainIDs returns the registered chain ids in sorted order.
func (r *Registry) ChainIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes every distinct provider once.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[Provider]struct{})
	var errs []error
	for _, p := range r.providers {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
