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

package amino

import (
	"fmt"
	"sort"
)

// Registry maps registered type names to their prefixes and back.
//
// A Registry is immutable once NewRegistry returns and may be shared by any
// number of goroutines without locking.
type Registry struct {
	byName   map[string]Prefix
	byPrefix map[Prefix]string
}

// NewRegistry computes the prefix of every name. It fails if any prefix cannot
// be derived or two names collide.
func NewRegistry(names ...string) (*Registry, error) {
	r := &Registry{
		byName:   make(map[string]Prefix, len(names)),
		byPrefix: make(map[Prefix]string, len(names)),
	}
	for _, name := range names {
		p, err := ComputePrefix(name)
		if err != nil {
			return nil, err
		}
		if other, ok := r.byPrefix[p]; ok && other != name {
			return nil, fmt.Errorf("%w: %s shared by %q and %q", ErrDuplicatePrefix, p, other, name)
		}
		r.byName[name] = p
		r.byPrefix[p] = name
	}
	return r, nil
}

// MustNewRegistry is like NewRegistry but panics on error. It is intended for
// package-level registries built during program initialization.
func MustNewRegistry(names ...string) *Registry {
	r, err := NewRegistry(names...)
	if err != nil {
		panic(err)
	}
	return r
}

// Prefix returns the prefix registered for name.
func (r *Registry) Prefix(name string) (Prefix, error) {
	p, ok := r.byName[name]
	if !ok {
		return Prefix{}, fmt.Errorf("%w: %q", ErrUnregistered, name)
	}
	return p, nil
}

// Name returns the registered name for prefix p.
func (r *Registry) Name(p Prefix) (string, bool) {
	name, ok := r.byPrefix[p]
	return name, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
