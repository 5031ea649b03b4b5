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

package storage

import (
	"strings"
)

const (
	statePrefix = "state/"
	stateSuffix = ".json"
)

// StatePath returns the storage path for the consensus state of a chain.
// The path follows the convention: state/{chainID}.json
func StatePath(chainID string) string {
	return statePrefix + chainID + stateSuffix
}

// ListStates returns the chain ids that have persisted consensus state.
func ListStates(backend Backend) ([]string, error) {
	keys, err := backend.List(statePrefix)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if !strings.HasSuffix(k, stateSuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(k, statePrefix), stateSuffix)
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
