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

package chainstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jeremyhahn/go-kms/pkg/storage"
)

// Step orders the messages signed within one round.
type Step int8

const (
	StepNone      Step = 0
	StepPropose   Step = 1
	StepPrevote   Step = 2
	StepPrecommit Step = 3
)

func (s Step) String() string {
	switch s {
	case StepPropose:
		return "propose"
	case StepPrevote:
		return "prevote"
	case StepPrecommit:
		return "precommit"
	default:
		return "none"
	}
}

// ConsensusState is the position of the last signed message. BlockID holds
// the upper-case hex block hash and is empty for a nil vote.
type ConsensusState struct {
	Height  int64  `json:"height,string"`
	Round   int64  `json:"round,string"`
	Step    Step   `json:"step"`
	BlockID string `json:"block_id,omitempty"`
}

func (c ConsensusState) String() string {
	block := c.BlockID
	if block == "" {
		block = "nil"
	}
	return fmt.Sprintf("%d/%d/%s (%s)", c.Height, c.Round, c.Step, block)
}

// Check reports whether next may be signed after c. A repeat of the same
// height, round, step and block is allowed.
func (c ConsensusState) Check(next ConsensusState) (StateErrorKind, bool) {
	switch {
	case next.Height < c.Height:
		return HeightRegression, false
	case next.Height > c.Height:
		return 0, true
	case next.Round < c.Round:
		return RoundRegression, false
	case next.Round > c.Round:
		return 0, true
	case next.Step < c.Step:
		return StepRegression, false
	case next.Step > c.Step:
		return 0, true
	case next.BlockID != c.BlockID:
		return ConflictingBlock, false
	default:
		return 0, true
	}
}

// State is the persisted last signed consensus state of one chain. Updates
// are serialized and reach storage before Update returns.
type State struct {
	mu      sync.Mutex
	chainID string
	store   storage.Backend
	key     string
	current ConsensusState
}

// Load reads the state of chainID from store. A chain with no persisted state
// starts at the zero state, which is written immediately so that a storage
// failure surfaces at startup.
func Load(chainID string, store storage.Backend) (*State, error) {
	s := &State{
		chainID: chainID,
		store:   store,
		key:     storage.StatePath(chainID),
	}

	data, err := store.Get(s.key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if err := s.persist(ConsensusState{}); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("chainstate: loading %s: %w", chainID, err)
	default:
		if err := json.Unmarshal(data, &s.current); err != nil {
			return nil, fmt.Errorf("chainstate: decoding %s: %w", chainID, err)
		}
	}
	return s, nil
}

// ChainID returns the chain this state belongs to.
func (s *State) ChainID() string {
	return s.chainID
}

// Current returns the last signed consensus state.
func (s *State) Current() ConsensusState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Update records next as the last signed state. It returns a *StateError
// without touching storage if next conflicts with the current state.
func (s *State) Update(next ConsensusState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kind, ok := s.current.Check(next); !ok {
		return &StateError{Kind: kind, ChainID: s.chainID, Last: s.current, Requested: next}
	}
	return s.persist(next)
}

// AdvanceTo raises the state to height when the chain is known to be past
// the last signed height. Lower heights are ignored.
func (s *State) AdvanceTo(height int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if height <= s.current.Height {
		return false, nil
	}
	return true, s.persist(ConsensusState{Height: height})
}

func (s *State) persist(next ConsensusState) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("chainstate: encoding %s: %w", s.chainID, err)
	}
	if err := s.store.Put(s.key, data, storage.DefaultOptions()); err != nil {
		return fmt.Errorf("chainstate: persisting %s: %w", s.chainID, err)
	}
	s.current = next
	return nil
}

// Registry holds the state of every configured chain.
type Registry struct {
	mu     sync.RWMutex
	states map[string]*State
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{states: make(map[string]*State)}
}

// Add registers s under its chain id, replacing any previous entry.
func (r *Registry) Add(s *State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[s.chainID] = s
}

// Get returns the state of chainID.
func (r *Registry) Get(chainID string) (*State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.states[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, chainID)
	}
	return s, nil
}
