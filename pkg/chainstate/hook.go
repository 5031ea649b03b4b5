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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultHookTimeout bounds a hook command when no timeout is configured.
const DefaultHookTimeout = 5 * time.Second

// Hook runs an external command that reports the chain's latest block
// height, typically by querying a full node.
type Hook struct {
	Cmd        []string
	Timeout    time.Duration
	FailClosed bool
}

// HookOutput is the JSON object printed by a hook on stdout:
//
//	{"latest_block_height":"123"}
type HookOutput struct {
	LatestBlockHeight int64 `json:"latest_block_height,string"`
}

// Run executes the hook and parses its output.
func (h *Hook) Run(ctx context.Context) (*HookOutput, error) {
	name := strings.Join(h.Cmd, " ")
	if len(h.Cmd) == 0 {
		return nil, &HookError{Cmd: name, Err: fmt.Errorf("empty command")}
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultHookTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, h.Cmd[0], h.Cmd[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &HookError{Cmd: name, Err: err}
	}

	var out HookOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, &HookError{Cmd: name, Err: fmt.Errorf("%w: %v", ErrHookOutput, err)}
	}
	if out.LatestBlockHeight < 0 {
		return nil, &HookError{Cmd: name, Err: fmt.Errorf("%w: negative height %d", ErrHookOutput, out.LatestBlockHeight)}
	}
	return &out, nil
}

// Apply runs the hook and advances s to the reported height. Callers treat a
// *HookError as fatal only when FailClosed is set.
func (h *Hook) Apply(ctx context.Context, s *State) (advanced bool, err error) {
	out, err := h.Run(ctx)
	if err != nil {
		return false, err
	}
	return s.AdvanceTo(out.LatestBlockHeight)
}
