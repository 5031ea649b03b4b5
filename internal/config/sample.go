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

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sample is the configuration written by "kms init".
const Sample = `# KMS configuration

logging:
  level: info
  format: json

metrics:
  enabled: false
  listen_addr: 127.0.0.1:9100
  path: /metrics

storage:
  backend: file
  path: state

reconnect:
  attempts_per_minute: 12
  burst: 1

chain:
  - id: cosmoshub-4
    # state_hook:
    #   cmd: ["/usr/local/bin/latest-height", "cosmoshub-4"]
    #   timeout: 5s
    #   fail_closed: false

validator:
  - addr: tcp://127.0.0.1:26658
    chain_id: cosmoshub-4
    reconnect: true
    read_timeout: 30s

providers:
  softsign:
    - chain_ids: [cosmoshub-4]
      key_file: secrets/cosmoshub-4-consensus.key
`

// SampleFile is the name of the configuration file written by WriteSample.
const SampleFile = "kms.yaml"

// WriteSample writes Sample to dir/kms.yaml and creates the secrets and
// state directories next to it. An existing file is not overwritten.
func WriteSample(dir string) (string, error) {
	for _, sub := range []string{"", "secrets", "state"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o700); err != nil {
			return "", err
		}
	}
	path := filepath.Join(dir, SampleFile)
	// #nosec G304 - path is built from an operator supplied directory
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	if _, err := f.WriteString(Sample); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
