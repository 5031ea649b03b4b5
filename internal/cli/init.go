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


package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-kms/internal/config"
	"github.com/jeremyhahn/go-kms/pkg/signing"
)

// sampleKeyFile is the key file referenced by config.Sample.
const sampleKeyFile = "secrets/cosmoshub-4-consensus.key"

func newInitCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "init <dir>",
		Short: "Write a sample configuration and consensus key",
		Long: `Create dir with a sample kms.yaml, a state directory, and a freshly
generated softsign key for the sample chain. Existing files are never
overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			configPath, err := config.WriteSample(dir)
			if err != nil {
				return err
			}
			s.printVerbose(cmd, "Wrote %s", configPath)

			keyPath := filepath.Join(dir, filepath.FromSlash(sampleKeyFile))
			pub, err := signing.GenerateKeyFile(keyPath)
			if err != nil {
				return err
			}
			return s.printer(cmd).PrintInit(configPath, keyPath, pub)
		},
	}
}
