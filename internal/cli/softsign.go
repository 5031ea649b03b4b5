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
	"crypto/ed25519"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-kms/pkg/signing"
)

func newSoftsignCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "softsign",
		Short: "Manage software signing keys",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "keygen <path>",
		Short: "Generate a new ed25519 consensus key",
		Long: `Write a new base64 encoded ed25519 seed to path and print its public
key. An existing file is never overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := signing.GenerateKeyFile(args[0])
			if err != nil {
				return err
			}
			s.printVerbose(cmd, "Wrote key to %s", args[0])
			return s.printer(cmd).PrintPublicKey(args[0], pub)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "pubkey <path>",
		Short: "Print the public key of a key file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := signing.LoadKeyFile(args[0])
			if err != nil {
				return err
			}
			return s.printer(cmd).PrintPublicKey(args[0], priv.Public().(ed25519.PublicKey))
		},
	})

	return cmd
}
