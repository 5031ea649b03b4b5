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
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-kms/pkg/account"
)

func newAccountCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "account <hex-pubkey>",
		Short: "Print the account id of a public key",
		Long: `Derive the 20 byte account id of a hex encoded public key.
secp256k1 keys, compressed or not, are digested in compressed form;
any other key is digested as given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := account.FromHexPublicKey(args[0])
			if err != nil {
				return err
			}
			return s.printer(cmd).PrintAccount(id)
		},
	}
}
