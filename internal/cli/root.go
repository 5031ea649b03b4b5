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
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-kms/internal/config"
)

// Viper keys. Each can also be set through a KMS_ prefixed environment
// variable, e.g. KMS_CONFIG or KMS_OUTPUT.
const (
	keyConfig    = "config"
	keyOutput    = "output"
	keyVerbose   = "verbose"
	keyLogLevel  = "log-level"
	keyLogFormat = "log-format"
)

// settings resolves global options from flags and the environment.
type settings struct {
	v *viper.Viper
}

func newSettings() *settings {
	v := viper.New()
	v.SetEnvPrefix("KMS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &settings{v: v}
}

func (s *settings) configFile() string { return s.v.GetString(keyConfig) }
func (s *settings) output() string     { return s.v.GetString(keyOutput) }
func (s *settings) verbose() bool      { return s.v.GetBool(keyVerbose) }

// bind registers flags with viper so the environment can supply them.
func (s *settings) bind(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			flag = cmd.PersistentFlags().Lookup(name)
		}
		_ = s.v.BindPFlag(name, flag)
	}
}

func (s *settings) printer(cmd *cobra.Command) *Printer {
	return NewPrinter(s.output(), cmd.OutOrStdout())
}

// printVerbose prints a message to stderr if verbose mode is enabled
func (s *settings) printVerbose(cmd *cobra.Command, format string, args ...interface{}) {
	if s.verbose() {
		fmt.Fprintf(cmd.ErrOrStderr(), "[VERBOSE] "+format+"\n", args...)
	}
}

// NewRootCommand builds the kms command tree.
func NewRootCommand() *cobra.Command {
	s := newSettings()

	rootCmd := &cobra.Command{
		Use:   "kms",
		Short: "Key management service for validator consensus signing",
		Long: `kms holds validator consensus keys and signs votes and proposals
for one or more chains, refusing any request that would double sign.

Supported signing providers:
  - softsign: ed25519 key file
  - pkcs11:   PKCS#11 hardware token (built with -tags pkcs11)
  - vault:    HashiCorp Vault transit engine (built with -tags vault)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch OutputFormat(s.output()) {
			case OutputFormatText, OutputFormatJSON:
				return nil
			default:
				return fmt.Errorf("unknown output format: %s", s.output())
			}
		},
	}

	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.StringP(keyConfig, "c", config.SampleFile, "path to the configuration file")
	flags.StringP(keyOutput, "o", string(OutputFormatText), "output format (text, json)")
	flags.BoolP(keyVerbose, "v", false, "verbose output")
	s.bind(rootCmd, keyConfig, keyOutput, keyVerbose)

	rootCmd.AddCommand(
		newStartCmd(s),
		newVersionCmd(s),
		newSoftsignCmd(s),
		newAccountCmd(s),
		newInitCmd(s),
	)
	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}
