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

	"github.com/jeremyhahn/go-kms/internal/config"
	"github.com/jeremyhahn/go-kms/internal/server"
	"github.com/jeremyhahn/go-kms/pkg/kmserror"
)

func newStartCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the KMS daemon",
		Long: `Connect to every configured validator and sign consensus messages
until interrupted. The daemon exits with an error when a double sign or
another fatal condition is detected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(s)
			if err != nil {
				return err
			}
			s.printVerbose(cmd, "Loaded configuration from %s", s.configFile())

			ctx := server.SetupSignalHandler()
			srv, err := server.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = srv.Shutdown() }()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().String(keyLogLevel, "", "override logging.level (debug, info, warn, error)")
	cmd.Flags().String(keyLogFormat, "", "override logging.format (json, text)")
	s.bind(cmd, keyLogLevel, keyLogFormat)
	return cmd
}

// loadConfig reads the configuration file and applies command line
// overrides.
func loadConfig(s *settings) (*config.Config, error) {
	cfg, err := config.Load(s.configFile())
	if err != nil {
		return nil, err
	}

	overridden := false
	if level := s.v.GetString(keyLogLevel); level != "" {
		cfg.Logging.Level = level
		overridden = true
	}
	if format := s.v.GetString(keyLogFormat); format != "" {
		cfg.Logging.Format = format
		overridden = true
	}
	if overridden {
		if err := cfg.Validate(); err != nil {
			return nil, kmserror.Wrap(kmserror.ConfigError, err)
		}
	}
	return cfg, nil
}
