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

// Package config loads the KMS daemon configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-kms/pkg/adapters/logger"
	"github.com/jeremyhahn/go-kms/pkg/kmserror"
	"github.com/jeremyhahn/go-kms/pkg/signing"
	"github.com/jeremyhahn/go-kms/pkg/types"
)

// Defaults applied by Load before environment overrides.
const (
	DefaultMetricsListen = "127.0.0.1:9100"
	DefaultMetricsPath   = "/metrics"
	DefaultReadTimeout   = 30 * time.Second
	DefaultStateDir      = "state"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = logger.FormatJSON
)

// Storage backend names.
const (
	StorageFile   = "file"
	StorageMemory = "memory"
)

// Config is the root of the configuration file.
type Config struct {
	Logging   LoggingConfig     `yaml:"logging"`
	Metrics   MetricsConfig     `yaml:"metrics"`
	Storage   StorageConfig     `yaml:"storage"`
	Reconnect ReconnectConfig   `yaml:"reconnect"`
	Chains    []ChainConfig     `yaml:"chain"`
	Validator []ValidatorConfig `yaml:"validator"`
	Providers ProvidersConfig   `yaml:"providers"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus and health endpoint.
type MetricsConfig struct {
	Enabled bool      `yaml:"enabled"`
	Listen  string    `yaml:"listen_addr"`
	Path    string    `yaml:"path"`
	TLS     TLSConfig `yaml:"tls"`
}

// StorageConfig selects where chain state is persisted.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// ReconnectConfig throttles reconnection to validators.
type ReconnectConfig struct {
	AttemptsPerMinute int `yaml:"attempts_per_minute"`
	Burst             int `yaml:"burst"`
}

// ChainConfig describes one chain the KMS signs for.
type ChainConfig struct {
	ID        string      `yaml:"id"`
	StateHook *HookConfig `yaml:"state_hook,omitempty"`
}

// HookConfig configures the chain height hook.
type HookConfig struct {
	Cmd        []string      `yaml:"cmd"`
	Timeout    time.Duration `yaml:"timeout"`
	FailClosed bool          `yaml:"fail_closed"`
}

// ValidatorConfig describes one validator to connect to.
type ValidatorConfig struct {
	Addr        string        `yaml:"addr"`
	ChainID     string        `yaml:"chain_id"`
	Reconnect   bool          `yaml:"reconnect"`
	MaxHeight   int64         `yaml:"max_height,omitempty"`
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty"`
}

// ProvidersConfig lists the signing providers.
type ProvidersConfig struct {
	Softsign []SoftsignProvider `yaml:"softsign"`
	PKCS11   []PKCS11Provider   `yaml:"pkcs11"`
	Vault    []VaultProvider    `yaml:"vault"`
}

// SoftsignProvider binds a software key to chains.
type SoftsignProvider struct {
	ChainIDs               []string `yaml:"chain_ids"`
	signing.SoftsignConfig `yaml:",inline"`
}

// PKCS11Provider binds a PKCS#11 key to chains.
type PKCS11Provider struct {
	ChainIDs             []string `yaml:"chain_ids"`
	signing.PKCS11Config `yaml:",inline"`
}

// VaultProvider binds a Vault transit key to chains.
type VaultProvider struct {
	ChainIDs            []string `yaml:"chain_ids"`
	signing.VaultConfig `yaml:",inline"`
}

// Load reads the YAML file at path, applies defaults and KMS_* environment
// overrides, and validates the result. Every failure is a ConfigError.
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, kmserror.Wrapf(kmserror.ConfigError, err, "read config file")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes, completes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, kmserror.Wrapf(kmserror.ConfigError, err, "parse config file")
	}

	cfg.applyDefaults()
	if err := cfg.applyEnvOverrides(os.LookupEnv); err != nil {
		return nil, kmserror.Wrapf(kmserror.ConfigError, err, "environment override")
	}
	if err := cfg.Validate(); err != nil {
		return nil, kmserror.Wrapf(kmserror.ConfigError, err, "invalid configuration")
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = DefaultMetricsListen
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageFile
	}
	if c.Storage.Path == "" {
		c.Storage.Path = DefaultStateDir
	}
	for i := range c.Validator {
		if c.Validator[i].ReadTimeout == 0 {
			c.Validator[i].ReadTimeout = DefaultReadTimeout
		}
	}
}

// resolvePaths makes relative file paths relative to the config file's
// directory.
func (c *Config) resolvePaths(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Storage.Path = abs(c.Storage.Path)
	c.Metrics.TLS.CertFile = abs(c.Metrics.TLS.CertFile)
	c.Metrics.TLS.KeyFile = abs(c.Metrics.TLS.KeyFile)
	c.Metrics.TLS.ClientCAFile = abs(c.Metrics.TLS.ClientCAFile)
	for i := range c.Providers.Softsign {
		c.Providers.Softsign[i].KeyFile = abs(c.Providers.Softsign[i].KeyFile)
	}
}

// applyEnvOverrides applies KMS_* environment variables. Only settings that
// are not lists can be overridden.
func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) error {
	if v, ok := lookup("KMS_LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup("KMS_LOG_FORMAT"); ok && v != "" {
		c.Logging.Format = v
	}
	if v, ok := lookup("KMS_METRICS_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("KMS_METRICS_ENABLED=%q: %w", v, err)
		}
		c.Metrics.Enabled = b
	}
	if v, ok := lookup("KMS_METRICS_LISTEN"); ok && v != "" {
		c.Metrics.Listen = v
	}
	if v, ok := lookup("KMS_STATE_DIR"); ok && v != "" {
		c.Storage.Path = v
	}
	if v, ok := lookup("KMS_PKCS11_PIN"); ok {
		for i := range c.Providers.PKCS11 {
			c.Providers.PKCS11[i].PIN = v
		}
	}
	if v, ok := lookup("VAULT_TOKEN"); ok && v != "" {
		for i := range c.Providers.Vault {
			if c.Providers.Vault[i].Token == "" {
				c.Providers.Vault[i].Token = v
			}
		}
	}
	return nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case logger.FormatJSON, logger.FormatText:
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			return fmt.Errorf("invalid metrics listen_addr %q: %w", c.Metrics.Listen, err)
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("metrics path must start with /: %q", c.Metrics.Path)
		}
		if err := c.Metrics.TLS.Validate(); err != nil {
			return err
		}
	}

	switch c.Storage.Backend {
	case StorageFile:
		if c.Storage.Path == "" {
			return errors.New("storage path must be specified")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Reconnect.AttemptsPerMinute < 0 || c.Reconnect.Burst < 0 {
		return errors.New("reconnect limits must not be negative")
	}

	if len(c.Chains) == 0 {
		return errors.New("at least one chain must be configured")
	}
	chains := make(map[string]bool, len(c.Chains))
	for _, ch := range c.Chains {
		if _, err := types.ParseChainID(ch.ID); err != nil {
			return fmt.Errorf("chain %q: %w", ch.ID, err)
		}
		if chains[ch.ID] {
			return fmt.Errorf("chain %q configured twice", ch.ID)
		}
		chains[ch.ID] = true
		if ch.StateHook != nil && len(ch.StateHook.Cmd) == 0 {
			return fmt.Errorf("chain %q: state_hook.cmd must not be empty", ch.ID)
		}
	}

	if len(c.Validator) == 0 {
		return errors.New("at least one validator must be configured")
	}
	for _, v := range c.Validator {
		if !chains[v.ChainID] {
			return fmt.Errorf("validator %s: unknown chain %q", v.Addr, v.ChainID)
		}
		if _, _, err := v.Dial(); err != nil {
			return err
		}
		if v.MaxHeight < 0 {
			return fmt.Errorf("validator %s: negative max_height", v.Addr)
		}
		if v.ReadTimeout < 0 {
			return fmt.Errorf("validator %s: negative read_timeout", v.Addr)
		}
	}

	signed := make(map[string]bool)
	bind := func(kind string, ids []string) error {
		if len(ids) == 0 {
			return fmt.Errorf("%s provider has no chain_ids", kind)
		}
		for _, id := range ids {
			if !chains[id] {
				return fmt.Errorf("%s provider: unknown chain %q", kind, id)
			}
			if signed[id] {
				return fmt.Errorf("chain %q has more than one signing provider", id)
			}
			signed[id] = true
		}
		return nil
	}
	for _, p := range c.Providers.Softsign {
		if err := bind("softsign", p.ChainIDs); err != nil {
			return err
		}
		if p.KeyFile == "" {
			return errors.New("softsign provider requires key_file")
		}
	}
	for _, p := range c.Providers.PKCS11 {
		if err := bind("pkcs11", p.ChainIDs); err != nil {
			return err
		}
		if p.Library == "" || p.KeyLabel == "" {
			return errors.New("pkcs11 provider requires library and key_label")
		}
	}
	for _, p := range c.Providers.Vault {
		if err := bind("vault", p.ChainIDs); err != nil {
			return err
		}
		if p.Address == "" || p.KeyName == "" {
			return errors.New("vault provider requires address and key_name")
		}
	}
	for id := range chains {
		if !signed[id] {
			return fmt.Errorf("chain %q has no signing provider", id)
		}
	}
	return nil
}

// Chain returns the configuration of chain id.
func (c *Config) Chain(id string) (ChainConfig, bool) {
	for _, ch := range c.Chains {
		if ch.ID == id {
			return ch, true
		}
	}
	return ChainConfig{}, false
}

// Dial returns the network and address to pass to net.Dial. Accepted forms
// are tcp://host:port and unix:///path/to/socket.
func (v ValidatorConfig) Dial() (network, address string, err error) {
	u, err := url.Parse(v.Addr)
	if err != nil {
		return "", "", fmt.Errorf("validator addr %q: %w", v.Addr, err)
	}
	switch u.Scheme {
	case "tcp":
		if _, _, err := net.SplitHostPort(u.Host); err != nil {
			return "", "", fmt.Errorf("validator addr %q: %w", v.Addr, err)
		}
		return "tcp", u.Host, nil
	case "unix":
		if u.Path == "" {
			return "", "", fmt.Errorf("validator addr %q: missing socket path", v.Addr)
		}
		return "unix", u.Path, nil
	default:
		return "", "", fmt.Errorf("validator addr %q: unsupported scheme %q", v.Addr, u.Scheme)
	}
}
