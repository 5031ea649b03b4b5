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
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-kms/internal/config"
	"github.com/jeremyhahn/go-kms/pkg/account"
	"github.com/jeremyhahn/go-kms/pkg/kmserror"
	"github.com/jeremyhahn/go-kms/pkg/signing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "kms version "+Version)

	out, err = execute(t, "version", "-o", "json")
	require.NoError(t, err)
	var info VersionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestUnknownOutputFormat(t *testing.T) {
	_, err := execute(t, "version", "-o", "yaml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestOutputFormatFromEnv(t *testing.T) {
	t.Setenv("KMS_OUTPUT", "json")
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)), out)
}

func TestSoftsign(t *testing.T) {
	path := filepath.Join(t.TempDir(), "consensus.key")

	out, err := execute(t, "softsign", "keygen", path, "-o", "json")
	require.NoError(t, err)
	var generated map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &generated))

	priv, err := signing.LoadKeyFile(path)
	require.NoError(t, err)
	pub := priv.Public().(ed25519.PublicKey)
	assert.Equal(t, strings.ToUpper(hex.EncodeToString(pub)), generated["public_key"])
	assert.Equal(t, account.FromPublicKey(pub).String(), generated["account_id"])

	out, err = execute(t, "softsign", "pubkey", path)
	require.NoError(t, err)
	assert.Contains(t, out, generated["public_key"])

	_, err = execute(t, "softsign", "keygen", path)
	assert.ErrorContains(t, err, "refusing to overwrite")

	_, err = execute(t, "softsign", "pubkey", filepath.Join(t.TempDir(), "missing.key"))
	assert.Error(t, err)
}

func TestAccount(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	out, err := execute(t, "account", hex.EncodeToString(pub))
	require.NoError(t, err)
	assert.Equal(t, account.FromPublicKey(pub).String()+"\n", out)

	_, err = execute(t, "account", "not-hex")
	assert.Error(t, err)

	_, err = execute(t, "account")
	assert.Error(t, err)
}

func TestInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "kms")

	out, err := execute(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote configuration")

	configPath := filepath.Join(dir, config.SampleFile)
	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	require.Len(t, cfg.Providers.Softsign, 1)

	_, err = signing.LoadKeyFile(cfg.Providers.Softsign[0].KeyFile)
	assert.NoError(t, err)

	_, err = execute(t, "init", dir)
	assert.Error(t, err)
}

func TestStart_ConfigErrors(t *testing.T) {
	_, err := execute(t, "start", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, kmserror.ConfigError)

	dir := t.TempDir()
	_, err = execute(t, "init", dir)
	require.NoError(t, err)
	configPath := filepath.Join(dir, config.SampleFile)

	t.Setenv("KMS_CONFIG", configPath)
	_, err = execute(t, "start", "--log-level", "loud")
	assert.ErrorIs(t, err, kmserror.ConfigError)
}

func TestLoadConfig_Overrides(t *testing.T) {
	dir := t.TempDir()
	configPath, err := config.WriteSample(dir)
	require.NoError(t, err)

	s := newSettings()
	s.v.Set(keyConfig, configPath)
	s.v.Set(keyLogLevel, "debug")
	s.v.Set(keyLogFormat, "text")

	cfg, err := loadConfig(s)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestPrinter_UnknownFormat(t *testing.T) {
	p := NewPrinter("xml", os.Stdout)
	assert.Error(t, p.PrintAccount(account.ID{}))
	assert.Error(t, p.PrintVersion(VersionInfo{}))
}
