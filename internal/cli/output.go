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
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jeremyhahn/go-kms/pkg/account"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintVersion prints build information.
func (p *Printer) PrintVersion(info VersionInfo) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(info)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "kms version %s\n", info.Version)
		fmt.Fprintf(p.writer, "Git commit: %s\n", info.Commit)
		fmt.Fprintf(p.writer, "Build date: %s\n", info.BuildDate)
		fmt.Fprintf(p.writer, "Go version: %s\n", info.GoVersion)
		fmt.Fprintf(p.writer, "OS/Arch: %s/%s\n", info.OS, info.Arch)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintPublicKey prints an ed25519 public key with its account id.
func (p *Printer) PrintPublicKey(path string, pub ed25519.PublicKey) error {
	id := account.FromPublicKey(pub)
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"key_file":   path,
			"public_key": strings.ToUpper(hex.EncodeToString(pub)),
			"base64":     base64.StdEncoding.EncodeToString(pub),
			"account_id": id.String(),
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Key file:   %s\n", path)
		fmt.Fprintf(p.writer, "Public key: %X\n", []byte(pub))
		fmt.Fprintf(p.writer, "Base64:     %s\n", base64.StdEncoding.EncodeToString(pub))
		fmt.Fprintf(p.writer, "Account ID: %s\n", id)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintAccount prints an account id.
func (p *Printer) PrintAccount(id account.ID) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"account_id": id.String(),
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, id)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintInit reports the files written by kms init.
func (p *Printer) PrintInit(configPath, keyPath string, pub ed25519.PublicKey) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"config":     configPath,
			"key_file":   keyPath,
			"public_key": strings.ToUpper(hex.EncodeToString(pub)),
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Wrote configuration to %s\n", configPath)
		fmt.Fprintf(p.writer, "Wrote consensus key to %s\n", keyPath)
		fmt.Fprintf(p.writer, "Public key: %X\n", []byte(pub))
		fmt.Fprintln(p.writer, "Edit the validator and chain sections, then run: kms start -c", configPath)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// printJSON prints data as indented JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
