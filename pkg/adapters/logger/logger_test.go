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

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-kms/pkg/correlation"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		out = append(out, rec)
	}
	return out
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LevelFatal, "FATAL"},
		{Level(999), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"trace", LevelDebug, false},
		{"", LevelInfo, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"fatal", LevelFatal, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFields(t *testing.T) {
	err := errors.New("boom")
	tests := []struct {
		name  string
		field Field
		key   string
		value any
	}{
		{"string", String("k", "v"), "k", "v"},
		{"int", Int("n", 1), "n", 1},
		{"int64", Int64("h", 12345), "h", int64(12345)},
		{"bool", Bool("b", true), "b", true},
		{"duration", Duration("d", time.Second), "d", time.Second},
		{"error", Error(err), "error", err},
		{"strings", Strings("s", []string{"a"}), "s", []string{"a"}},
		{"chain", Chain("cosmoshub-1"), "chain_id", "cosmoshub-1"},
		{"validator", Validator("tcp://127.0.0.1:26658"), "validator", "tcp://127.0.0.1:26658"},
		{"any", Any("x", 1.5), "x", 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.field.Key)
			assert.Equal(t, tt.value, tt.field.Value)
		})
	}
}

func TestNew_JSONIsDefault(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("info", "", &buf)
	require.NoError(t, err)

	log.Info("signed", Chain("test-chain"), Int64("height", 7), Error(errors.New("none")))
	log.Debug("hidden")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "signed", recs[0]["msg"])
	assert.Equal(t, "test-chain", recs[0]["chain_id"])
	assert.Equal(t, float64(7), recs[0]["height"])
	assert.Equal(t, "none", recs[0]["error"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("debug", "text", &buf)
	require.NoError(t, err)

	log.Debug("hello", String("k", "v"))
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}

func TestNew_Invalid(t *testing.T) {
	_, err := New("nope", "json", nil)
	assert.Error(t, err)

	_, err = New("info", "xml", nil)
	assert.Error(t, err)
}

func TestSlogAdapter_WithDoesNotDuplicate(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogAdapter(&SlogConfig{Output: &buf, Level: LevelDebug})

	child := log.With(Chain("a")).WithError(errors.New("cause"))
	child.Warn("warned", Int("n", 2))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "chain_id"))
	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "WARN", recs[0]["level"])
	assert.Equal(t, "cause", recs[0]["error"])
}

func TestSlogAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogAdapter(&SlogConfig{Output: &buf, Level: LevelError})

	log.Info("dropped")
	log.Warn("dropped")
	log.Error("kept")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "kept", recs[0]["msg"])
}

func TestSlogAdapter_ContextCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogAdapter(&SlogConfig{Output: &buf, Level: LevelDebug})
	ctx := correlation.WithCorrelationID(context.Background(), "conn-1")

	log.InfoContext(ctx, "a")
	log.DebugContext(ctx, "b")
	log.WarnContext(context.Background(), "c")
	log.ErrorContext(ctx, "d")
	log.WithContext(ctx).Info("e")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 5)
	assert.Equal(t, "conn-1", recs[0]["correlation_id"])
	assert.Equal(t, "conn-1", recs[1]["correlation_id"])
	assert.NotContains(t, recs[2], "correlation_id")
	assert.Equal(t, "conn-1", recs[3]["correlation_id"])
	assert.Equal(t, "conn-1", recs[4]["correlation_id"])
}

func TestFatal_Exits(t *testing.T) {
	var code int
	orig := exit
	exit = func(c int) { code = c }
	defer func() { exit = orig }()

	var buf bytes.Buffer
	NewSlogAdapter(&SlogConfig{Output: &buf}).Fatal("bye")
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "bye")

	code = 0
	Nop().Fatal("bye")
	assert.Equal(t, 1, code)
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
	assert.Equal(t, l, l.With(String("k", "v")))
	assert.Equal(t, l, l.WithError(errors.New("e")))
}
