// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-org/sync3-client/sync3"
)

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
proxy_base_url: https://syncv3.example.org
timeout_seconds: 45
lists:
  all:
    ranges:
      - [0, 19]
extensions:
  e2ee:
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://syncv3.example.org", cfg.ProxyBaseURL)
	assert.Equal(t, 45, cfg.TimeoutSeconds)
	require.Contains(t, cfg.Lists, "all")
	assert.Equal(t, sync3.SliceRanges{{0, 19}}, cfg.Lists["all"].Ranges)
	require.Contains(t, cfg.Extensions, "e2ee")
	assert.True(t, cfg.Extensions["e2ee"].Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultsFillsZeroValues(t *testing.T) {
	var cfg Config
	cfg.Defaults(DefaultOpts{})
	assert.Equal(t, 30, cfg.TimeoutSeconds)
	assert.NotNil(t, cfg.Lists)
	assert.NotNil(t, cfg.Extensions)
}

func TestVerifyAccumulatesErrors(t *testing.T) {
	cfg := Config{
		TimeoutSeconds: -1,
		Lists: map[string]sync3.ListShape{
			"bad": {Ranges: sync3.SliceRanges{{5, 1}}},
		},
	}
	var errs ConfigErrors
	cfg.Verify(&errs)
	require.Len(t, errs, 3)
	assert.Contains(t, errs.Error(), "proxy_base_url is not set")
	assert.Contains(t, errs.Error(), "timeout_seconds must be positive")
	assert.Contains(t, errs.Error(), "lists.bad: ranges are invalid")
}
