// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-org/sync3-client/setup/config"
	"github.com/matrix-org/sync3-client/sync3"
)

func TestRegisterConfiguredExtensionsRegistersEnabledOnes(t *testing.T) {
	exts := sync3.NewExtensionRegistry()
	err := registerConfiguredExtensions(exts, map[string]config.ExtensionConfig{
		"e2ee":         {Enabled: true},
		"typing":       {Enabled: true, Rooms: []string{"!a:bar"}},
		"account_data": {Enabled: false},
	})
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, ext := range exts.All() {
		names[ext.Name()] = true
	}
	assert.True(t, names["e2ee"])
	assert.True(t, names["typing"])
	assert.False(t, names["account_data"])
}

func TestRegisterConfiguredExtensionsRejectsUnknownName(t *testing.T) {
	exts := sync3.NewExtensionRegistry()
	err := registerConfiguredExtensions(exts, map[string]config.ExtensionConfig{
		"not_a_real_extension": {Enabled: true},
	})
	assert.Error(t, err)
}
