// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package extensions

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-org/sync3-client/sync3"
)

func TestAccountDataRequestAndResponse(t *testing.T) {
	var got AccountDataResponse
	ext := &AccountData{
		Lists: []string{"a"},
		Rooms: []string{"!x:bar"},
		OnAccountData: func(resp AccountDataResponse) {
			got = resp
		},
	}
	assert.Equal(t, "account_data", ext.Name())
	assert.Equal(t, sync3.PhasePre, ext.Phase())

	payload, include := ext.OnRequest(context.Background(), true)
	require.True(t, include)
	assert.Equal(t, AccountDataRequest{Enabled: true, Lists: []string{"a"}, Rooms: []string{"!x:bar"}}, payload)

	body := json.RawMessage(`{"global":[{"type":"m.push_rules"}],"rooms":{"!x:bar":[{"type":"m.fully_read"}]}}`)
	require.NoError(t, ext.OnResponse(context.Background(), body))
	require.Len(t, got.Global, 1)
	require.Contains(t, got.Rooms, "!x:bar")
}

func TestAccountDataOnResponseIgnoresEmptyBody(t *testing.T) {
	called := false
	ext := &AccountData{OnAccountData: func(AccountDataResponse) { called = true }}
	require.NoError(t, ext.OnResponse(context.Background(), nil))
	assert.False(t, called)
}

func TestE2EERequestAndResponse(t *testing.T) {
	var got E2EEResponse
	ext := &E2EE{OnE2EE: func(resp E2EEResponse) { got = resp }}
	assert.Equal(t, "e2ee", ext.Name())
	assert.Equal(t, sync3.PhasePre, ext.Phase())

	payload, include := ext.OnRequest(context.Background(), false)
	require.True(t, include)
	assert.Equal(t, E2EERequest{Enabled: true}, payload)

	body := json.RawMessage(`{"device_one_time_keys_count":{"signed_curve25519":50},"device_lists":{"changed":["@alice:bar"]}}`)
	require.NoError(t, ext.OnResponse(context.Background(), body))
	assert.Equal(t, 50, got.DeviceOneTimeKeysCount["signed_curve25519"])
	require.NotNil(t, got.DeviceLists)
	assert.Equal(t, []string{"@alice:bar"}, got.DeviceLists.Changed)
}

func TestReceiptsIsPostPhase(t *testing.T) {
	var got ReceiptsResponse
	ext := &Receipts{Lists: []string{"a"}, OnReceipts: func(resp ReceiptsResponse) { got = resp }}
	assert.Equal(t, "receipts", ext.Name())
	assert.Equal(t, sync3.PhasePost, ext.Phase())

	body := json.RawMessage(`{"rooms":{"!x:bar":{"type":"m.receipt"}}}`)
	require.NoError(t, ext.OnResponse(context.Background(), body))
	assert.Contains(t, got.Rooms, "!x:bar")
}

func TestToDeviceCarriesSinceAcrossRequests(t *testing.T) {
	ext := &ToDevice{Limit: 100}
	assert.Equal(t, sync3.PhasePre, ext.Phase())

	payload, _ := ext.OnRequest(context.Background(), true)
	assert.Equal(t, ToDeviceRequest{Enabled: true, Limit: 100}, payload)

	require.NoError(t, ext.OnResponse(context.Background(), json.RawMessage(`{"next_batch":"s1"}`)))

	payload = mustOnRequest(t, ext, false)
	assert.Equal(t, ToDeviceRequest{Enabled: true, Since: "s1", Limit: 100}, payload)
}

func TestToDeviceResetsSinceOnInitial(t *testing.T) {
	ext := &ToDevice{}
	require.NoError(t, ext.OnResponse(context.Background(), json.RawMessage(`{"next_batch":"s1"}`)))

	payload := mustOnRequest(t, ext, true)
	assert.Equal(t, ToDeviceRequest{Enabled: true}, payload)
}

func mustOnRequest(t *testing.T, ext *ToDevice, initial bool) ToDeviceRequest {
	t.Helper()
	payload, include := ext.OnRequest(context.Background(), initial)
	require.True(t, include)
	req, ok := payload.(ToDeviceRequest)
	require.True(t, ok)
	return req
}

func TestTypingIsPostPhase(t *testing.T) {
	var got TypingResponse
	ext := &Typing{RoomIDs: []string{"!x:bar"}, OnTyping: func(resp TypingResponse) { got = resp }}
	assert.Equal(t, "typing", ext.Name())
	assert.Equal(t, sync3.PhasePost, ext.Phase())

	payload, include := ext.OnRequest(context.Background(), false)
	require.True(t, include)
	assert.Equal(t, TypingRequest{Enabled: true, Rooms: []string{"!x:bar"}}, payload)

	require.NoError(t, ext.OnResponse(context.Background(), json.RawMessage(`{"rooms":{"!x:bar":{"type":"m.typing"}}}`)))
	assert.Contains(t, got.Rooms, "!x:bar")
}
