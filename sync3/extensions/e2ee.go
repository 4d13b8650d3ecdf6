// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package extensions

import (
	"context"
	"encoding/json"

	"github.com/matrix-org/sync3-client/sync3"
)

// E2EERequest is the wire shape sent under extensions["e2ee"] (MSC3884).
// It is a sticky, boolean-only enable switch.
type E2EERequest struct {
	Enabled bool `json:"enabled"`
}

// E2EEResponse carries one-time-key counts and, on incremental syncs,
// device list changes. The engine treats the device-list/key-count
// payload as opaque: actual cryptographic handling is out of scope
// (spec.md §1 Non-goals).
type E2EEResponse struct {
	DeviceOneTimeKeysCount       map[string]int `json:"device_one_time_keys_count,omitempty"`
	DeviceUnusedFallbackKeyTypes []string       `json:"device_unused_fallback_key_types"`
	DeviceLists                  *DeviceLists   `json:"device_lists,omitempty"`
}

// DeviceLists carries changed/left device-owning users between this sync
// and the last, opaque payload passed through to the caller.
type DeviceLists struct {
	Changed []string `json:"changed,omitempty"`
	Left    []string `json:"left,omitempty"`
}

// E2EE is a pre-process extension: device-list changes often gate whether
// a to-device message decrypts, so it must run before timeline processing.
type E2EE struct {
	OnE2EE func(E2EEResponse)
}

func (e *E2EE) Name() string { return "e2ee" }

func (e *E2EE) Phase() sync3.ExtensionPhase { return sync3.PhasePre }

func (e *E2EE) OnRequest(_ context.Context, _ bool) (interface{}, bool) {
	return E2EERequest{Enabled: true}, true
}

func (e *E2EE) OnResponse(_ context.Context, data json.RawMessage) error {
	if len(data) == 0 {
		return nil
	}
	var resp E2EEResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	if e.OnE2EE != nil {
		e.OnE2EE(resp)
	}
	return nil
}
