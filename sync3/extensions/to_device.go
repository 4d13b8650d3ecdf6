// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package extensions

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/matrix-org/sync3-client/sync3"
)

// ToDeviceRequest is the wire shape sent under extensions["to_device"].
// Since carries the cursor from the previous response's NextBatch, giving
// the server a stream position to resume from.
type ToDeviceRequest struct {
	Enabled bool   `json:"enabled"`
	Since   string `json:"since,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// ToDeviceResponse carries to-device messages plus a cursor for the next
// request's `since`, mirroring Dendrite's V4ToDeviceResponse.
type ToDeviceResponse struct {
	NextBatch string            `json:"next_batch"`
	Events    []json.RawMessage `json:"events"`
}

// ToDevice is a pre-process extension: to-device messages (e.g. a
// to-be-decrypted Megolm session) typically need to land before the
// timeline events that depend on them.
type ToDevice struct {
	Limit int

	mu    sync.Mutex
	since string

	OnToDevice func(ToDeviceResponse)
}

func (t *ToDevice) Name() string { return "to_device" }

func (t *ToDevice) Phase() sync3.ExtensionPhase { return sync3.PhasePre }

func (t *ToDevice) OnRequest(_ context.Context, initial bool) (interface{}, bool) {
	t.mu.Lock()
	since := t.since
	t.mu.Unlock()
	if initial {
		since = ""
	}
	return ToDeviceRequest{Enabled: true, Since: since, Limit: t.Limit}, true
}

func (t *ToDevice) OnResponse(_ context.Context, data json.RawMessage) error {
	if len(data) == 0 {
		return nil
	}
	var resp ToDeviceResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	t.mu.Lock()
	t.since = resp.NextBatch
	t.mu.Unlock()
	if t.OnToDevice != nil {
		t.OnToDevice(resp)
	}
	return nil
}
