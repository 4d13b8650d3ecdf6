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

// ReceiptsRequest is the wire shape sent under extensions["receipts"].
type ReceiptsRequest struct {
	Enabled bool     `json:"enabled"`
	Lists   []string `json:"lists,omitempty"`
	Rooms   []string `json:"rooms,omitempty"`
}

// ReceiptsResponse carries a single receipt event per room, matching
// Dendrite's ReceiptsResponse contract (matrix-js-sdk expects this, not
// an array).
type ReceiptsResponse struct {
	Rooms map[string]json.RawMessage `json:"rooms"`
}

// Receipts is a post-process extension surfacing read receipt updates.
type Receipts struct {
	Lists []string
	Rooms []string

	OnReceipts func(ReceiptsResponse)
}

func (r *Receipts) Name() string { return "receipts" }

func (r *Receipts) Phase() sync3.ExtensionPhase { return sync3.PhasePost }

func (r *Receipts) OnRequest(_ context.Context, _ bool) (interface{}, bool) {
	return ReceiptsRequest{Enabled: true, Lists: r.Lists, Rooms: r.Rooms}, true
}

func (r *Receipts) OnResponse(_ context.Context, data json.RawMessage) error {
	if len(data) == 0 {
		return nil
	}
	var resp ReceiptsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	if r.OnReceipts != nil {
		r.OnReceipts(resp)
	}
	return nil
}
