// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package extensions holds the built-in sliding-sync extension
// implementations, one file per concern, in the same spirit as
// gnunicorn-sliding-sync's sync3/streams package split (one file per
// stream) and Dendrite's Phase 9 extension types in syncapi/types/v4types.go.
package extensions

import (
	"context"
	"encoding/json"

	"github.com/matrix-org/sync3-client/sync3"
)

// TypingRequest is the wire shape sent under extensions["typing"].
type TypingRequest struct {
	Enabled bool     `json:"enabled"`
	Lists   []string `json:"lists,omitempty"`
	Rooms   []string `json:"rooms,omitempty"`
}

// TypingResponse is the wire shape received under extensions["typing"]:
// one typing event per room, matching Dendrite's TypingResponse contract.
type TypingResponse struct {
	Rooms map[string]json.RawMessage `json:"rooms"`
}

// Typing is a post-process extension that surfaces per-room typing
// notifications alongside the main response.
type Typing struct {
	RoomIDs []string

	OnTyping func(TypingResponse)
}

func (t *Typing) Name() string { return "typing" }

func (t *Typing) Phase() sync3.ExtensionPhase { return sync3.PhasePost }

func (t *Typing) OnRequest(_ context.Context, _ bool) (interface{}, bool) {
	return TypingRequest{Enabled: true, Rooms: t.RoomIDs}, true
}

func (t *Typing) OnResponse(_ context.Context, data json.RawMessage) error {
	if len(data) == 0 {
		return nil
	}
	var resp TypingResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	if t.OnTyping != nil {
		t.OnTyping(resp)
	}
	return nil
}
