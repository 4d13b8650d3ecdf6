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

// AccountDataRequest is the wire shape sent under extensions["account_data"].
type AccountDataRequest struct {
	Enabled bool     `json:"enabled"`
	Lists   []string `json:"lists,omitempty"`
	Rooms   []string `json:"rooms,omitempty"`
}

// AccountDataResponse carries global and per-room account data updates.
type AccountDataResponse struct {
	Global []json.RawMessage            `json:"global"`
	Rooms  map[string][]json.RawMessage `json:"rooms"`
}

// AccountData is a pre-process extension: account data changes (e.g. a
// room's read-marker or the user's push rules) should land before the
// room-data/list events derived from the same response, since consumers
// often key room-level decisions off account data.
type AccountData struct {
	Lists []string
	Rooms []string

	OnAccountData func(AccountDataResponse)
}

func (a *AccountData) Name() string { return "account_data" }

func (a *AccountData) Phase() sync3.ExtensionPhase { return sync3.PhasePre }

func (a *AccountData) OnRequest(_ context.Context, _ bool) (interface{}, bool) {
	return AccountDataRequest{Enabled: true, Lists: a.Lists, Rooms: a.Rooms}, true
}

func (a *AccountData) OnResponse(_ context.Context, data json.RawMessage) error {
	if len(data) == 0 {
		return nil
	}
	var resp AccountDataResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	if a.OnAccountData != nil {
		a.OnAccountData(resp)
	}
	return nil
}
