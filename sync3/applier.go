// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package sync3

import "context"

// Applier turns a decoded Response into the three event families an
// EventSink consumes, in the order spec.md §4.3 mandates:
//
//  1. pre-process extensions (OnResponse, in registration order)
//  2. RoomData, once per room, in server order
//  3. ListUpdate, once per list entry present in the response
//  4. post-process extensions (OnResponse, in registration order)
//
// It holds no state of its own beyond the ListModel it updates; the
// response itself is the only per-call state.
type Applier struct {
	lists *ListModel
	exts  *ExtensionRegistry
	sink  EventSink
}

func NewApplier(lists *ListModel, exts *ExtensionRegistry, sink EventSink) *Applier {
	return &Applier{lists: lists, exts: exts, sink: sink}
}

// Apply processes one decoded response, emitting events to the sink.
// Extension errors do not abort processing: a broken extension must not
// prevent the room/list data in the same response from reaching the
// caller. Once every step has run, the first extension error is returned
// as the extension gave it.
func (a *Applier) Apply(ctx context.Context, resp *Response) error {
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, ext := range a.exts.ByPhase(PhasePre) {
		if raw, ok := resp.Extensions[ext.Name()]; ok {
			note(ext.OnResponse(ctx, raw))
		}
	}

	for _, entry := range resp.Rooms {
		a.sink.OnRoomData(RoomDataEvent{
			RoomID: entry.RoomID,
			Data:   entry.Data.defaultEmptyContainers(),
		})
	}

	for name, rl := range resp.Lists {
		rooms := a.lists.ApplyOps(name, rl.Count, rl.Ops)
		a.sink.OnListUpdate(ListUpdateEvent{
			ListName:    name,
			JoinedCount: rl.Count,
			Rooms:       rooms,
		})
	}

	for _, ext := range a.exts.ByPhase(PhasePost) {
		if raw, ok := resp.Extensions[ext.Name()]; ok {
			note(ext.OnResponse(ctx, raw))
		}
	}

	return firstErr
}
