// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package sync3

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// RequestBuilder diffs the current desired state against the last
// successfully sent snapshot to produce the next request body, honoring
// the sticky-parameter rule from spec.md §4.2: a value is only resent when
// it is new or has changed since the last successful send. It is grounded
// on gnunicorn-sliding-sync's sync3.Request.ApplyDelta sticky-diff, which
// performs the same comparison in the opposite direction (server merging a
// new request into the previously muxed one).
type RequestBuilder struct {
	lists        *ListModel
	subs         *SubscriptionManager
	exts         *ExtensionRegistry

	// ConnID, once set, is echoed on every request (SPEC_FULL.md §6
	// supplemented feature), letting a server that multiplexes
	// connections-per-device route correctly. Purely additive.
	ConnID string

	lastLists      map[string]ListShape
	lastRoomSubs   map[string]RoomSubscription
	lastSubscribed map[string]struct{}
}

func NewRequestBuilder(lists *ListModel, subs *SubscriptionManager, exts *ExtensionRegistry) *RequestBuilder {
	return &RequestBuilder{
		lists:          lists,
		subs:           subs,
		exts:           exts,
		lastLists:      make(map[string]ListShape),
		lastRoomSubs:   make(map[string]RoomSubscription),
		lastSubscribed: make(map[string]struct{}),
	}
}

// Reset clears every sticky snapshot, forcing the next Build to resend
// every list shape, every subscription and (via initial=true) every
// extension's onRequest output, per spec.md §7 session-expiry recovery.
func (b *RequestBuilder) Reset() {
	b.lastLists = make(map[string]ListShape)
	b.lastRoomSubs = make(map[string]RoomSubscription)
	b.lastSubscribed = make(map[string]struct{})
}

// Build produces the next request body. initial should be true on the very
// first request, or the first request after Reset.
func (b *RequestBuilder) Build(ctx context.Context, initial bool) *Request {
	req := &Request{TxnID: uuid.NewString(), ConnID: b.ConnID}

	// lists: resend the full shape for anything new or changed; omit
	// anything identical to what was last sent (spec.md §4.2).
	current := b.lists.AllShapes()
	var listDelta map[string]ListShape
	for name, shape := range current {
		prev, existed := b.lastLists[name]
		if !existed || !listUnchanged(prev, shape) {
			if listDelta == nil {
				listDelta = make(map[string]ListShape)
			}
			listDelta[name] = shape
		}
	}
	if listDelta != nil {
		req.Lists = listDelta
	}

	// room_subscriptions / unsubscribe_rooms: include a room's shape if
	// it's newly subscribed or its effective shape changed; list rooms
	// that dropped out of the subscribed set as unsubscribes
	// (spec.md §4.2, §8 invariant 5).
	subscribed := make(map[string]struct{})
	for _, id := range b.subs.GetRoomSubscriptions() {
		subscribed[id] = struct{}{}
	}
	var roomSubs map[string]RoomSubscription
	for id := range subscribed {
		effective := b.subs.EffectiveShape(id)
		prev, existed := b.lastRoomSubs[id]
		if !existed || !prev.Equal(effective) {
			if roomSubs == nil {
				roomSubs = make(map[string]RoomSubscription)
			}
			roomSubs[id] = effective
		}
	}
	if roomSubs != nil {
		req.RoomSubscriptions = roomSubs
	}
	var unsubs []string
	for id := range b.lastSubscribed {
		if _, stillSubscribed := subscribed[id]; !stillSubscribed {
			unsubs = append(unsubs, id)
		}
	}
	if unsubs != nil {
		req.UnsubscribeRooms = unsubs
	}

	// extensions: include whatever each registered extension's onRequest
	// wants to send this cycle; extensions are not sticky-diffed by the
	// builder, the extension implementation itself decides what initial
	// means for its own payload (spec.md §4.2, §4.6).
	var extPayloads map[string]json.RawMessage
	for _, ext := range b.exts.All() {
		payload, include := ext.OnRequest(ctx, initial)
		if !include {
			continue
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			continue
		}
		if extPayloads == nil {
			extPayloads = make(map[string]json.RawMessage)
		}
		extPayloads[ext.Name()] = raw
	}
	if extPayloads != nil {
		req.Extensions = extPayloads
	}

	return req
}

// Commit records the state that was just successfully sent to the server,
// so subsequent Build calls can correctly omit unchanged sticky parameters.
// Callers must only call Commit once the server has actually accepted the
// request (a 2xx HTTP response), matching spec.md §8 invariant 2's "last
// successful send" wording.
func (b *RequestBuilder) Commit(req *Request) {
	for name, shape := range req.Lists {
		b.lastLists[name] = shape.Clone()
	}
	for id, shape := range req.RoomSubscriptions {
		b.lastRoomSubs[id] = shape
	}
	for _, id := range req.UnsubscribeRooms {
		delete(b.lastRoomSubs, id)
		delete(b.lastSubscribed, id)
	}
	for id := range req.RoomSubscriptions {
		b.lastSubscribed[id] = struct{}{}
	}
}

func listUnchanged(a, b ListShape) bool {
	if !a.Ranges.Equal(b.Ranges) {
		return false
	}
	return sameShapeIgnoringRanges(a, b)
}
