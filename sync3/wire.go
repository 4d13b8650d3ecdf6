// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package sync3

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Op names understood by the response applier. These are the atomic edits
// a server may make to a list's index-to-room-id map (spec.md §3 GLOSSARY).
const (
	OpSync       = "SYNC"
	OpInsert     = "INSERT"
	OpDelete     = "DELETE"
	OpUpdate     = "UPDATE"
	OpInvalidate = "INVALIDATE"
)

// Sort orders a list understands, mirrored from the server's vocabulary.
var (
	SortByName              = "by_name"
	SortByRecency           = "by_recency"
	SortByNotificationCount = "by_notification_count"
)

// RequestFilters narrows down which rooms a list considers.
type RequestFilters struct {
	Spaces       []string `json:"spaces,omitempty"`
	IsDM         *bool    `json:"is_dm,omitempty"`
	IsEncrypted  *bool    `json:"is_encrypted,omitempty"`
	IsInvite     *bool    `json:"is_invite,omitempty"`
	RoomTypes    []string `json:"room_types,omitempty"`
	NotRoomTypes []string `json:"not_room_types,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// RoomSubscription is the shape the server uses to decide what to return
// for a single room, whether via an explicit subscription or as part of a
// list (spec.md §3 RoomSubscription / §6 wire `room_subscriptions`).
type RoomSubscription struct {
	TimelineLimit int64       `json:"timeline_limit,omitempty"`
	RequiredState [][2]string `json:"required_state,omitempty"`
}

// Equal reports whether two subscriptions would produce an identical wire
// payload. Used by the sticky-diff in the request builder.
func (rs RoomSubscription) Equal(other RoomSubscription) bool {
	if rs.TimelineLimit != other.TimelineLimit {
		return false
	}
	if len(rs.RequiredState) != len(other.RequiredState) {
		return false
	}
	for i := range rs.RequiredState {
		if rs.RequiredState[i] != other.RequiredState[i] {
			return false
		}
	}
	return true
}

// ListShape is the sticky, server-visible definition of a named list
// (spec.md §3 ListShape). Ranges are the only field the application is
// expected to churn frequently; the rest are set once and rarely touched.
type ListShape struct {
	Ranges          SliceRanges     `json:"ranges"`
	Sort            []string        `json:"sort,omitempty"`
	Filters         *RequestFilters `json:"filters,omitempty"`
	TimelineLimit   int64           `json:"timeline_limit,omitempty"`
	RequiredState   [][2]string     `json:"required_state,omitempty"`
	SlowGetAllRooms *bool           `json:"slow_get_all_rooms,omitempty"`
}

// Clone returns a deep-enough copy for safe storage as a "last sent"
// snapshot, so later application mutation of the caller's ListShape doesn't
// retroactively change what we think we already sent.
func (ls ListShape) Clone() ListShape {
	out := ls
	out.Ranges = append(SliceRanges{}, ls.Ranges...)
	if ls.Sort != nil {
		out.Sort = append([]string{}, ls.Sort...)
	}
	if ls.RequiredState != nil {
		out.RequiredState = append([][2]string{}, ls.RequiredState...)
	}
	if ls.Filters != nil {
		f := *ls.Filters
		out.Filters = &f
	}
	if ls.SlowGetAllRooms != nil {
		b := *ls.SlowGetAllRooms
		out.SlowGetAllRooms = &b
	}
	return out
}

// sameShapeIgnoringRanges reports whether two list shapes are identical
// except possibly for Ranges. The builder's listUnchanged pairs it with a
// ranges comparison; any difference at all resends the full shape
// (spec.md §4.2).
func sameShapeIgnoringRanges(a, b ListShape) bool {
	ac, bc := a, b
	ac.Ranges, bc.Ranges = nil, nil
	aj, _ := json.Marshal(ac)
	bj, _ := json.Marshal(bc)
	return string(aj) == string(bj)
}

// Request is the wire shape of the outbound POST body (spec.md §6).
type Request struct {
	TxnID             string                     `json:"txn_id"`
	ConnID            string                     `json:"conn_id,omitempty"`
	Lists             map[string]ListShape       `json:"lists,omitempty"`
	RoomSubscriptions map[string]RoomSubscription `json:"room_subscriptions,omitempty"`
	UnsubscribeRooms  []string                   `json:"unsubscribe_rooms,omitempty"`
	Extensions        map[string]json.RawMessage `json:"extensions,omitempty"`
}

// ResponseOp is a single sync op applied to a list's index map
// (spec.md §4.3).
type ResponseOp struct {
	Op      string   `json:"op"`
	Range   [2]int64 `json:"range,omitempty"`
	Index   *int     `json:"index,omitempty"`
	RoomIDs []string `json:"room_ids,omitempty"`
	RoomID  string   `json:"room_id,omitempty"`
}

// ResponseList is one list's entry in the response body.
type ResponseList struct {
	Count int64        `json:"count"`
	Ops   []ResponseOp `json:"ops,omitempty"`
}

// RoomData is one room's entry in the response body `rooms` map.
type RoomData struct {
	Name              string            `json:"name,omitempty"`
	RequiredState     []json.RawMessage `json:"required_state"`
	Timeline          []json.RawMessage `json:"timeline"`
	Initial           bool              `json:"initial,omitempty"`
	InviteState       []json.RawMessage `json:"invite_state"`
	NotificationCount int               `json:"notification_count,omitempty"`
	HighlightCount    int               `json:"highlight_count,omitempty"`
}

// defaultEmptyContainers fills in spec.md §4.3's defaulting rule: a room
// data entry missing required_state/timeline/invite_state must still
// present an (empty, non-nil) container to consumers.
func (r RoomData) defaultEmptyContainers() RoomData {
	if r.RequiredState == nil {
		r.RequiredState = []json.RawMessage{}
	}
	if r.Timeline == nil {
		r.Timeline = []json.RawMessage{}
	}
	if r.InviteState == nil {
		r.InviteState = []json.RawMessage{}
	}
	return r
}

// RoomDataEntry pairs a room id with its data, preserving the position it
// appeared in within the response's `rooms` JSON object.
type RoomDataEntry struct {
	RoomID string
	Data   RoomData
}

// OrderedRooms preserves the server's insertion order for the `rooms`
// object, which encoding/json's ordinary map decoding would discard.
// spec.md §4.3 step 3 requires RoomData events be emitted "iteration
// order = insertion order as received", so ordinary map iteration (which
// Go deliberately randomises) is not sufficient here.
type OrderedRooms []RoomDataEntry

func (m *OrderedRooms) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = nil
		return nil
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("sync3: expected object for rooms, got %v", tok)
	}
	var out OrderedRooms
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var rd RoomData
		if err := dec.Decode(&rd); err != nil {
			return err
		}
		out = append(out, RoomDataEntry{RoomID: key, Data: rd})
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return err
	}
	*m = out
	return nil
}

func (m OrderedRooms) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(e.RoomID)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Response is the wire shape of the inbound response body. It supports
// both the current `lists: {name: {count, ops}}` shape and the legacy
// `counts` + top-level `ops` shape (spec.md §9 Open Question), detected by
// field presence in rawResponse.
type Response struct {
	Pos        string                     `json:"pos"`
	TxnID      string                     `json:"txn_id,omitempty"`
	Lists      map[string]ResponseList    `json:"lists,omitempty"`
	Rooms      OrderedRooms               `json:"rooms,omitempty"`
	Extensions map[string]json.RawMessage `json:"extensions,omitempty"`
}

// legacyOp is the pre-MSC3575-rename op shape: one flat array of ops each
// naming its target list by index rather than nesting ops under a list name.
type legacyOp struct {
	Op      string   `json:"op"`
	List    int      `json:"list"`
	Range   [2]int64 `json:"range,omitempty"`
	Index   *int     `json:"index,omitempty"`
	Rooms   []string `json:"rooms,omitempty"`
	Room    string   `json:"room,omitempty"`
}

// rawResponse is used purely to sniff which wire shape we were sent.
type rawResponse struct {
	Pos        string                     `json:"pos"`
	TxnID      string                     `json:"txn_id,omitempty"`
	Lists      map[string]ResponseList    `json:"lists,omitempty"`
	Counts     []int64                    `json:"counts,omitempty"`
	Ops        []legacyOp                 `json:"ops,omitempty"`
	Rooms      OrderedRooms               `json:"rooms,omitempty"`
	Extensions map[string]json.RawMessage `json:"extensions,omitempty"`
}

// DecodeResponse parses a response body, translating the legacy
// `counts`+`ops` shape into the current `lists` shape on read so the rest
// of the engine only ever deals with one representation. listNames maps a
// list's position to its name, required to translate the legacy shape's
// integer `list` index; the controller passes ListModel.OrderedNames, the
// order in which lists were first defined.
func DecodeResponse(body []byte, listNames []string) (*Response, error) {
	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	resp := &Response{
		Pos:        raw.Pos,
		TxnID:      raw.TxnID,
		Rooms:      raw.Rooms,
		Extensions: raw.Extensions,
	}
	if raw.Lists != nil {
		resp.Lists = raw.Lists
		return resp, nil
	}
	// legacy shape: counts is positional, ops carry an explicit list index.
	resp.Lists = make(map[string]ResponseList, len(raw.Counts))
	for i, count := range raw.Counts {
		name := indexedName(listNames, i)
		resp.Lists[name] = ResponseList{Count: count}
	}
	for _, op := range raw.Ops {
		name := indexedName(listNames, op.List)
		rl := resp.Lists[name]
		rl.Ops = append(rl.Ops, ResponseOp{
			Op:      op.Op,
			Range:   op.Range,
			Index:   op.Index,
			RoomIDs: op.Rooms,
			RoomID:  op.Room,
		})
		resp.Lists[name] = rl
	}
	return resp, nil
}

func indexedName(names []string, i int) string {
	if i >= 0 && i < len(names) {
		return names[i]
	}
	return ""
}
