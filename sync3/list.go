// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package sync3

import "sync"

// ListState is the per-list, server-reported index->room-id map
// (spec.md §3 ListState). Unknown indices are simply absent from Rooms.
type ListState struct {
	JoinedCount int64
	Rooms       map[int]string
}

func newListState() *ListState {
	return &ListState{Rooms: make(map[int]string)}
}

func (ls *ListState) snapshot() map[int]string {
	out := make(map[int]string, len(ls.Rooms))
	for k, v := range ls.Rooms {
		out[k] = v
	}
	return out
}

// ListModel owns ListShape and ListState keyed by list name, per spec.md
// §4.4. It is safe for concurrent use: mutation methods are called both
// from application goroutines (setList, setListRanges) and from the
// controller's single loop goroutine while applying a response.
type ListModel struct {
	mu     sync.Mutex
	shapes map[string]ListShape
	states map[string]*ListState
	order  []string // insertion order, used for legacy-shape index translation
}

func NewListModel() *ListModel {
	return &ListModel{
		shapes: make(map[string]ListShape),
		states: make(map[string]*ListState),
	}
}

// SetList defines or replaces a list's shape. Replacing an existing list
// preserves its accumulated ListState; the server will re-SYNC anything
// that's now stale.
func (m *ListModel) SetList(name string, shape ListShape) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.shapes[name]; !exists {
		m.order = append(m.order, name)
		m.states[name] = newListState()
	}
	m.shapes[name] = shape
}

// SetListRanges updates only the ranges of an existing list. Returns
// ErrUnknownList (spec.md §4.4) if the list hasn't been defined.
func (m *ListModel) SetListRanges(name string, ranges SliceRanges) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	shape, ok := m.shapes[name]
	if !ok {
		return newErr(ErrUnknownList, nil)
	}
	shape.Ranges = ranges
	m.shapes[name] = shape
	return nil
}

// GetListParams returns the current shape for a list, and whether it exists.
func (m *ListModel) GetListParams(name string) (ListShape, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shapes[name]
	return s, ok
}

// GetListData returns a snapshot of a list's accumulated index->room-id map.
func (m *ListModel) GetListData(name string) (ListState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[name]
	if !ok {
		return ListState{}, false
	}
	return ListState{JoinedCount: st.JoinedCount, Rooms: st.snapshot()}, true
}

// ListLength returns the list's last known joined_count.
func (m *ListModel) ListLength(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[name]
	if !ok {
		return 0
	}
	return st.JoinedCount
}

// AllShapes returns a copy of every list's current shape, keyed by name.
func (m *ListModel) AllShapes() map[string]ListShape {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]ListShape, len(m.shapes))
	for k, v := range m.shapes {
		out[k] = v
	}
	return out
}

// OrderedNames returns list names in the order they were first defined,
// used to translate the legacy integer-indexed response shape.
func (m *ListModel) OrderedNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.order...)
}

// ApplyOps applies a response list's ops in array order, per spec.md §4.3
// step 4, returning the resulting snapshot for the ListUpdate event. It
// creates the list's state on first sight (a server may reference a list
// name before the application has locally defined it, e.g. if state arrives
// from a shared connection).
func (m *ListModel) ApplyOps(name string, joinedCount int64, ops []ResponseOp) map[int]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[name]
	if !ok {
		st = newListState()
		m.states[name] = st
		if _, known := m.shapes[name]; !known {
			m.order = append(m.order, name)
		}
	}
	st.JoinedCount = joinedCount
	for _, op := range ops {
		applyOp(st, op)
	}
	return st.snapshot()
}

func applyOp(st *ListState, op ResponseOp) {
	switch op.Op {
	case OpSync:
		lo, hi := op.Range[0], op.Range[1]
		for i, roomID := range op.RoomIDs {
			idx := int(lo) + i
			if int64(idx) > hi {
				break
			}
			st.Rooms[idx] = roomID
		}
	case OpInsert:
		if op.Index == nil {
			return
		}
		shiftUpFrom(st, *op.Index)
		st.Rooms[*op.Index] = op.RoomID
	case OpDelete:
		if op.Index == nil {
			return
		}
		shiftDownFrom(st, *op.Index)
	case OpUpdate:
		if op.Index == nil {
			return
		}
		st.Rooms[*op.Index] = op.RoomID
	case OpInvalidate:
		lo, hi := op.Range[0], op.Range[1]
		for i := lo; i <= hi; i++ {
			delete(st.Rooms, int(i))
		}
	}
}

// shiftUpFrom moves every tracked index >= at one position up (towards
// +infinity) to make room for an INSERT at `at`. Indices are processed from
// highest to lowest so no entry is overwritten before it's read.
func shiftUpFrom(st *ListState, at int) {
	var indices []int
	for idx := range st.Rooms {
		if idx >= at {
			indices = append(indices, idx)
		}
	}
	sortDesc(indices)
	for _, idx := range indices {
		st.Rooms[idx+1] = st.Rooms[idx]
	}
	delete(st.Rooms, at)
}

// shiftDownFrom removes the entry at `at` and moves every tracked index
// above it one position down (towards zero), the inverse of shiftUpFrom.
// A DELETE immediately followed by an INSERT at the same index (the "move"
// pattern, spec.md §4.3) therefore leaves list length unchanged: the
// DELETE drops one entry and shifts the later ones down, and the INSERT's
// shiftUpFrom shifts them back up before it writes the new entry.
func shiftDownFrom(st *ListState, at int) {
	delete(st.Rooms, at)
	var indices []int
	for idx := range st.Rooms {
		if idx > at {
			indices = append(indices, idx)
		}
	}
	sortAsc(indices)
	for _, idx := range indices {
		st.Rooms[idx-1] = st.Rooms[idx]
		delete(st.Rooms, idx)
	}
}

func sortAsc(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

func sortDesc(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] < xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}
