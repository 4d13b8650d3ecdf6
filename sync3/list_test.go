// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package sync3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestListModelSyncThenMove reproduces spec.md scenario S3: a SYNC
// populating a range, followed by a DELETE+INSERT "move" pair that must
// leave the list length unchanged (spec.md §8 invariant 4).
func TestListModelSyncThenMove(t *testing.T) {
	m := NewListModel()
	m.SetList("a", ListShape{Ranges: SliceRanges{{0, 2}}, Sort: []string{SortByName}})

	idx2 := 2
	rooms := m.ApplyOps("a", 500, []ResponseOp{
		{Op: OpSync, Range: [2]int64{0, 2}, RoomIDs: []string{"!a", "!b", "!c"}},
	})
	assert.Equal(t, map[int]string{0: "!a", 1: "!b", 2: "!c"}, rooms)

	idx0 := 0
	rooms = m.ApplyOps("a", 500, []ResponseOp{
		{Op: OpDelete, Index: &idx2},
		{Op: OpInsert, Index: &idx0, RoomID: "!c"},
	})
	assert.Equal(t, map[int]string{0: "!c", 1: "!a", 2: "!b"}, rooms)
	assert.Equal(t, int64(500), m.ListLength("a"))
}

func TestListModelSetListRangesUnknownList(t *testing.T) {
	m := NewListModel()
	err := m.SetListRanges("nope", SliceRanges{{0, 1}})
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrUnknownList))
}

func TestListModelInvalidate(t *testing.T) {
	m := NewListModel()
	m.SetList("a", ListShape{Ranges: SliceRanges{{0, 4}}})
	m.ApplyOps("a", 10, []ResponseOp{
		{Op: OpSync, Range: [2]int64{0, 4}, RoomIDs: []string{"!a", "!b", "!c", "!d", "!e"}},
	})
	rooms := m.ApplyOps("a", 10, []ResponseOp{
		{Op: OpInvalidate, Range: [2]int64{1, 3}},
	})
	assert.Equal(t, map[int]string{0: "!a", 4: "!e"}, rooms)
}

func TestListModelUpdate(t *testing.T) {
	m := NewListModel()
	m.SetList("a", ListShape{Ranges: SliceRanges{{0, 1}}})
	m.ApplyOps("a", 2, []ResponseOp{
		{Op: OpSync, Range: [2]int64{0, 1}, RoomIDs: []string{"!a", "!b"}},
	})
	idx1 := 1
	rooms := m.ApplyOps("a", 2, []ResponseOp{
		{Op: OpUpdate, Index: &idx1, RoomID: "!z"},
	})
	assert.Equal(t, map[int]string{0: "!a", 1: "!z"}, rooms)
}
