// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package sync3test

import (
	"fmt"
	"reflect"

	"github.com/matrix-org/sync3-client/sync3"
)

// RoomDataMatcher checks a single RoomDataEvent.
type RoomDataMatcher func(e sync3.RoomDataEvent) error

// ListUpdateMatcher checks a single ListUpdateEvent.
type ListUpdateMatcher func(e sync3.ListUpdateEvent) error

func MatchRoomID(roomID string) RoomDataMatcher {
	return func(e sync3.RoomDataEvent) error {
		if e.RoomID != roomID {
			return fmt.Errorf("MatchRoomID: got %s want %s", e.RoomID, roomID)
		}
		return nil
	}
}

func MatchRoomName(name string) RoomDataMatcher {
	return func(e sync3.RoomDataEvent) error {
		if e.Data.Name != name {
			return fmt.Errorf("MatchRoomName: got %q want %q", e.Data.Name, name)
		}
		return nil
	}
}

func MatchRoomTimelineLen(n int) RoomDataMatcher {
	return func(e sync3.RoomDataEvent) error {
		if len(e.Data.Timeline) != n {
			return fmt.Errorf("MatchRoomTimelineLen: got %d want %d", len(e.Data.Timeline), n)
		}
		return nil
	}
}

func MatchRoomInitial(initial bool) RoomDataMatcher {
	return func(e sync3.RoomDataEvent) error {
		if e.Data.Initial != initial {
			return fmt.Errorf("MatchRoomInitial: got %v want %v", e.Data.Initial, initial)
		}
		return nil
	}
}

// CheckRoomData applies every matcher to e, returning the first error.
func CheckRoomData(e sync3.RoomDataEvent, matchers ...RoomDataMatcher) error {
	for _, m := range matchers {
		if err := m(e); err != nil {
			return err
		}
	}
	return nil
}

func MatchListName(name string) ListUpdateMatcher {
	return func(e sync3.ListUpdateEvent) error {
		if e.ListName != name {
			return fmt.Errorf("MatchListName: got %s want %s", e.ListName, name)
		}
		return nil
	}
}

func MatchJoinedCount(count int64) ListUpdateMatcher {
	return func(e sync3.ListUpdateEvent) error {
		if e.JoinedCount != count {
			return fmt.Errorf("MatchJoinedCount: got %d want %d", e.JoinedCount, count)
		}
		return nil
	}
}

// MatchRoomsAt asserts the cumulative index->room-id snapshot equals want
// exactly (spec.md §8 invariant 4, scenario S3).
func MatchRoomsAt(want map[int]string) ListUpdateMatcher {
	return func(e sync3.ListUpdateEvent) error {
		if !reflect.DeepEqual(e.Rooms, want) {
			return fmt.Errorf("MatchRoomsAt: got %v want %v", e.Rooms, want)
		}
		return nil
	}
}

// CheckListUpdate applies every matcher to e, returning the first error.
func CheckListUpdate(e sync3.ListUpdateEvent, matchers ...ListUpdateMatcher) error {
	for _, m := range matchers {
		if err := m(e); err != nil {
			return err
		}
	}
	return nil
}

// MatchLifecycleStates asserts the recorded lifecycle events have exactly
// these states, in this order.
func MatchLifecycleStates(got []sync3.LifecycleEvent, want ...sync3.LifecycleState) error {
	if len(got) != len(want) {
		return fmt.Errorf("MatchLifecycleStates: got %d events want %d", len(got), len(want))
	}
	for i := range got {
		if got[i].State != want[i] {
			return fmt.Errorf("MatchLifecycleStates[%d]: got %s want %s", i, got[i].State, want[i])
		}
	}
	return nil
}
