// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package sync3

import "sort"

// SliceRanges is an ordered set of inclusive [lo, hi] index ranges, e.g the
// ranges a client asks a sliding sync server to track for a single list.
// The zero value is an empty set of ranges.
type SliceRanges [][2]int64

// Valid checks the basic invariants from spec.md §3: lo <= hi for every
// range. It does not check the ranges against a list length; callers with
// access to the list length should additionally bound-check hi.
func (s SliceRanges) Valid() bool {
	for _, r := range s {
		if r[0] > r[1] {
			return false
		}
	}
	return true
}

// Inside returns the range containing idx, and whether one was found.
func (s SliceRanges) Inside(idx int64) ([2]int64, bool) {
	for _, r := range s {
		if idx >= r[0] && idx <= r[1] {
			return r, true
		}
	}
	return [2]int64{}, false
}

// Equal reports whether two range sets cover exactly the same ranges,
// ignoring ordering.
func (s SliceRanges) Equal(other SliceRanges) bool {
	if len(s) != len(other) {
		return false
	}
	a := append(SliceRanges{}, s...)
	b := append(SliceRanges{}, other...)
	less := func(x SliceRanges) func(i, j int) bool {
		return func(i, j int) bool {
			return x[i][0] < x[j][0] || (x[i][0] == x[j][0] && x[i][1] < x[j][1])
		}
	}
	sort.Slice(a, less(a))
	sort.Slice(b, less(b))
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
