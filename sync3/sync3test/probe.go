// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package sync3test provides a recording EventSink and functional
// matchers for asserting on the events it captured, grounded on
// gnunicorn-sliding-sync's testutils/m package (func-valued matchers
// over a single response) adapted to this engine's three-event-family
// model instead of one big Response.
package sync3test

import (
	"sync"

	"github.com/matrix-org/sync3-client/sync3"
)

// Probe is an EventSink that records every event it receives, safe for
// concurrent use since the controller's loop goroutine is the only
// writer but tests often read from the main goroutine concurrently.
type Probe struct {
	mu         sync.Mutex
	RoomData   []sync3.RoomDataEvent
	ListUpdate []sync3.ListUpdateEvent
	Lifecycle  []sync3.LifecycleEvent
}

func NewProbe() *Probe {
	return &Probe{}
}

func (p *Probe) OnRoomData(e sync3.RoomDataEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RoomData = append(p.RoomData, e)
}

func (p *Probe) OnListUpdate(e sync3.ListUpdateEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListUpdate = append(p.ListUpdate, e)
}

func (p *Probe) OnLifecycle(e sync3.LifecycleEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Lifecycle = append(p.Lifecycle, e)
}

// Snapshot returns copies of the three event slices recorded so far, safe
// to range over without racing further sink writes.
func (p *Probe) Snapshot() ([]sync3.RoomDataEvent, []sync3.ListUpdateEvent, []sync3.LifecycleEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sync3.RoomDataEvent{}, p.RoomData...),
		append([]sync3.ListUpdateEvent{}, p.ListUpdate...),
		append([]sync3.LifecycleEvent{}, p.Lifecycle...)
}
