// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package sync3

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// SubscriptionManager owns the per-room subscription set, the custom
// subscription name assigned to each room, and the table of named custom
// subscription shapes plus the default shape (spec.md §3 RoomSubscription,
// CustomSubscriptionTable, RoomAssignment; §4.5).
type SubscriptionManager struct {
	mu sync.Mutex

	subscribed map[string]struct{}
	assigned   map[string]string // room id -> custom subscription name
	customs    map[string]RoomSubscription
	defaultSub RoomSubscription

	log *logrus.Entry
}

func NewSubscriptionManager(log *logrus.Entry) *SubscriptionManager {
	return &SubscriptionManager{
		subscribed: make(map[string]struct{}),
		assigned:   make(map[string]string),
		customs:    make(map[string]RoomSubscription),
		log:        log,
	}
}

// ModifyRoomSubscriptions replaces the subscribed-room set wholesale,
// returning the rooms newly added and newly removed for the caller's
// information. The request builder does not use them: it computes
// `room_subscriptions`/`unsubscribe_rooms` against its own last-sent
// snapshot (spec.md §8 invariant 5).
func (m *SubscriptionManager) ModifyRoomSubscriptions(roomIDs map[string]struct{}) (added, removed []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range roomIDs {
		if _, ok := m.subscribed[id]; !ok {
			added = append(added, id)
		}
	}
	for id := range m.subscribed {
		if _, ok := roomIDs[id]; !ok {
			removed = append(removed, id)
			delete(m.assigned, id)
		}
	}
	m.subscribed = roomIDs
	return
}

// GetRoomSubscriptions returns the current set of subscribed room ids.
func (m *SubscriptionManager) GetRoomSubscriptions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.subscribed))
	for id := range m.subscribed {
		out = append(out, id)
	}
	return out
}

// ModifyRoomSubscriptionInfo sets the default subscription shape applied
// to any room without a custom assignment.
func (m *SubscriptionManager) ModifyRoomSubscriptionInfo(shape RoomSubscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultSub = shape
}

// AddCustomSubscription registers a named subscription shape. Re-adding an
// existing name is a no-op that must not overwrite the stored shape
// (spec.md §3 CustomSubscriptionTable, §8 invariant 6); the engine logs
// this rather than erroring, per spec.md §9 Open Questions.
func (m *SubscriptionManager) AddCustomSubscription(name string, shape RoomSubscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.customs[name]; exists {
		if m.log != nil {
			m.log.WithField("custom_subscription", name).Warn(
				"addCustomSubscription: name already registered, ignoring new shape")
		}
		return
	}
	m.customs[name] = shape
}

// UseCustomSubscription assigns a room to a named custom subscription.
// An unregistered name falls back to the default shape (spec.md §4.5).
func (m *SubscriptionManager) UseCustomSubscription(roomID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assigned[roomID] = name
}

// EffectiveShape returns the subscription shape that would currently be
// sent for roomID: its assigned custom shape if one exists and is
// registered, otherwise the default.
func (m *SubscriptionManager) EffectiveShape(roomID string) RoomSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name, ok := m.assigned[roomID]; ok {
		if shape, ok := m.customs[name]; ok {
			return shape
		}
	}
	return m.defaultSub
}

// DefaultShape returns the current default subscription shape.
func (m *SubscriptionManager) DefaultShape() RoomSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaultSub
}
