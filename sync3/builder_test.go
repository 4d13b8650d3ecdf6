// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package sync3

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder() (*RequestBuilder, *ListModel, *SubscriptionManager, *ExtensionRegistry) {
	lists := NewListModel()
	subs := NewSubscriptionManager(logrus.NewEntry(logrus.New()))
	exts := NewExtensionRegistry()
	return NewRequestBuilder(lists, subs, exts), lists, subs, exts
}

// TestBuilderStickyOmitsUnchanged covers spec.md invariant 2: once a list
// shape has been committed, an unchanged rebuild omits it entirely.
func TestBuilderStickyOmitsUnchanged(t *testing.T) {
	b, lists, _, _ := newTestBuilder()
	lists.SetList("a", ListShape{Ranges: SliceRanges{{0, 2}}})

	req1 := b.Build(context.Background(), true)
	require.Contains(t, req1.Lists, "a")
	b.Commit(req1)

	req2 := b.Build(context.Background(), false)
	assert.NotContains(t, req2.Lists, "a")
}

// TestBuilderResendsOnRangesChange covers S4: only ranges change, and the
// conservative builder resends the full shape for that list.
func TestBuilderResendsOnRangesChange(t *testing.T) {
	b, lists, _, _ := newTestBuilder()
	lists.SetList("a", ListShape{Ranges: SliceRanges{{0, 2}}, Sort: []string{SortByName}})
	b.Commit(b.Build(context.Background(), true))

	require.NoError(t, lists.SetListRanges("a", SliceRanges{{0, 2}, {3, 5}}))
	req := b.Build(context.Background(), false)
	require.Contains(t, req.Lists, "a")
	assert.Equal(t, SliceRanges{{0, 2}, {3, 5}}, req.Lists["a"].Ranges)
	assert.Equal(t, []string{SortByName}, req.Lists["a"].Sort)
}

// TestBuilderUnsubscribe covers S2 and invariant 5.
func TestBuilderUnsubscribe(t *testing.T) {
	b, _, subs, _ := newTestBuilder()
	subs.ModifyRoomSubscriptions(map[string]struct{}{"!foo:bar": {}})
	req1 := b.Build(context.Background(), true)
	require.Contains(t, req1.RoomSubscriptions, "!foo:bar")
	b.Commit(req1)

	subs.ModifyRoomSubscriptions(map[string]struct{}{})
	req2 := b.Build(context.Background(), false)
	assert.Equal(t, []string{"!foo:bar"}, req2.UnsubscribeRooms)
	assert.Nil(t, req2.RoomSubscriptions)
}

// TestBuilderCustomSubscriptionChangeNoUnsubscribe covers S5's closing
// assertion: reassigning a still-subscribed room to a different custom
// shape must not appear in unsubscribe_rooms.
func TestBuilderCustomSubscriptionChangeNoUnsubscribe(t *testing.T) {
	b, _, subs, _ := newTestBuilder()
	shape1 := RoomSubscription{TimelineLimit: 1}
	shape2 := RoomSubscription{TimelineLimit: 5}
	subs.AddCustomSubscription("sub1", shape1)
	subs.AddCustomSubscription("sub1", shape2) // ignored, invariant 6
	subs.UseCustomSubscription("!b", "sub1")
	subs.ModifyRoomSubscriptions(map[string]struct{}{"!a": {}, "!b": {}})

	req1 := b.Build(context.Background(), true)
	assert.Equal(t, RoomSubscription{}, req1.RoomSubscriptions["!a"])
	assert.Equal(t, shape1, req1.RoomSubscriptions["!b"])
	b.Commit(req1)

	subs.AddCustomSubscription("sub2", shape2)
	subs.UseCustomSubscription("!b", "sub2")
	req2 := b.Build(context.Background(), false)
	assert.Equal(t, shape2, req2.RoomSubscriptions["!b"])
	assert.Empty(t, req2.UnsubscribeRooms)
}

// TestBuilderResetResendsEverything covers S6/invariant 3: after Reset,
// the next Build resends every sticky parameter with initial=true.
func TestBuilderResetResendsEverything(t *testing.T) {
	b, lists, subs, exts := newTestBuilder()
	lists.SetList("a", ListShape{Ranges: SliceRanges{{0, 2}}})
	subs.ModifyRoomSubscriptions(map[string]struct{}{"!x": {}})
	called := false
	exts.Register(&fakeExtension{
		name: "e1",
		onRequest: func(ctx context.Context, initial bool) (interface{}, bool) {
			called = initial
			return map[string]bool{"enabled": true}, true
		},
	})
	b.Commit(b.Build(context.Background(), true))

	b.Reset()
	req := b.Build(context.Background(), true)
	require.Contains(t, req.Lists, "a")
	require.Contains(t, req.RoomSubscriptions, "!x")
	require.Contains(t, req.Extensions, "e1")
	assert.True(t, called)
}

type fakeExtension struct {
	name      string
	onRequest func(ctx context.Context, initial bool) (interface{}, bool)
	onResp    func(ctx context.Context, data json.RawMessage) error
	phase     ExtensionPhase
}

func (f *fakeExtension) Name() string { return f.name }
func (f *fakeExtension) Phase() ExtensionPhase { return f.phase }
func (f *fakeExtension) OnRequest(ctx context.Context, initial bool) (interface{}, bool) {
	return f.onRequest(ctx, initial)
}
func (f *fakeExtension) OnResponse(ctx context.Context, data json.RawMessage) error {
	if f.onResp == nil {
		return nil
	}
	return f.onResp(ctx, data)
}
