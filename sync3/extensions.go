// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package sync3

import (
	"context"
	"encoding/json"
	"sync"
)

// ExtensionPhase controls whether an extension's response callback fires
// before or after the per-room-data and per-list events derived from the
// same response body (spec.md §3 Extension, §4.1).
type ExtensionPhase int

const (
	PhasePre ExtensionPhase = iota
	PhasePost
)

// Extension is the contract every sliding-sync add-on satisfies
// (spec.md §4.6). onRequest/onResponse are named per spec.md; Go
// convention exports them as Name/OnRequest/OnResponse/Phase.
type Extension interface {
	// Name returns a stable identifier, used as the `extensions` map key.
	Name() string
	// OnRequest returns the payload to place under extensions[Name()], or
	// (nil, false) to omit the field entirely. initial is true on the
	// first request ever, or the first after a session-expiry reset.
	OnRequest(ctx context.Context, initial bool) (payload interface{}, include bool)
	// OnResponse consumes this extension's field of the response body, if
	// present.
	OnResponse(ctx context.Context, data json.RawMessage) error
	// Phase reports whether this extension runs pre- or post-process.
	Phase() ExtensionPhase
}

// ExtensionRegistry holds the set of registered extensions
// (spec.md §3 Extension, §4.6).
type ExtensionRegistry struct {
	mu   sync.Mutex
	byName map[string]Extension
	order  []string // registration order, preserved for deterministic iteration
}

func NewExtensionRegistry() *ExtensionRegistry {
	return &ExtensionRegistry{byName: make(map[string]Extension)}
}

// Register adds an extension. Re-registering an existing name fails with
// ErrDuplicateExtension (spec.md §4.6, §7) rather than silently replacing
// it, unlike AddCustomSubscription's deliberately forgiving behavior.
func (r *ExtensionRegistry) Register(ext Extension) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := ext.Name()
	if _, exists := r.byName[name]; exists {
		return newErr(ErrDuplicateExtension, nil)
	}
	r.byName[name] = ext
	r.order = append(r.order, name)
	return nil
}

// ByPhase returns the registered extensions of the given phase, in
// registration order, for serial pre/post processing.
func (r *ExtensionRegistry) ByPhase(phase ExtensionPhase) []Extension {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Extension
	for _, name := range r.order {
		ext := r.byName[name]
		if ext.Phase() == phase {
			out = append(out, ext)
		}
	}
	return out
}

// All returns every registered extension, in registration order.
func (r *ExtensionRegistry) All() []Extension {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Extension, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}
