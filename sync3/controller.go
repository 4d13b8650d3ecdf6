// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package sync3

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/matrix-org/sync3-client/sync3/transport"
)

// Config carries everything the controller needs to drive the loop,
// per spec.md §6 Configuration surface.
type Config struct {
	ProxyBaseURL   string
	TokenSource    transport.AccessTokenProvider
	Timeout        time.Duration
	ConnID         string // optional, additive; see SPEC_FULL.md §6
	HTTPTransport  transport.Transport
	Log            *logrus.Entry
	Metrics        *Metrics // optional; nil disables metrics entirely
}

// Controller is the sync-loop heart (spec.md §4.1): it sequences
// request/response cycles, applies application mutations without
// racing the in-flight request, and publishes events to an EventSink.
type Controller struct {
	cfg  Config
	lists *ListModel
	subs  *SubscriptionManager
	exts  *ExtensionRegistry

	builder *RequestBuilder
	applier *Applier
	sink    EventSink
	log     *logrus.Entry

	mu          sync.Mutex
	pos         string
	running     bool
	stopCh      chan struct{}
	doneCh      chan struct{}
	cancelFn    context.CancelFunc
	resendGroup singleflight.Group
}

// NewController wires the request builder and response applier from the
// given models/registry and returns a controller ready for start().
func NewController(cfg Config, lists *ListModel, subs *SubscriptionManager, exts *ExtensionRegistry, sink EventSink) *Controller {
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	builder := NewRequestBuilder(lists, subs, exts)
	builder.ConnID = cfg.ConnID
	return &Controller{
		cfg:     cfg,
		lists:   lists,
		subs:    subs,
		exts:    exts,
		builder: builder,
		applier: NewApplier(lists, exts, sink),
		sink:    sink,
		log:     log,
	}
}

// Start transitions Idle -> Running and begins the loop goroutine. A
// second call while already running is a no-op.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.mu.Unlock()
	go c.loop()
}

// Stop transitions to Stopped: cancels any in-flight request and halts
// the loop. ConnectionState is preserved so a later Start() can resume
// (spec.md §4.1). Blocks until the loop goroutine has exited.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	stopCh := c.stopCh
	done := c.doneCh
	cancel := c.cancelFn
	c.mu.Unlock()
	close(stopCh)
	if cancel != nil {
		cancel()
	}
	<-done
}

// Resend interrupts the current in-flight request (if any), discarding
// it, so the loop immediately rebuilds and sends again with whatever
// desired state is current. The position token is preserved (spec.md
// §4.1/§5). A Resend while stopped is a no-op. Concurrent callers are
// coalesced onto a single interrupt via singleflight, since they all
// want the same outcome (the in-flight request dies now) and firing one
// cancel is exactly as effective as firing ten.
func (c *Controller) Resend() {
	_, _, _ = c.resendGroup.Do("resend", func() (interface{}, error) {
		c.mu.Lock()
		if !c.running {
			c.mu.Unlock()
			return nil, nil
		}
		cancel := c.cancelFn
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return nil, nil
	})
}

// SetList defines or replaces a list's shape. Picked up by the loop's
// next request, in flight or not (spec.md §4.1 Running/Quiescent).
func (c *Controller) SetList(name string, shape ListShape) {
	c.lists.SetList(name, shape)
}

// SetListRanges updates a list's ranges only. Synchronous ErrUnknownList
// on an undefined list name (spec.md §4.4, §7).
func (c *Controller) SetListRanges(name string, ranges SliceRanges) error {
	return c.lists.SetListRanges(name, ranges)
}

// ModifyRoomSubscriptions replaces the subscribed room set.
func (c *Controller) ModifyRoomSubscriptions(roomIDs map[string]struct{}) (added, removed []string) {
	return c.subs.ModifyRoomSubscriptions(roomIDs)
}

// ModifyRoomSubscriptionInfo changes the default subscription shape.
func (c *Controller) ModifyRoomSubscriptionInfo(shape RoomSubscription) {
	c.subs.ModifyRoomSubscriptionInfo(shape)
}

// UseCustomSubscription assigns a room to a named custom subscription.
func (c *Controller) UseCustomSubscription(roomID, name string) {
	c.subs.UseCustomSubscription(roomID, name)
}

// AddCustomSubscription registers a named subscription shape. A no-op if
// the name is already registered (spec.md §4.5, invariant 6).
func (c *Controller) AddCustomSubscription(name string, shape RoomSubscription) {
	c.subs.AddCustomSubscription(name, shape)
}

// RegisterExtension adds an extension to the registry. Synchronous
// ErrDuplicateExtension on a repeated name (spec.md §4.6, §7).
func (c *Controller) RegisterExtension(ext Extension) error {
	return c.exts.Register(ext)
}

func (c *Controller) setCancel(cancel context.CancelFunc) {
	c.mu.Lock()
	c.cancelFn = cancel
	c.mu.Unlock()
}

func (c *Controller) clearCancel() {
	c.mu.Lock()
	c.cancelFn = nil
	c.mu.Unlock()
}

func (c *Controller) stopRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// loop is the single goroutine driving every request/response cycle. It
// is single-threaded from the engine's own point of view: mutation
// methods above only ever touch the list/subscription/extension models
// (which have their own locks), never pos/cancelFn directly, so the
// next iteration of this loop always observes the latest desired state
// without any separate wake signal (spec.md §5).
func (c *Controller) loop() {
	defer close(c.doneCh)

	// A Start() after Stop() keeps pos and the sticky snapshots, so only a
	// loop with no position to resume from begins with an initial request.
	initial := c.pos == ""
	boff := backoff.NewExponentialBackOff()
	boff.MaxElapsedTime = 0 // the loop itself is the retry driver, never give up
	boff.MaxInterval = 30 * time.Second

	for {
		if c.stopRequested() {
			return
		}

		req := c.builder.Build(context.Background(), initial)
		// The server holds the request open (long-poll) until something
		// changes or its own timeout elapses, so the client always has a
		// reason to send: an unchanged body simply continues the stream
		// and picks up anything the server has queued since last time.

		data, err := json.Marshal(req)
		if err != nil {
			c.log.WithError(err).Error("sync3: failed to marshal request body")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
		c.setCancel(cancel)
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.InFlightRequests.Inc()
		}
		start := time.Now()
		respBody, status, sendErr := c.cfg.HTTPTransport.Send(ctx, data, c.pos)
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.InFlightRequests.Dec()
			c.cfg.Metrics.RequestDuration.Observe(time.Since(start).Seconds())
		}
		cancelled := ctx.Err() == context.Canceled
		cancel()
		c.clearCancel()

		if cancelled {
			// resend() or Stop() interrupted this send. A partial response
			// is discarded and ConnectionState is untouched (spec.md §5).
			if c.stopRequested() {
				return
			}
			continue
		}

		if sendErr != nil {
			c.sink.OnLifecycle(LifecycleEvent{State: RequestFinished, Err: newErr(ErrTransport, sendErr)})
			if !c.sleepBackoff(boff) {
				return
			}
			continue
		}

		if status == 400 && looksLikeSessionExpired(respBody) {
			if c.cfg.Metrics != nil {
				c.cfg.Metrics.SessionExpiries.Inc()
			}
			c.sink.OnLifecycle(LifecycleEvent{State: RequestFinished, Err: newErr(ErrSessionExpired, nil)})
			c.pos = ""
			c.builder.Reset()
			initial = true
			boff.Reset()
			continue
		}
		if status < 200 || status >= 300 {
			c.sink.OnLifecycle(LifecycleEvent{State: RequestFinished, Err: &Error{Kind: ErrHTTPStatus, HTTPStatus: status}})
			if !c.sleepBackoff(boff) {
				return
			}
			continue
		}

		resp, decodeErr := DecodeResponse(respBody, c.lists.OrderedNames())
		if decodeErr != nil {
			c.sink.OnLifecycle(LifecycleEvent{State: RequestFinished, Err: newErr(ErrTransport, decodeErr)})
			if !c.sleepBackoff(boff) {
				return
			}
			continue
		}

		c.builder.Commit(req)
		c.pos = resp.Pos
		c.sink.OnLifecycle(LifecycleEvent{State: RequestFinished, Response: resp})

		if applyErr := c.applier.Apply(context.Background(), resp); applyErr != nil {
			c.log.WithError(applyErr).Warn("sync3: extension OnResponse returned an error")
		}
		c.sink.OnLifecycle(LifecycleEvent{State: Complete, Response: resp})

		initial = false
		boff.Reset()
	}
}

// sleepBackoff waits out the next backoff interval, returning false if
// Stop() fired during the wait.
func (c *Controller) sleepBackoff(boff *backoff.ExponentialBackOff) bool {
	d := boff.NextBackOff()
	if d == backoff.Stop {
		d = boff.MaxInterval
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.stopCh:
		return false
	}
}

// looksLikeSessionExpired matches the teacher's MatrixErrorResponse habit
// of treating the body as the source of truth for sub-classifying a 400:
// spec.md §7 defines SessionExpired as "HTTP 400 with body indicating
// expired session".
func looksLikeSessionExpired(body []byte) bool {
	return bytes.Contains(bytes.ToLower(body), []byte("expired"))
}
