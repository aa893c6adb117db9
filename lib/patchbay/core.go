// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package patchbay is the process core that front ends talk to.
//
// A [Core] holds exactly one current graph snapshot, replaced
// atomically after every scan, whether the scan came from an
// explicit [Core.Refresh], from a request, or from the reconciliation
// watcher through [Core.Publish]. Readers call [Core.Current] and never
// see a snapshot being built.
//
// Operator intents are command messages ([ConnectRequest],
// [StereoPairRequest], [ApplyProfileRequest] and the rest) passed to
// [Core.Submit]. [Core.Serve] consumes them one at a time and is the
// only goroutine that drives the connection controller for
// interactive work, so a front end never blocks its own event loop on
// an external tool and never races another interactive change.
package patchbay

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/rdx-project/patchbay/lib/jack"
	"github.com/rdx-project/patchbay/lib/patch"
	"github.com/rdx-project/patchbay/lib/profile"
	"github.com/rdx-project/patchbay/lib/protect"
	"github.com/rdx-project/patchbay/lib/roles"
)

// ErrStopped is returned by Submit once Serve has returned.
var ErrStopped = errors.New("patchbay: core stopped")

// DefaultQueueSize bounds the number of requests waiting for Serve.
const DefaultQueueSize = 16

// Config holds a Core's collaborators. All but QueueSize are
// required.
type Config struct {
	Controller *patch.Controller
	Protection *protect.Store
	Profiles   *profile.Store
	Matchers   roles.Matchers
	Logger     *slog.Logger

	QueueSize int
}

// Core owns the current snapshot and the request queue.
type Core struct {
	controller *patch.Controller
	protection *protect.Store
	profiles   *profile.Store
	matchers   roles.Matchers
	logger     *slog.Logger

	snapshot atomic.Pointer[jack.GraphSnapshot]

	requests chan envelope
	stopped  chan struct{}
}

type envelope struct {
	request Request
	reply   chan reply
}

type reply struct {
	result any
	err    error
}

// New returns a Core. Call Serve before Submit.
func New(config Config) *Core {
	size := config.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Core{
		controller: config.Controller,
		protection: config.Protection,
		profiles:   config.Profiles,
		matchers:   config.Matchers,
		logger:     config.Logger,
		requests:   make(chan envelope, size),
		stopped:    make(chan struct{}),
	}
}

// Current returns the most recent snapshot, or nil before the first
// successful scan.
func (c *Core) Current() *jack.GraphSnapshot {
	return c.snapshot.Load()
}

// Publish installs snapshot as current unless a newer one is already
// installed. The watcher passes its tick snapshots here.
func (c *Core) Publish(snapshot *jack.GraphSnapshot) {
	if snapshot == nil {
		return
	}
	for {
		current := c.snapshot.Load()
		if current != nil && current.TakenAt.After(snapshot.TakenAt) {
			return
		}
		if c.snapshot.CompareAndSwap(current, snapshot) {
			return
		}
	}
}

// Refresh scans the graph and installs the result. On failure the
// previous snapshot stays current.
func (c *Core) Refresh(ctx context.Context) (*jack.GraphSnapshot, error) {
	snapshot, err := c.controller.Scan(ctx)
	if err != nil {
		return nil, err
	}
	c.Publish(snapshot)
	return snapshot, nil
}

// Submit queues request and waits for Serve to execute it. The result
// type depends on the request; see each request's documentation.
// Cancelling ctx abandons the wait but not a request Serve has already
// taken.
func (c *Core) Submit(ctx context.Context, request Request) (any, error) {
	e := envelope{request: request, reply: make(chan reply, 1)}
	select {
	case c.requests <- e:
	case <-c.stopped:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-e.reply:
		return r.result, r.err
	case <-c.stopped:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Serve executes submitted requests in order until ctx is cancelled.
// After each request the snapshot is refreshed so Current reflects the
// change. Serve must be called at most once.
func (c *Core) Serve(ctx context.Context) {
	defer close(c.stopped)
	for {
		select {
		case e := <-c.requests:
			result, err := e.request.execute(ctx, c)
			if err != nil {
				c.logger.Info("request failed", "request", e.request.Name(), "error", err)
			} else {
				c.logger.Debug("request completed", "request", e.request.Name())
			}
			if _, refreshErr := c.Refresh(ctx); refreshErr != nil {
				c.logger.Debug("snapshot refresh after request failed", "error", refreshErr)
			}
			e.reply <- reply{result: result, err: err}
		case <-ctx.Done():
			return
		}
	}
}

// Stopped is closed when Serve returns.
func (c *Core) Stopped() <-chan struct{} { return c.stopped }
