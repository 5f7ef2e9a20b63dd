// events.go: Plugin state change notification
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-timecache"
	"github.com/google/uuid"
)

// PluginStateEvent describes one lifecycle transition.
type PluginStateEvent struct {
	ID        string        `json:"id"`
	PluginID  string        `json:"plugin_id"`
	Plugin    *PluginRecord `json:"-"`
	State     PluginState   `json:"state"`
	OldState  PluginState   `json:"old_state"`
	Timestamp time.Time     `json:"timestamp"`
}

func newPluginStateEvent(record *PluginRecord, oldState PluginState) PluginStateEvent {
	return PluginStateEvent{
		ID:        uuid.NewString(),
		PluginID:  record.ID(),
		Plugin:    record,
		State:     record.State(),
		OldState:  oldState,
		Timestamp: timecache.CachedTime(),
	}
}

// PluginStateListener observes lifecycle transitions.
//
// Listeners run synchronously on the goroutine performing the transition,
// in registration order. They must not call mutating PluginManager methods.
type PluginStateListener interface {
	PluginStateChanged(event PluginStateEvent)
}

type funcListener struct {
	fn func(PluginStateEvent)
}

func (l *funcListener) PluginStateChanged(event PluginStateEvent) { l.fn(event) }

// NewStateListener adapts a function. Keep the returned value to remove it later.
func NewStateListener(fn func(PluginStateEvent)) PluginStateListener {
	return &funcListener{fn: fn}
}

// ChannelListener forwards events to a buffered channel. When the buffer is
// full the event is dropped and counted rather than stalling the transition.
type ChannelListener struct {
	events  chan PluginStateEvent
	dropped atomic.Int64
}

// NewChannelListener creates a listener with the given buffer size.
func NewChannelListener(buffer int) *ChannelListener {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelListener{events: make(chan PluginStateEvent, buffer)}
}

func (c *ChannelListener) PluginStateChanged(event PluginStateEvent) {
	select {
	case c.events <- event:
	default:
		c.dropped.Add(1)
	}
}

// Events returns the receive side of the channel.
func (c *ChannelListener) Events() <-chan PluginStateEvent {
	return c.events
}

// Dropped returns how many events did not fit in the buffer.
func (c *ChannelListener) Dropped() int64 {
	return c.dropped.Load()
}

// stateNotifier holds the listener list and delivers events.
type stateNotifier struct {
	logger Logger

	mu        sync.RWMutex
	listeners []PluginStateListener
}

func newStateNotifier(logger Logger, initial []PluginStateListener) *stateNotifier {
	n := &stateNotifier{logger: logger}
	for _, l := range initial {
		n.add(l)
	}
	return n
}

func (n *stateNotifier) add(listener PluginStateListener) {
	if listener == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, listener)
}

// remove drops the first registration of listener and reports whether one was found.
func (n *stateNotifier) remove(listener PluginStateListener) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, l := range n.listeners {
		if sameListener(l, listener) {
			n.listeners = append(n.listeners[:i:i], n.listeners[i+1:]...)
			return true
		}
	}
	return false
}

func (n *stateNotifier) count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

func (n *stateNotifier) notify(event PluginStateEvent) {
	n.mu.RLock()
	listeners := make([]PluginStateListener, len(n.listeners))
	copy(listeners, n.listeners)
	n.mu.RUnlock()

	for i, l := range listeners {
		func() {
			defer withStackRecover(n.logger, "listener", i, "plugin", event.PluginID)()
			l.PluginStateChanged(event)
		}()
	}
}

// sameListener compares listeners without panicking on non-comparable dynamic types.
func sameListener(a, b PluginStateListener) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
