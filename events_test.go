// events_test.go: tests for state change notification
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateNotifier_DeliversInRegistrationOrder(t *testing.T) {
	var calls []string
	first := NewStateListener(func(PluginStateEvent) { calls = append(calls, "first") })
	second := NewStateListener(func(PluginStateEvent) { calls = append(calls, "second") })

	n := newStateNotifier(NewNoOpLogger(), []PluginStateListener{first, nil, second})
	assert.Equal(t, 2, n.count())

	n.notify(PluginStateEvent{PluginID: "a", State: StateStarted})
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestStateNotifier_PanickingListenerDoesNotStopDelivery(t *testing.T) {
	logger := NewTestLogger()
	delivered := 0
	n := newStateNotifier(logger, []PluginStateListener{
		NewStateListener(func(PluginStateEvent) { panic("listener bug") }),
		NewStateListener(func(PluginStateEvent) { delivered++ }),
	})

	assert.NotPanics(t, func() { n.notify(PluginStateEvent{PluginID: "a"}) })
	assert.Equal(t, 1, delivered)
	assert.True(t, logger.HasMessage("ERROR", "Panic recovered in callback"))
}

type mapListener map[string]int

func (m mapListener) PluginStateChanged(e PluginStateEvent) { m[e.PluginID]++ }

func TestStateNotifier_Remove(t *testing.T) {
	kept := &recordingListener{}
	removed := &recordingListener{}
	uncomparable := mapListener{}
	n := newStateNotifier(NewNoOpLogger(), []PluginStateListener{kept, uncomparable, removed})

	assert.True(t, n.remove(removed))
	assert.False(t, n.remove(removed))
	assert.False(t, n.remove(mapListener{}), "non-comparable listeners are never matched")
	assert.Equal(t, 2, n.count())

	n.notify(PluginStateEvent{PluginID: "a"})
	assert.Len(t, kept.all(), 1)
	assert.Empty(t, removed.all())
	assert.Equal(t, 1, uncomparable["a"])
}

func TestChannelListener(t *testing.T) {
	l := NewChannelListener(2)
	for _, id := range []string{"a", "b", "c"} {
		l.PluginStateChanged(PluginStateEvent{PluginID: id})
	}
	assert.Equal(t, int64(1), l.Dropped())

	got := []string{(<-l.Events()).PluginID, (<-l.Events()).PluginID}
	assert.Equal(t, []string{"a", "b"}, got)

	assert.NotNil(t, NewChannelListener(0).Events())
}

func TestChannelListener_WithManager(t *testing.T) {
	events := NewChannelListener(16)
	h := newDefaultTestHost(t, WithStateListener(events))
	h.mustLoad("a", "1.0.0", "")
	_, err := h.manager.StartPlugin("a")
	require.NoError(t, err)

	var states []PluginState
	for len(events.Events()) > 0 {
		states = append(states, (<-events.Events()).State)
	}
	assert.Equal(t, []PluginState{StateResolved, StateStarted}, states)
}

func TestStateEvents_EveryTransitionHasOldAndNewState(t *testing.T) {
	h := newDefaultTestHost(t)
	h.mustLoad("a", "1.0.0", "")
	h.manager.StartPlugin("a")
	h.manager.StopPlugin("a")
	h.manager.DisablePlugin("a")
	h.manager.EnablePlugin("a")
	h.manager.UnloadPlugin("a")

	assert.Equal(t, []string{
		"a:CREATED->RESOLVED",
		"a:RESOLVED->STARTED",
		"a:STARTED->STOPPED",
		"a:STOPPED->DISABLED",
		"a:DISABLED->CREATED",
		"a:CREATED->STOPPED",
		"a:STOPPED->UNLOADED",
	}, h.events.transitions())

	ids := make(map[string]bool)
	for _, e := range h.events.all() {
		assert.False(t, ids[e.ID], "event ids are unique")
		ids[e.ID] = true
		assert.NotEqual(t, e.OldState, e.State)
	}
}

func TestCallGuarded(t *testing.T) {
	assert.NoError(t, callGuarded(func() error { return nil }))
	assert.Equal(t, errBoom, callGuarded(func() error { return errBoom }))

	err := callGuarded(func() error { panic("kaboom") })
	require.Error(t, err)
	assert.True(t, HasErrorCode(err, ErrCodeActivationFault))
	assert.Contains(t, err.Error(), "kaboom")
}
