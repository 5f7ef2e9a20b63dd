// audit_listener.go: Audit trail of plugin state transitions
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"time"

	"github.com/agilira/argus"
)

// AuditEventPluginState is the audit event type of a state transition.
const AuditEventPluginState = "plugin_state_change"

// AuditStateListener writes every state transition to an argus audit log.
type AuditStateListener struct {
	audit *argus.AuditLogger
}

// NewAuditStateListener opens the audit log at outputFile.
func NewAuditStateListener(outputFile string) (*AuditStateListener, error) {
	audit, err := argus.NewAuditLogger(argus.AuditConfig{
		Enabled:       true,
		OutputFile:    outputFile,
		MinLevel:      argus.AuditInfo,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
	})
	if err != nil {
		return nil, NewAuditError("failed to open audit log "+outputFile, err)
	}
	return &AuditStateListener{audit: audit}, nil
}

func (a *AuditStateListener) PluginStateChanged(event PluginStateEvent) {
	context := map[string]interface{}{
		"event_id":  event.ID,
		"plugin_id": event.PluginID,
		"old_state": event.OldState.String(),
		"new_state": event.State.String(),
		"timestamp": event.Timestamp,
	}
	if event.Plugin != nil {
		context["version"] = event.Plugin.Version()
		if cause := event.Plugin.FailureCause(); cause != nil && event.State == StateFailed {
			context["failure"] = cause.Error()
		}
	}
	a.audit.LogSecurityEvent(AuditEventPluginState, "Plugin "+event.PluginID+" is now "+event.State.String(), context)
}

// Close flushes and closes the audit log.
func (a *AuditStateListener) Close() error {
	return a.audit.Close()
}
