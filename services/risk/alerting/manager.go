// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
	"github.com/AleutianAI/AleutianRisk/services/risk/observability"
	"github.com/AleutianAI/AleutianRisk/services/risk/storage"
)

// Escalation timers for unacknowledged alerts.
const (
	// WarningEscalateAfter promotes an unacknowledged warning to critical.
	WarningEscalateAfter = 4 * time.Hour

	// CriticalEscalateAfter promotes an unacknowledged critical to emergency.
	CriticalEscalateAfter = 1 * time.Hour

	// DefaultEscalationInterval is how often the escalation sweep runs.
	DefaultEscalationInterval = 1 * time.Minute
)

// Notifier receives alert events for fan-out (websocket hub, etc.).
type Notifier interface {
	Publish(event string, alert *datatypes.Alert)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Publish(string, *datatypes.Alert) {}

// Manager owns the alert lifecycle.
//
// # Description
//
// Evaluates threshold rules on new assessments, deduplicates against
// unresolved alerts, runs the escalation sweep, and enforces that no
// alert resolves without a human acknowledgment.
//
// # Thread Safety
//
// Safe for concurrent use.
type Manager struct {
	store    *storage.Store
	notifier Notifier
	metrics  *observability.RiskMetrics
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	done    chan struct{}
	running bool
}

// NewManager creates an alert manager. A nil notifier disables fan-out;
// a nil metrics disables instrumentation.
func NewManager(store *storage.Store, notifier Notifier, metrics *observability.RiskMetrics, logger *slog.Logger) *Manager {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Manager{
		store:    store,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		interval: DefaultEscalationInterval,
	}
}

// publish fans an event out and keeps the alert metrics in step.
func (m *Manager) publish(event string, alert *datatypes.Alert) {
	m.notifier.Publish(event, alert)
	if m.metrics != nil {
		m.metrics.RecordAlertEvent(string(alert.Level), event)
	}
}

// EvaluateAssessment runs the threshold rules for a fresh assessment
// and persists any new alerts.
//
// # Edge Cases
//
//   - An unresolved alert for the same asset and rule suppresses a
//     duplicate; the rule re-fires only after the prior alert resolves.
func (m *Manager) EvaluateAssessment(ctx context.Context, ra *datatypes.RiskAssessment, prev *datatypes.RiskAssessment) ([]*datatypes.Alert, error) {
	candidates := evaluateRules(ra, prev)
	if len(candidates) == 0 {
		return nil, nil
	}

	existing, err := m.store.ListAlerts(ctx, storage.AlertFilter{AssetID: ra.AssetID})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	open := make(map[string]bool)
	for _, a := range existing {
		if a.State != datatypes.AlertResolved {
			open[a.Rule] = true
		}
	}

	now := time.Now().UTC()
	var created []*datatypes.Alert
	for _, c := range candidates {
		if open[c.rule] {
			continue
		}
		alert := &datatypes.Alert{
			ID:          uuid.NewString(),
			AssetID:     ra.AssetID,
			Level:       c.level,
			Rule:        c.rule,
			Message:     c.message,
			State:       datatypes.AlertTriggered,
			TriggeredAt: now,
		}
		if err := m.store.PutAlert(ctx, alert); err != nil {
			return created, fmt.Errorf("persist alert: %w", err)
		}
		m.publish("triggered", alert)
		m.logger.Warn("alert triggered",
			"alert_id", alert.ID,
			"asset_id", alert.AssetID,
			"rule", alert.Rule,
			"level", string(alert.Level),
		)
		created = append(created, alert)
	}
	return created, nil
}

// Acknowledge records a human acknowledgment on an alert.
func (m *Manager) Acknowledge(ctx context.Context, alertID, by string) (*datatypes.Alert, error) {
	alert, err := m.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if err := alert.Acknowledge(by, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := m.store.PutAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("persist acknowledgment: %w", err)
	}
	m.publish("acknowledged", alert)
	m.logger.Info("alert acknowledged", "alert_id", alertID, "by", by)
	return alert, nil
}

// Resolve closes an acknowledged alert. Returns ErrInvalidTransition
// when the alert was never acknowledged.
func (m *Manager) Resolve(ctx context.Context, alertID, by string) (*datatypes.Alert, error) {
	alert, err := m.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if err := alert.Resolve(by, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := m.store.PutAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("persist resolution: %w", err)
	}
	m.publish("resolved", alert)
	m.logger.Info("alert resolved", "alert_id", alertID, "by", by)
	return alert, nil
}

// Start launches the periodic escalation sweep. Safe to call once;
// subsequent calls are no-ops until Stop.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.done = make(chan struct{})
	m.running = true
	go m.loop(m.done)
	m.logger.Info("alert escalation sweep started", "interval", m.interval.String())
}

// Stop halts the escalation sweep.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.done)
	m.running = false
}

func (m *Manager) loop(done chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := m.RunEscalation(ctx); err != nil {
				m.logger.Error("escalation sweep failed", "error", err)
			}
			cancel()
		}
	}
}

// RunEscalation promotes unacknowledged alerts whose escalation timer
// has expired. Exposed for tests and manual triggering.
func (m *Manager) RunEscalation(ctx context.Context) error {
	alerts, err := m.store.ListAlerts(ctx, storage.AlertFilter{State: datatypes.AlertTriggered})
	if err != nil {
		return fmt.Errorf("list triggered alerts: %w", err)
	}

	now := time.Now().UTC()
	for _, alert := range alerts {
		var deadline time.Duration
		switch alert.Level {
		case datatypes.AlertWarning:
			deadline = WarningEscalateAfter
		case datatypes.AlertCritical:
			deadline = CriticalEscalateAfter
		default:
			continue // emergency has nowhere to go
		}
		if now.Sub(alert.TriggeredAt) < deadline {
			continue
		}

		from := alert.Level
		if alert.EscalatedFrom == "" {
			alert.EscalatedFrom = from
		}
		alert.Level = from.Escalated()
		// Restart the timer at the new level.
		alert.TriggeredAt = now

		if err := m.store.PutAlert(ctx, alert); err != nil {
			return fmt.Errorf("persist escalation: %w", err)
		}
		m.notifier.Publish("escalated", alert)
		if m.metrics != nil {
			m.metrics.RecordAlertEscalation(string(from), string(alert.Level))
		}
		m.logger.Warn("alert escalated",
			"alert_id", alert.ID,
			"asset_id", alert.AssetID,
			"from", string(from),
			"to", string(alert.Level),
		)
	}
	return nil
}
