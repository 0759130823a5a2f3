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
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
	"github.com/AleutianAI/AleutianRisk/services/risk/observability"
	"github.com/AleutianAI/AleutianRisk/services/risk/storage"
)

const testAssetID = "0d7e9f1c-9b35-4c86-b7ea-1a8276d3f001"

// One registration per test binary; tests assert deltas.
var testMetrics = observability.InitMetrics()

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) Publish(event string, _ *datatypes.Alert) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recordingNotifier) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newTestManager(t *testing.T) (*Manager, *storage.Store, *recordingNotifier) {
	t.Helper()
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := storage.NewStore(db)
	notifier := &recordingNotifier{}
	return NewManager(store, notifier, testMetrics, slog.Default()), store, notifier
}

func criticalAssessment(score int) *datatypes.RiskAssessment {
	return &datatypes.RiskAssessment{
		ID:      "ra-1",
		AssetID: testAssetID,
		Score:   score,
		Tier:    datatypes.TierForScore(score),
	}
}

func TestEvaluateRules(t *testing.T) {
	t.Run("critical tier fires critical alert", func(t *testing.T) {
		cands := evaluateRules(criticalAssessment(22), nil)
		require.Len(t, cands, 1)
		assert.Equal(t, RuleTierCritical, cands[0].rule)
		assert.Equal(t, datatypes.AlertCritical, cands[0].level)
	})

	t.Run("high tier fires warning", func(t *testing.T) {
		cands := evaluateRules(criticalAssessment(15), nil)
		require.Len(t, cands, 1)
		assert.Equal(t, RuleTierHigh, cands[0].rule)
		assert.Equal(t, datatypes.AlertWarning, cands[0].level)
	})

	t.Run("low tier is quiet", func(t *testing.T) {
		assert.Empty(t, evaluateRules(criticalAssessment(4), nil))
	})

	t.Run("score jump fires on delta", func(t *testing.T) {
		cands := evaluateRules(criticalAssessment(11), criticalAssessment(4))
		require.Len(t, cands, 1)
		assert.Equal(t, RuleScoreJump, cands[0].rule)

		assert.Empty(t, evaluateRules(criticalAssessment(8), criticalAssessment(4)))
	})

	t.Run("open critical CVE fires", func(t *testing.T) {
		ra := criticalAssessment(4)
		ra.VulnSummary = datatypes.VulnSummary{OpenTotal: 1, CriticalCount: 1, MaxCVSS: 9.8}
		cands := evaluateRules(ra, nil)
		require.Len(t, cands, 1)
		assert.Equal(t, RuleCriticalCVE, cands[0].rule)
		assert.Equal(t, datatypes.AlertCritical, cands[0].level)
	})
}

func TestEvaluateAssessmentDeduplicates(t *testing.T) {
	m, store, notifier := newTestManager(t)
	ctx := context.Background()

	created, err := m.EvaluateAssessment(ctx, criticalAssessment(22), nil)
	require.NoError(t, err)
	require.Len(t, created, 1)

	// The same rule firing again while unresolved is suppressed.
	created, err = m.EvaluateAssessment(ctx, criticalAssessment(23), nil)
	require.NoError(t, err)
	assert.Empty(t, created)

	// After ack + resolve the rule can fire again.
	_, err = m.Acknowledge(ctx, created0ID(t, store), "oncall@example.com")
	require.NoError(t, err)
	_, err = m.Resolve(ctx, created0ID(t, store), "oncall@example.com")
	require.NoError(t, err)

	created, err = m.EvaluateAssessment(ctx, criticalAssessment(24), nil)
	require.NoError(t, err)
	assert.Len(t, created, 1)

	assert.Equal(t, []string{"triggered", "acknowledged", "resolved", "triggered"}, notifier.all())
}

func created0ID(t *testing.T, store *storage.Store) string {
	t.Helper()
	alerts, err := store.ListAlerts(context.Background(), storage.AlertFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, alerts)
	return alerts[len(alerts)-1].ID
}

func TestResolveRequiresAcknowledgment(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	created, err := m.EvaluateAssessment(ctx, criticalAssessment(22), nil)
	require.NoError(t, err)
	require.Len(t, created, 1)
	id := created[0].ID

	_, err = m.Resolve(ctx, id, "oncall@example.com")
	var badTransition *datatypes.ErrInvalidTransition
	require.ErrorAs(t, err, &badTransition)
	assert.Equal(t, datatypes.AlertTriggered, badTransition.From)

	_, err = m.Acknowledge(ctx, id, "oncall@example.com")
	require.NoError(t, err)
	resolved, err := m.Resolve(ctx, id, "oncall@example.com")
	require.NoError(t, err)
	assert.Equal(t, datatypes.AlertResolved, resolved.State)
}

func TestRunEscalation(t *testing.T) {
	m, store, notifier := newTestManager(t)
	ctx := context.Background()

	stale := &datatypes.Alert{
		ID:          "alert-warning-stale",
		AssetID:     testAssetID,
		Level:       datatypes.AlertWarning,
		Rule:        RuleTierHigh,
		State:       datatypes.AlertTriggered,
		TriggeredAt: time.Now().UTC().Add(-5 * time.Hour),
	}
	fresh := &datatypes.Alert{
		ID:          "alert-warning-fresh",
		AssetID:     testAssetID,
		Level:       datatypes.AlertWarning,
		Rule:        RuleScoreJump,
		State:       datatypes.AlertTriggered,
		TriggeredAt: time.Now().UTC(),
	}
	acked := &datatypes.Alert{
		ID:          "alert-acked",
		AssetID:     testAssetID,
		Level:       datatypes.AlertCritical,
		Rule:        RuleTierCritical,
		State:       datatypes.AlertAcknowledged,
		TriggeredAt: time.Now().UTC().Add(-5 * time.Hour),
	}
	for _, a := range []*datatypes.Alert{stale, fresh, acked} {
		require.NoError(t, store.PutAlert(ctx, a))
	}

	require.NoError(t, m.RunEscalation(ctx))

	escalated, err := store.GetAlert(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.AlertCritical, escalated.Level)
	assert.Equal(t, datatypes.AlertWarning, escalated.EscalatedFrom)

	untouched, err := store.GetAlert(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.AlertWarning, untouched.Level)

	// Acknowledged alerts never escalate.
	still, err := store.GetAlert(ctx, acked.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.AlertCritical, still.Level)

	assert.Equal(t, []string{"escalated"}, notifier.all())
}

func TestEscalationChainStopsAtEmergency(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	alert := &datatypes.Alert{
		ID:          "alert-critical-stale",
		AssetID:     testAssetID,
		Level:       datatypes.AlertCritical,
		Rule:        RuleTierCritical,
		State:       datatypes.AlertTriggered,
		TriggeredAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	require.NoError(t, store.PutAlert(ctx, alert))

	require.NoError(t, m.RunEscalation(ctx))
	got, err := store.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.AlertEmergency, got.Level)
	assert.Equal(t, datatypes.AlertCritical, got.EscalatedFrom)

	// Emergency alerts stay emergency even when stale. Backdate and re-run.
	got.TriggeredAt = time.Now().UTC().Add(-10 * time.Hour)
	require.NoError(t, store.PutAlert(ctx, got))
	require.NoError(t, m.RunEscalation(ctx))

	final, err := store.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.AlertEmergency, final.Level)
	assert.Equal(t, datatypes.AlertCritical, final.EscalatedFrom)
}

func TestAlertMetricsFollowLifecycle(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	openCritical := func() float64 {
		return testutil.ToFloat64(testMetrics.OpenAlerts.WithLabelValues(string(datatypes.AlertCritical)))
	}
	before := openCritical()

	created, err := m.EvaluateAssessment(ctx, criticalAssessment(22), nil)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, before+1, openCritical())

	_, err = m.Acknowledge(ctx, created[0].ID, "oncall@example.com")
	require.NoError(t, err)
	assert.Equal(t, before+1, openCritical(), "acknowledged alerts stay open")

	_, err = m.Resolve(ctx, created[0].ID, "oncall@example.com")
	require.NoError(t, err)
	assert.Equal(t, before, openCritical())
}

func TestEscalationMovesOpenAlertGauge(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	openAt := func(level datatypes.AlertLevel) float64 {
		return testutil.ToFloat64(testMetrics.OpenAlerts.WithLabelValues(string(level)))
	}
	beforeWarning := openAt(datatypes.AlertWarning)
	beforeCritical := openAt(datatypes.AlertCritical)

	// Score 15 is a high tier, which triggers a warning.
	created, err := m.EvaluateAssessment(ctx, criticalAssessment(15), nil)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, beforeWarning+1, openAt(datatypes.AlertWarning))

	alert, err := store.GetAlert(ctx, created[0].ID)
	require.NoError(t, err)
	alert.TriggeredAt = time.Now().UTC().Add(-5 * time.Hour)
	require.NoError(t, store.PutAlert(ctx, alert))

	require.NoError(t, m.RunEscalation(ctx))
	assert.Equal(t, beforeWarning, openAt(datatypes.AlertWarning))
	assert.Equal(t, beforeCritical+1, openAt(datatypes.AlertCritical))
}

func TestManagerStartStopIdempotent(t *testing.T) {
	m, _, _ := newTestManager(t)
	m.interval = 10 * time.Millisecond
	m.Start()
	m.Start()
	time.Sleep(30 * time.Millisecond)
	m.Stop()
	m.Stop()
}
