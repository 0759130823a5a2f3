// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the risk platform.
//
// # Description
//
// Metrics cover the assessment pipeline (counts, durations, scores),
// the alert lifecycle, and CVE mirror synchronization. Exposed via the
// /metrics endpoint for Prometheus scraping.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for risk platform metrics
const riskSubsystem = "risk"

// RiskMetrics holds all Prometheus metrics for the risk platform.
//
// # Fields
//
//   - AssessmentsTotal: Counter of assessments by tier and status.
//   - AssessmentDurationSeconds: Histogram of assessment duration.
//   - RiskScore: Gauge of the latest composite score per asset.
//   - AlertsTotal: Counter of alert lifecycle events by level and event.
//   - OpenAlerts: Gauge of currently unresolved alerts by level.
//   - VulnSyncTotal: Counter of CVE mirror syncs by status.
//   - VulnSyncRecords: Counter of CVE records stored by syncs.
//   - OpenFindings: Gauge of open findings by severity.
type RiskMetrics struct {
	// AssessmentsTotal counts completed assessments.
	// Labels: tier (LOW..CRITICAL), status (success, error)
	AssessmentsTotal *prometheus.CounterVec

	// AssessmentDurationSeconds measures end-to-end assessment time.
	// Labels: tier
	AssessmentDurationSeconds *prometheus.HistogramVec

	// RiskScore tracks the latest composite score per asset.
	// Labels: asset_id
	RiskScore *prometheus.GaugeVec

	// AlertsTotal counts alert lifecycle events.
	// Labels: level (warning, critical, emergency), event (triggered, acknowledged, resolved, escalated)
	AlertsTotal *prometheus.CounterVec

	// OpenAlerts tracks unresolved alerts.
	// Labels: level
	OpenAlerts *prometheus.GaugeVec

	// VulnSyncTotal counts CVE mirror sync cycles.
	// Labels: status (success, error)
	VulnSyncTotal *prometheus.CounterVec

	// VulnSyncRecords counts CVE records stored by sync cycles.
	VulnSyncRecords prometheus.Counter

	// OpenFindings tracks open correlated findings.
	// Labels: severity (LOW..CRITICAL)
	OpenFindings *prometheus.GaugeVec
}

// DefaultMetrics is the singleton instance of RiskMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *RiskMetrics

// InitMetrics initializes the default metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *RiskMetrics {
	DefaultMetrics = &RiskMetrics{
		AssessmentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: riskSubsystem,
				Name:      "assessments_total",
				Help:      "Total risk assessments by tier and status",
			},
			[]string{"tier", "status"},
		),

		AssessmentDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: riskSubsystem,
				Name:      "assessment_duration_seconds",
				Help:      "End-to-end risk assessment duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"tier"},
		),

		RiskScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: riskSubsystem,
				Name:      "score",
				Help:      "Latest composite risk score per asset (1-25)",
			},
			[]string{"asset_id"},
		),

		AlertsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: riskSubsystem,
				Name:      "alerts_total",
				Help:      "Alert lifecycle events by level and event",
			},
			[]string{"level", "event"},
		),

		OpenAlerts: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: riskSubsystem,
				Name:      "open_alerts",
				Help:      "Currently unresolved alerts by level",
			},
			[]string{"level"},
		),

		VulnSyncTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: riskSubsystem,
				Name:      "vuln_sync_total",
				Help:      "CVE mirror sync cycles by status",
			},
			[]string{"status"},
		),

		VulnSyncRecords: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: riskSubsystem,
				Name:      "vuln_sync_records_total",
				Help:      "CVE records stored by sync cycles",
			},
		),

		OpenFindings: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: riskSubsystem,
				Name:      "open_findings",
				Help:      "Open correlated vulnerability findings by severity",
			},
			[]string{"severity"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordAssessment records a completed assessment.
//
// # Inputs
//
//   - tier: The resulting risk tier.
//   - assetID: The assessed asset.
//   - score: The composite score.
//   - seconds: Assessment duration in seconds.
func (m *RiskMetrics) RecordAssessment(tier, assetID string, score int, seconds float64) {
	m.AssessmentsTotal.WithLabelValues(tier, "success").Inc()
	m.AssessmentDurationSeconds.WithLabelValues(tier).Observe(seconds)
	m.RiskScore.WithLabelValues(assetID).Set(float64(score))
}

// RecordAssessmentError records a failed assessment.
func (m *RiskMetrics) RecordAssessmentError() {
	m.AssessmentsTotal.WithLabelValues("unknown", "error").Inc()
}

// RecordAlertEvent records one alert lifecycle event and keeps the
// open-alert gauge in step.
func (m *RiskMetrics) RecordAlertEvent(level, event string) {
	m.AlertsTotal.WithLabelValues(level, event).Inc()
	switch event {
	case "triggered":
		m.OpenAlerts.WithLabelValues(level).Inc()
	case "resolved":
		m.OpenAlerts.WithLabelValues(level).Dec()
	}
}

// RecordAlertEscalation records a level promotion, moving the open
// gauge from the old level to the new one.
func (m *RiskMetrics) RecordAlertEscalation(from, to string) {
	m.AlertsTotal.WithLabelValues(to, "escalated").Inc()
	m.OpenAlerts.WithLabelValues(from).Dec()
	m.OpenAlerts.WithLabelValues(to).Inc()
}

// RecordVulnSync records a CVE mirror sync cycle.
func (m *RiskMetrics) RecordVulnSync(stored int, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.VulnSyncTotal.WithLabelValues(status).Inc()
	if stored > 0 {
		m.VulnSyncRecords.Add(float64(stored))
	}
}

// SetOpenFindings updates the open-finding gauge for one severity.
func (m *RiskMetrics) SetOpenFindings(severity string, count int) {
	m.OpenFindings.WithLabelValues(severity).Set(float64(count))
}
