// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// One registration per test binary.
var metrics = InitMetrics()

func TestRecordAlertEventKeepsGaugeInStep(t *testing.T) {
	metrics.RecordAlertEvent("warning", "triggered")
	metrics.RecordAlertEvent("warning", "acknowledged")
	assert.Equal(t, 1.0,
		testutil.ToFloat64(metrics.OpenAlerts.WithLabelValues("warning")),
		"acknowledgment keeps the alert open")

	metrics.RecordAlertEvent("warning", "resolved")
	assert.Equal(t, 0.0,
		testutil.ToFloat64(metrics.OpenAlerts.WithLabelValues("warning")))
	assert.Equal(t, 1.0,
		testutil.ToFloat64(metrics.AlertsTotal.WithLabelValues("warning", "resolved")))
}

func TestRecordAlertEscalationMovesGauge(t *testing.T) {
	metrics.RecordAlertEvent("critical", "triggered")
	metrics.RecordAlertEscalation("critical", "emergency")

	assert.Equal(t, 0.0,
		testutil.ToFloat64(metrics.OpenAlerts.WithLabelValues("critical")))
	assert.Equal(t, 1.0,
		testutil.ToFloat64(metrics.OpenAlerts.WithLabelValues("emergency")))
	assert.Equal(t, 1.0,
		testutil.ToFloat64(metrics.AlertsTotal.WithLabelValues("emergency", "escalated")))
}

func TestRecordAssessment(t *testing.T) {
	metrics.RecordAssessment("HIGH", "asset-1", 18, 0.2)
	metrics.RecordAssessmentError()

	assert.Equal(t, 18.0,
		testutil.ToFloat64(metrics.RiskScore.WithLabelValues("asset-1")))
	assert.Equal(t, 1.0,
		testutil.ToFloat64(metrics.AssessmentsTotal.WithLabelValues("HIGH", "success")))
	assert.Equal(t, 1.0,
		testutil.ToFloat64(metrics.AssessmentsTotal.WithLabelValues("unknown", "error")))
}

func TestRecordVulnSyncAndOpenFindings(t *testing.T) {
	metrics.RecordVulnSync(120, true)
	metrics.RecordVulnSync(0, false)
	assert.Equal(t, 1.0,
		testutil.ToFloat64(metrics.VulnSyncTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0,
		testutil.ToFloat64(metrics.VulnSyncTotal.WithLabelValues("error")))
	assert.Equal(t, 120.0, testutil.ToFloat64(metrics.VulnSyncRecords))

	metrics.SetOpenFindings("CRITICAL", 3)
	assert.Equal(t, 3.0,
		testutil.ToFloat64(metrics.OpenFindings.WithLabelValues("CRITICAL")))
	metrics.SetOpenFindings("CRITICAL", 0)
	assert.Equal(t, 0.0,
		testutil.ToFloat64(metrics.OpenFindings.WithLabelValues("CRITICAL")))
}
