// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compliance

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
)

const testAssetID = "0d7e9f1c-9b35-4c86-b7ea-1a8276d3f001"

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(slog.Default())
	require.NoError(t, err)
	return e
}

func allStrong() []datatypes.ControlAssessment {
	categories := []string{"access_control", "encryption", "audit", "backup", "network", "monitoring"}
	out := make([]datatypes.ControlAssessment, 0, len(categories))
	for _, c := range categories {
		out = append(out, datatypes.ControlAssessment{AssetID: testAssetID, Category: c, Effectiveness: 95})
	}
	return out
}

func TestEngineLoadsAllFrameworks(t *testing.T) {
	e := testEngine(t)
	fws := e.Frameworks()
	assert.Len(t, fws, 6)
	assert.Contains(t, fws, datatypes.FrameworkGDPR)
	assert.Contains(t, fws, datatypes.FrameworkSOC2)
	assert.Contains(t, fws, datatypes.FrameworkNISTCSF)
	assert.Contains(t, fws, datatypes.FrameworkISO27001)
	assert.Contains(t, fws, datatypes.FrameworkPCIDSS)
	assert.Contains(t, fws, datatypes.FrameworkHIPAA)
}

func TestEvaluateStrongPostureScoresHigh(t *testing.T) {
	e := testEngine(t)
	ra := &datatypes.RiskAssessment{ID: "ra-1"}

	results := e.Evaluate(testAssetID, allStrong(), ra)
	require.Len(t, results, 6)
	for _, r := range results {
		assert.InDelta(t, 95, r.Score, 0.01, "framework %s", r.Framework)
		assert.Zero(t, r.Failed, "framework %s", r.Framework)
		assert.Empty(t, r.Gaps)
		assert.Equal(t, "ra-1", r.RiskAssessmentID)
		assert.Equal(t, testAssetID, r.AssetID)
	}
}

func TestEvaluateMissingCategoriesScoreZero(t *testing.T) {
	e := testEngine(t)

	// Only encryption assessed; everything else scores 0.
	controls := []datatypes.ControlAssessment{
		{AssetID: testAssetID, Category: "encryption", Effectiveness: 100},
	}
	result, ok := e.EvaluateFramework(testAssetID, datatypes.FrameworkPCIDSS, controls, nil)
	require.True(t, ok)

	// pci: enc 100*3, access 0*3, network 0*2, audit+monitoring 0*2 -> 300/10
	assert.InDelta(t, 30, result.Score, 0.01)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 3, result.Failed)
	assert.Len(t, result.Gaps, 3)
}

func TestEvaluateCriticalVulnCapsScore(t *testing.T) {
	e := testEngine(t)
	ra := &datatypes.RiskAssessment{
		ID:          "ra-2",
		VulnSummary: datatypes.VulnSummary{OpenTotal: 1, CriticalCount: 1, MaxCVSS: 9.8},
	}

	result, ok := e.EvaluateFramework(testAssetID, datatypes.FrameworkGDPR, allStrong(), ra)
	require.True(t, ok)
	assert.Equal(t, CriticalVulnCap, result.Score)
	require.NotEmpty(t, result.Gaps)
	assert.Contains(t, result.Gaps[len(result.Gaps)-1], "capped")
}

func TestEvaluateCapDoesNotRaiseLowScores(t *testing.T) {
	e := testEngine(t)
	ra := &datatypes.RiskAssessment{
		VulnSummary: datatypes.VulnSummary{CriticalCount: 2},
	}

	result, ok := e.EvaluateFramework(testAssetID, datatypes.FrameworkHIPAA, nil, ra)
	require.True(t, ok)
	assert.Equal(t, 0.0, result.Score, "a zero score stays zero under the cap")
}

func TestEvaluateUnknownFramework(t *testing.T) {
	e := testEngine(t)
	_, ok := e.EvaluateFramework(testAssetID, datatypes.Framework("fedramp"), nil, nil)
	assert.False(t, ok)
}

func TestRequirementScoreAveragesCategories(t *testing.T) {
	req := Requirement{ID: "r", Weight: 1, Categories: []string{"a", "b"}}
	score := requirementScore(req, map[string]float64{"a": 100, "b": 50})
	assert.Equal(t, 75.0, score)
}
