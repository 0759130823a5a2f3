// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package controls

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
)

func TestLoadEmbeddedCatalog(t *testing.T) {
	cat, err := LoadEmbedded()
	require.NoError(t, err)
	assert.NotEmpty(t, cat.Categories)
	assert.Greater(t, cat.CheckCount(), 10)

	names := make(map[string]bool)
	for _, c := range cat.Categories {
		names[c.Name] = true
	}
	for _, want := range []string{"access_control", "encryption", "audit", "backup", "network", "monitoring"} {
		assert.True(t, names[want], "missing category %s", want)
	}
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	cases := map[string]string{
		"no categories":  `categories: []`,
		"empty name":     "categories:\n  - name: \"\"\n    checks:\n      - {id: a, weight: 1}",
		"no checks":      "categories:\n  - name: x\n    checks: []",
		"zero weight":    "categories:\n  - name: x\n    checks:\n      - {id: a, weight: 0}",
		"duplicate id":   "categories:\n  - name: x\n    checks:\n      - {id: a, weight: 1}\n      - {id: a, weight: 1}",
		"malformed yaml": `categories: [`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.Error(t, err)
		})
	}
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := Parse([]byte(`
categories:
  - name: encryption
    checks:
      - {id: enc-at-rest, title: at rest, weight: 3}
      - {id: enc-in-transit, title: in transit, weight: 1}
  - name: backup
    checks:
      - {id: bak-scheduled, title: scheduled, weight: 2}
`))
	require.NoError(t, err)
	return cat
}

func TestAssessAsset(t *testing.T) {
	a := NewAssessor(testCatalog(t), slog.Default())
	asset := &datatypes.Asset{
		ID: "0d7e9f1c-9b35-4c86-b7ea-1a8276d3f001",
		Controls: map[string]datatypes.ControlImplementation{
			"enc-at-rest":    datatypes.ControlImplemented,
			"enc-in-transit": datatypes.ControlPartial,
			"bak-scheduled":  datatypes.ControlNotImplemented,
		},
	}

	assessments, summary := a.AssessAsset(asset)
	require.Len(t, assessments, 2)

	// encryption: (3*1.0 + 1*0.5) / 4 = 87.5
	assert.Equal(t, "encryption", assessments[0].Category)
	assert.InDelta(t, 87.5, assessments[0].Effectiveness, 0.01)
	require.Len(t, assessments[0].Checks, 2)
	assert.Equal(t, 1.0, assessments[0].Checks[0].Credit)
	assert.Equal(t, 0.5, assessments[0].Checks[1].Credit)

	assert.Equal(t, "backup", assessments[1].Category)
	assert.Equal(t, 0.0, assessments[1].Effectiveness)

	assert.Equal(t, 2, summary.CategoriesAssessed)
	assert.InDelta(t, 43.75, summary.MeanEffectiveness, 0.01)
	assert.Equal(t, "backup", summary.WeakestCategory)
	assert.Equal(t, 0.0, summary.WeakestEffectiveness)
}

func TestAssessAssetUnreportedChecksEarnNothing(t *testing.T) {
	a := NewAssessor(testCatalog(t), slog.Default())
	assessments, summary := a.AssessAsset(&datatypes.Asset{ID: "x"})

	require.Len(t, assessments, 2)
	for _, ca := range assessments {
		assert.Equal(t, 0.0, ca.Effectiveness)
		for _, chk := range ca.Checks {
			assert.Equal(t, datatypes.ControlNotImplemented, chk.State)
		}
	}
	assert.Equal(t, 0.0, summary.MeanEffectiveness)
}

func TestAssessAssetNotApplicableExcluded(t *testing.T) {
	a := NewAssessor(testCatalog(t), slog.Default())
	asset := &datatypes.Asset{
		ID: "x",
		Controls: map[string]datatypes.ControlImplementation{
			"enc-at-rest":    datatypes.ControlImplemented,
			"enc-in-transit": datatypes.ControlNotApplicable,
			"bak-scheduled":  datatypes.ControlNotApplicable,
		},
	}

	assessments, summary := a.AssessAsset(asset)

	// backup is entirely not_applicable and drops out.
	require.Len(t, assessments, 1)
	assert.Equal(t, "encryption", assessments[0].Category)
	assert.Equal(t, 100.0, assessments[0].Effectiveness)
	require.Len(t, assessments[0].Checks, 1)

	assert.Equal(t, 1, summary.CategoriesAssessed)
	assert.Equal(t, 100.0, summary.MeanEffectiveness)
	assert.Equal(t, "encryption", summary.WeakestCategory)
}

func TestWatcherReloadsOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")

	a := NewAssessor(testCatalog(t), slog.Default())
	w := NewWatcher(a, path, slog.Default())
	require.NoError(t, w.Start())
	defer w.Stop()

	override := []byte(`
categories:
  - name: custom
    checks:
      - {id: cu-1, title: one, weight: 1}
`)
	require.NoError(t, os.WriteFile(path, override, 0o644))

	require.Eventually(t, func() bool {
		cat := a.Catalog()
		return len(cat.Categories) == 1 && cat.Categories[0].Name == "custom"
	}, 2*time.Second, 20*time.Millisecond)

	// A broken override leaves the last good catalog in place.
	require.NoError(t, os.WriteFile(path, []byte("categories: ["), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "custom", a.Catalog().Categories[0].Name)
}
