// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine computes composite risk scores for assets.
//
// The score is likelihood (1-5) x impact (1-5) x an exposure modifier
// (0.5-1.5), clamped into [1, 25]. Likelihood is driven by the open
// vulnerability picture, impact by business criticality, and exposure
// by network reachability, data sensitivity, and control posture.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
	"github.com/AleutianAI/AleutianRisk/services/risk/storage"
)

// AlgorithmVersion is stamped on every assessment so stored history
// stays interpretable when the derivation changes.
const AlgorithmVersion = "2025.3"

// AssessBudget bounds one scoring run. Correlation and scoring are
// local operations; anything slower indicates a stuck store.
const AssessBudget = 500 * time.Millisecond

// Exposure modifier bounds.
const (
	exposureMin = 0.5
	exposureMax = 1.5
)

// VulnSource feeds the engine the open vulnerability picture.
type VulnSource interface {
	CorrelateAsset(ctx context.Context, asset *datatypes.Asset) (int, error)
	OpenSummary(ctx context.Context, assetID string) (datatypes.VulnSummary, error)
}

// ControlSource feeds the engine the control posture.
type ControlSource interface {
	AssessAsset(asset *datatypes.Asset) ([]datatypes.ControlAssessment, datatypes.ControlSummary)
}

// Engine scores assets and persists the resulting assessments.
//
// # Thread Safety
//
// Safe for concurrent use; the scheduler runs many Assess calls in
// parallel against one Engine.
type Engine struct {
	store    *storage.Store
	vulns    VulnSource
	controls ControlSource
	logger   *slog.Logger
}

// New creates an Engine over the given sources.
func New(store *storage.Store, vulns VulnSource, controls ControlSource, logger *slog.Logger) *Engine {
	return &Engine{store: store, vulns: vulns, controls: controls, logger: logger}
}

// Assess scores one asset and persists the assessment.
//
// # Description
//
// Correlates the asset's products against the CVE mirror, assesses
// control posture, derives likelihood/impact/exposure, and writes the
// resulting RiskAssessment. The asset's LastAssessedAt is updated on
// success.
//
// # Outputs
//
//   - *RiskAssessment: Score guaranteed within [1, 25].
//   - error: Non-nil if correlation or persistence fails.
func (e *Engine) Assess(ctx context.Context, asset *datatypes.Asset) (*datatypes.RiskAssessment, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	ctx, cancel := context.WithTimeout(ctx, AssessBudget)
	defer cancel()

	start := time.Now().UTC()

	if _, err := e.vulns.CorrelateAsset(ctx, asset); err != nil {
		return nil, fmt.Errorf("correlate vulnerabilities: %w", err)
	}
	vulnSum, err := e.vulns.OpenSummary(ctx, asset.ID)
	if err != nil {
		return nil, fmt.Errorf("summarize vulnerabilities: %w", err)
	}

	_, ctrlSum := e.controls.AssessAsset(asset)

	likelihood, likelihoodFactors := deriveLikelihood(vulnSum, ctrlSum)
	impact, impactFactors := deriveImpact(asset)
	exposure, exposureFactors := deriveExposure(asset, ctrlSum)

	score := clampScore(int(math.Round(float64(likelihood) * float64(impact) * exposure)))
	tier := datatypes.TierForScore(score)

	factors := make([]datatypes.Factor, 0,
		len(likelihoodFactors)+len(impactFactors)+len(exposureFactors))
	factors = append(factors, likelihoodFactors...)
	factors = append(factors, impactFactors...)
	factors = append(factors, exposureFactors...)

	completed := time.Now().UTC()
	assessment := &datatypes.RiskAssessment{
		ID:               uuid.NewString(),
		AssetID:          asset.ID,
		Score:            score,
		Tier:             tier,
		Likelihood:       likelihood,
		Impact:           impact,
		Exposure:         exposure,
		Factors:          factors,
		Recommendation:   Recommendations[tier],
		VulnSummary:      vulnSum,
		ControlSummary:   ctrlSum,
		AlgorithmVersion: AlgorithmVersion,
		StartedAt:        start,
		CompletedAt:      completed,
		DurationMs:       completed.Sub(start).Milliseconds(),
	}

	if err := e.store.PutAssessment(ctx, assessment); err != nil {
		return nil, fmt.Errorf("persist assessment: %w", err)
	}
	if err := e.store.TouchAssetAssessed(ctx, asset.ID, completed); err != nil {
		return nil, fmt.Errorf("touch asset: %w", err)
	}

	e.logger.Info("risk assessment complete",
		"asset_id", asset.ID,
		"score", score,
		"tier", string(tier),
		"open_vulns", vulnSum.OpenTotal,
		"duration_ms", assessment.DurationMs,
	)
	return assessment, nil
}

// deriveLikelihood maps vulnerability pressure and control posture to
// a 1-5 likelihood.
//
// CVSS floors keep a single critical CVE from being averaged away:
// any open CVE at 9.0+ forces likelihood to at least 4, and 7.0+ to
// at least 3.
func deriveLikelihood(vulns datatypes.VulnSummary, controls datatypes.ControlSummary) (int, []datatypes.Factor) {
	likelihood := 1
	var factors []datatypes.Factor

	if vulns.OpenTotal > 0 {
		likelihood++
		factors = append(factors, datatypes.Factor{
			Signal:   "vulnerability",
			Severity: "warning",
			Message:  fmt.Sprintf("%d open vulnerabilities", vulns.OpenTotal),
		})
	}
	if vulns.OpenTotal >= 5 {
		likelihood++
	}

	if controls.CategoriesAssessed > 0 && controls.MeanEffectiveness < 40 {
		likelihood++
		factors = append(factors, datatypes.Factor{
			Signal:   "controls",
			Severity: "warning",
			Message: fmt.Sprintf("control effectiveness %.0f%% (weakest: %s)",
				controls.MeanEffectiveness, controls.WeakestCategory),
		})
	}

	switch {
	case vulns.MaxCVSS >= datatypes.CVSSCriticalMin:
		if likelihood < 4 {
			likelihood = 4
		}
		factors = append(factors, datatypes.Factor{
			Signal:   "vulnerability",
			Severity: "critical",
			Message:  fmt.Sprintf("open CVE with CVSS %.1f", vulns.MaxCVSS),
		})
	case vulns.MaxCVSS >= datatypes.CVSSHighMin:
		if likelihood < 3 {
			likelihood = 3
		}
		factors = append(factors, datatypes.Factor{
			Signal:   "vulnerability",
			Severity: "warning",
			Message:  fmt.Sprintf("open CVE with CVSS %.1f", vulns.MaxCVSS),
		})
	}

	if likelihood > 5 {
		likelihood = 5
	}
	return likelihood, factors
}

// deriveImpact maps business criticality (1-5) to impact directly.
// Restricted data on a sub-critical asset bumps impact one step.
func deriveImpact(asset *datatypes.Asset) (int, []datatypes.Factor) {
	impact := asset.Criticality
	if impact < 1 {
		impact = 1
	}
	if impact > 5 {
		impact = 5
	}

	var factors []datatypes.Factor
	if asset.DataSensitivity == datatypes.SensitivityRestricted && impact < 5 {
		impact++
		factors = append(factors, datatypes.Factor{
			Signal:   "impact",
			Severity: "warning",
			Message:  "restricted data raises impact",
		})
	}
	if impact >= 4 {
		factors = append(factors, datatypes.Factor{
			Signal:   "impact",
			Severity: "info",
			Message:  fmt.Sprintf("business criticality %d", asset.Criticality),
		})
	}
	return impact, factors
}

// deriveExposure computes the 0.5-1.5 exposure modifier.
func deriveExposure(asset *datatypes.Asset, controls datatypes.ControlSummary) (float64, []datatypes.Factor) {
	exposure := 1.0
	var factors []datatypes.Factor

	if asset.InternetExposed {
		exposure += 0.3
		factors = append(factors, datatypes.Factor{
			Signal:   "exposure",
			Severity: "warning",
			Message:  "asset is internet exposed",
		})
	}

	switch datatypes.SensitivityRank(asset.DataSensitivity) {
	case 3:
		exposure += 0.2
	case 2:
		exposure += 0.1
	}

	if controls.CategoriesAssessed > 0 {
		switch {
		case controls.MeanEffectiveness >= 80:
			exposure -= 0.2
			factors = append(factors, datatypes.Factor{
				Signal:   "controls",
				Severity: "info",
				Message:  fmt.Sprintf("strong control posture (%.0f%%)", controls.MeanEffectiveness),
			})
		case controls.MeanEffectiveness < 40:
			exposure += 0.1
		}
	}

	if exposure < exposureMin {
		exposure = exposureMin
	}
	if exposure > exposureMax {
		exposure = exposureMax
	}
	// Keep stored exposure stable to two decimals.
	exposure = math.Round(exposure*100) / 100
	return exposure, factors
}

func clampScore(score int) int {
	if score < datatypes.ScoreMin {
		return datatypes.ScoreMin
	}
	if score > datatypes.ScoreMax {
		return datatypes.ScoreMax
	}
	return score
}
