// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"strings"
	"time"
)

// Composite score bounds. Scores are clamped into this range, never zero.
const (
	ScoreMin = 1
	ScoreMax = 25
)

// RiskTier buckets a composite score for scheduling and alerting.
type RiskTier string

const (
	TierLow      RiskTier = "LOW"
	TierModerate RiskTier = "MODERATE"
	TierHigh     RiskTier = "HIGH"
	TierCritical RiskTier = "CRITICAL"
)

// Tier band boundaries over the 1-25 composite score.
const (
	tierModerateMin = 7
	tierHighMin     = 13
	tierCriticalMin = 20
)

// TierForScore maps a composite score to its tier.
// Scores outside [1,25] are clamped first.
func TierForScore(score int) RiskTier {
	if score < ScoreMin {
		score = ScoreMin
	}
	if score > ScoreMax {
		score = ScoreMax
	}
	switch {
	case score >= tierCriticalMin:
		return TierCritical
	case score >= tierHighMin:
		return TierHigh
	case score >= tierModerateMin:
		return TierModerate
	default:
		return TierLow
	}
}

// ParseRiskTier parses a string to RiskTier. Unknown input maps to HIGH
// so that a typo in a threshold flag fails closed rather than open.
func ParseRiskTier(s string) RiskTier {
	switch strings.ToLower(s) {
	case "low":
		return TierLow
	case "moderate", "medium":
		return TierModerate
	case "high":
		return TierHigh
	case "critical":
		return TierCritical
	default:
		return TierHigh
	}
}

// Order returns the numeric order of this tier.
func (t RiskTier) Order() int {
	switch t {
	case TierLow:
		return 0
	case TierModerate:
		return 1
	case TierHigh:
		return 2
	case TierCritical:
		return 3
	default:
		return 2
	}
}

// Exceeds returns true if this tier exceeds the threshold tier.
func (t RiskTier) Exceeds(threshold RiskTier) bool {
	return t.Order() > threshold.Order()
}

// Factor is one contributing factor in an assessment breakdown.
type Factor struct {
	Signal   string `json:"signal"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// VulnSummary summarizes the open vulnerability state feeding an assessment.
type VulnSummary struct {
	OpenTotal     int     `json:"open_total"`
	CriticalCount int     `json:"critical_count"`
	HighCount     int     `json:"high_count"`
	MediumCount   int     `json:"medium_count"`
	LowCount      int     `json:"low_count"`
	MaxCVSS       float64 `json:"max_cvss"`
}

// ControlSummary summarizes control effectiveness feeding an assessment.
type ControlSummary struct {
	// MeanEffectiveness is the average effectiveness across assessed
	// categories, 0-100.
	MeanEffectiveness float64 `json:"mean_effectiveness"`

	// WeakestCategory is the category with the lowest effectiveness.
	WeakestCategory string `json:"weakest_category,omitempty"`

	// WeakestEffectiveness is the effectiveness of that category.
	WeakestEffectiveness float64 `json:"weakest_effectiveness"`

	// CategoriesAssessed is the number of applicable categories.
	CategoriesAssessed int `json:"categories_assessed"`
}

// RiskAssessment is a scored snapshot of one asset at one point in time.
//
// # Invariants
//
//   - Score is always within [1, 25].
//   - Likelihood and Impact are 1-5; Exposure is 0.5-1.5.
//   - Tier is derived from Score via TierForScore.
type RiskAssessment struct {
	ID               string         `json:"id"`
	AssetID          string         `json:"asset_id"`
	Score            int            `json:"score"`
	Tier             RiskTier       `json:"tier"`
	Likelihood       int            `json:"likelihood"`
	Impact           int            `json:"impact"`
	Exposure         float64        `json:"exposure"`
	Factors          []Factor       `json:"factors,omitempty"`
	Recommendation   string         `json:"recommendation,omitempty"`
	VulnSummary      VulnSummary    `json:"vuln_summary"`
	ControlSummary   ControlSummary `json:"control_summary"`
	AlgorithmVersion string         `json:"algorithm_version"`
	StartedAt        time.Time      `json:"started_at"`
	CompletedAt      time.Time      `json:"completed_at"`
	DurationMs       int64          `json:"duration_ms"`
}
