// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package trend analyzes risk score history and forecasts trajectories.
package trend

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
	"github.com/AleutianAI/AleutianRisk/services/risk/storage"
)

// Analyzer calculates risk trajectories from stored assessments.
//
// # Description
//
// Computes growth rates against a comparison period, classifies the
// direction, and projects the score forward with a least-squares fit
// over the observed history.
//
// # Thread Safety
//
// Safe for concurrent use.
type Analyzer struct {
	store *storage.Store
}

// RiskTrend represents the trajectory of one asset's risk score.
type RiskTrend struct {
	// AssetID is the asset under analysis.
	AssetID string `json:"asset_id"`

	// CurrentScore is the most recent composite score.
	CurrentScore int `json:"current_score"`

	// PreviousScore is the score from the comparison period.
	PreviousScore int `json:"previous_score"`

	// GrowthRate is the percentage change between the two.
	GrowthRate float64 `json:"growth_rate"`

	// Direction indicates trend direction.
	Direction TrendDirection `json:"direction"`

	// IsRapidGrowth indicates if growth exceeds the alert threshold.
	IsRapidGrowth bool `json:"is_rapid_growth"`

	// ForecastScore is the projected score at the forecast horizon,
	// clamped into the valid score range.
	ForecastScore int `json:"forecast_score"`

	// ForecastTier is the tier of the forecast score.
	ForecastTier datatypes.RiskTier `json:"forecast_tier"`

	// DataPoints is the number of assessments analyzed.
	DataPoints int `json:"data_points"`

	// FirstSeen is the oldest assessment in the window.
	FirstSeen time.Time `json:"first_seen"`

	// LastSeen is the most recent assessment.
	LastSeen time.Time `json:"last_seen"`
}

// TrendDirection indicates the direction of a trend.
type TrendDirection string

const (
	TrendUp     TrendDirection = "UP"
	TrendDown   TrendDirection = "DOWN"
	TrendStable TrendDirection = "STABLE"
)

// Options configures trend analysis.
type Options struct {
	// AnalysisWindow is how far back assessments are read.
	// Default: 30 days.
	AnalysisWindow time.Duration

	// ComparisonPeriod is how far back the comparison point sits.
	// Default: 7 days.
	ComparisonPeriod time.Duration

	// ForecastHorizon is how far ahead the score is projected.
	// Default: 7 days.
	ForecastHorizon time.Duration

	// RapidGrowthThreshold is the growth percentage that flags a
	// trend as rapid. Default: 50%.
	RapidGrowthThreshold float64

	// MinDataPoints is the minimum assessments for trend calculation.
	// Default: 3.
	MinDataPoints int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		AnalysisWindow:       30 * 24 * time.Hour,
		ComparisonPeriod:     7 * 24 * time.Hour,
		ForecastHorizon:      7 * 24 * time.Hour,
		RapidGrowthThreshold: 50.0,
		MinDataPoints:        3,
	}
}

// NewAnalyzer creates a trend analyzer over the assessment store.
func NewAnalyzer(store *storage.Store) *Analyzer {
	return &Analyzer{store: store}
}

// AnalyzeAsset calculates the risk trajectory for one asset.
//
// # Inputs
//
//   - ctx: Context for cancellation. Must not be nil.
//   - assetID: The asset to analyze.
//   - opts: Optional configuration (nil uses defaults).
//
// # Outputs
//
//   - *RiskTrend: The calculated trend. With fewer than MinDataPoints
//     assessments the trend is STABLE with no forecast beyond the
//     current score.
//   - error: Non-nil on storage failure.
func (a *Analyzer) AnalyzeAsset(ctx context.Context, assetID string, opts *Options) (*RiskTrend, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	now := time.Now().UTC()
	history, err := a.store.AssessmentsSince(ctx, assetID, now.Add(-opts.AnalysisWindow))
	if err != nil {
		return nil, fmt.Errorf("load assessment history: %w", err)
	}

	trend := &RiskTrend{
		AssetID:    assetID,
		DataPoints: len(history),
		Direction:  TrendStable,
	}
	if len(history) == 0 {
		return trend, nil
	}

	// AssessmentsSince returns oldest first.
	trend.FirstSeen = history[0].CompletedAt
	trend.LastSeen = history[len(history)-1].CompletedAt
	trend.CurrentScore = history[len(history)-1].Score
	trend.ForecastScore = trend.CurrentScore
	trend.ForecastTier = datatypes.TierForScore(trend.CurrentScore)

	if len(history) < opts.MinDataPoints {
		return trend, nil
	}

	// Comparison point: last assessment at or before the cutoff,
	// falling back to the oldest in the window.
	cutoff := now.Add(-opts.ComparisonPeriod)
	trend.PreviousScore = history[0].Score
	for _, ra := range history {
		if ra.CompletedAt.After(cutoff) {
			break
		}
		trend.PreviousScore = ra.Score
	}

	if trend.PreviousScore > 0 {
		trend.GrowthRate = float64(trend.CurrentScore-trend.PreviousScore) /
			float64(trend.PreviousScore) * 100
		trend.GrowthRate = math.Round(trend.GrowthRate*100) / 100
	}

	switch {
	case trend.GrowthRate > 5:
		trend.Direction = TrendUp
	case trend.GrowthRate < -5:
		trend.Direction = TrendDown
	}
	trend.IsRapidGrowth = trend.GrowthRate > opts.RapidGrowthThreshold

	trend.ForecastScore = forecast(history, now, opts.ForecastHorizon)
	trend.ForecastTier = datatypes.TierForScore(trend.ForecastScore)
	return trend, nil
}

// AnalyzeAll calculates trends for every asset with history, sorted by
// growth rate descending.
func (a *Analyzer) AnalyzeAll(ctx context.Context, opts *Options) ([]RiskTrend, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}

	assets, err := a.store.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}

	trends := make([]RiskTrend, 0, len(assets))
	for _, asset := range assets {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		trend, err := a.AnalyzeAsset(ctx, asset.ID, opts)
		if err != nil {
			return nil, err
		}
		if trend.DataPoints == 0 {
			continue
		}
		trends = append(trends, *trend)
	}

	sort.Slice(trends, func(i, j int) bool {
		return trends[i].GrowthRate > trends[j].GrowthRate
	})
	return trends, nil
}

// forecast projects the score at now+horizon with a least-squares fit
// over the observed points. Result is clamped into [ScoreMin, ScoreMax].
func forecast(history []*datatypes.RiskAssessment, now time.Time, horizon time.Duration) int {
	n := float64(len(history))
	base := history[0].CompletedAt

	var sumX, sumY, sumXY, sumXX float64
	for _, ra := range history {
		x := ra.CompletedAt.Sub(base).Hours()
		y := float64(ra.Score)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return clampForecast(history[len(history)-1].Score)
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	target := now.Add(horizon).Sub(base).Hours()
	projected := slope*target + intercept
	return clampForecast(int(math.Round(projected)))
}

func clampForecast(score int) int {
	if score < datatypes.ScoreMin {
		return datatypes.ScoreMin
	}
	if score > datatypes.ScoreMax {
		return datatypes.ScoreMax
	}
	return score
}
