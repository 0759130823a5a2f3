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
	"math"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
)

// Credit fractions per reported implementation state. Unreported
// checks earn nothing, which biases toward the conservative side.
const (
	creditImplemented = 1.0
	creditPartial     = 0.5
	creditNone        = 0.0
)

// Assessor scores an asset's control posture against the catalog.
//
// # Thread Safety
//
// Safe for concurrent use. The catalog can be swapped at runtime via
// SetCatalog (used by the override watcher) without blocking readers
// beyond a brief RLock.
type Assessor struct {
	mu      sync.RWMutex
	catalog *Catalog
	logger  *slog.Logger
}

// NewAssessor builds an assessor over the given catalog.
func NewAssessor(c *Catalog, logger *slog.Logger) *Assessor {
	return &Assessor{catalog: c, logger: logger}
}

// Catalog returns the catalog currently in effect.
func (a *Assessor) Catalog() *Catalog {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.catalog
}

// SetCatalog swaps the active catalog. The caller is responsible for
// passing a validated catalog (Parse/LoadFile already validate).
func (a *Assessor) SetCatalog(c *Catalog) {
	a.mu.Lock()
	a.catalog = c
	a.mu.Unlock()
}

// creditFor maps a reported implementation state to earned credit.
func creditFor(state datatypes.ControlImplementation) float64 {
	switch state {
	case datatypes.ControlImplemented:
		return creditImplemented
	case datatypes.ControlPartial:
		return creditPartial
	default:
		return creditNone
	}
}

// AssessAsset scores every catalog category for the asset.
//
// # Description
//
// Each check earns a fraction of its weight based on the asset's
// reported implementation state. Checks marked not_applicable are
// excluded from both numerator and denominator. A category where
// every check is not_applicable is skipped entirely.
//
// # Outputs
//
//   - One ControlAssessment per assessed category, effectiveness 0-100.
//   - A ControlSummary rollup for the risk engine.
func (a *Assessor) AssessAsset(asset *datatypes.Asset) ([]datatypes.ControlAssessment, datatypes.ControlSummary) {
	a.mu.RLock()
	cat := a.catalog
	a.mu.RUnlock()

	now := time.Now().UTC()
	assessments := make([]datatypes.ControlAssessment, 0, len(cat.Categories))

	var summary datatypes.ControlSummary
	summary.WeakestEffectiveness = math.MaxFloat64
	total := 0.0

	for _, category := range cat.Categories {
		earned, possible := 0.0, 0.0
		results := make([]datatypes.CheckResult, 0, len(category.Checks))

		for _, chk := range category.Checks {
			state, reported := asset.Controls[chk.ID]
			if !reported {
				state = datatypes.ControlNotImplemented
			}
			if state == datatypes.ControlNotApplicable {
				continue
			}
			credit := creditFor(state)
			earned += credit * float64(chk.Weight)
			possible += float64(chk.Weight)
			results = append(results, datatypes.CheckResult{
				CheckID: chk.ID,
				Title:   chk.Title,
				Weight:  chk.Weight,
				State:   state,
				Credit:  credit,
			})
		}

		if possible == 0 {
			continue
		}

		effectiveness := math.Round(earned/possible*10000) / 100
		assessments = append(assessments, datatypes.ControlAssessment{
			AssetID:       asset.ID,
			Category:      category.Name,
			Effectiveness: effectiveness,
			Checks:        results,
			AssessedAt:    now,
		})

		total += effectiveness
		if effectiveness < summary.WeakestEffectiveness {
			summary.WeakestEffectiveness = effectiveness
			summary.WeakestCategory = category.Name
		}
	}

	summary.CategoriesAssessed = len(assessments)
	if len(assessments) == 0 {
		summary.WeakestEffectiveness = 0
		return assessments, summary
	}
	summary.MeanEffectiveness = math.Round(total/float64(len(assessments))*100) / 100

	if a.logger != nil {
		a.logger.Debug("control assessment complete",
			"asset_id", asset.ID,
			"categories", summary.CategoriesAssessed,
			"mean_effectiveness", summary.MeanEffectiveness,
			"weakest", summary.WeakestCategory,
		)
	}
	return assessments, summary
}
