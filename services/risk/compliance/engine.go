// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compliance maps control effectiveness onto regulatory
// framework requirements and scores each framework per asset.
package compliance

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianRisk/services/risk/compliance/mappings"
	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
)

// Scoring thresholds.
const (
	// PassThreshold is the minimum requirement score that counts as passed.
	PassThreshold = 70.0

	// CriticalVulnCap caps a framework score while the asset has any
	// open critical vulnerability. Paper compliance does not survive
	// an exploitable critical CVE.
	CriticalVulnCap = 60.0
)

// Requirement is one framework requirement mapped to catalog categories.
type Requirement struct {
	ID         string   `yaml:"id"`
	Title      string   `yaml:"title"`
	Weight     int      `yaml:"weight"`
	Categories []string `yaml:"categories"`
}

// FrameworkMapping is the mapping table for one framework.
type FrameworkMapping struct {
	ID           datatypes.Framework `yaml:"id"`
	Name         string              `yaml:"name"`
	Requirements []Requirement       `yaml:"requirements"`
}

type mappingFile struct {
	Frameworks []FrameworkMapping `yaml:"frameworks"`
}

// Engine evaluates assets against the loaded framework mappings.
//
// # Thread Safety
//
// Safe for concurrent use after construction; the mapping table is
// immutable once loaded.
type Engine struct {
	frameworks []FrameworkMapping
	logger     *slog.Logger
}

// NewEngine loads the embedded framework mappings.
func NewEngine(logger *slog.Logger) (*Engine, error) {
	var f mappingFile
	if err := yaml.Unmarshal(mappings.FrameworkMappings, &f); err != nil {
		return nil, fmt.Errorf("parse framework mappings: %w", err)
	}
	if len(f.Frameworks) == 0 {
		return nil, fmt.Errorf("framework mappings are empty")
	}
	for _, fw := range f.Frameworks {
		if fw.ID == "" || len(fw.Requirements) == 0 {
			return nil, fmt.Errorf("framework %q has no requirements", fw.ID)
		}
		for _, req := range fw.Requirements {
			if req.Weight <= 0 || len(req.Categories) == 0 {
				return nil, fmt.Errorf("requirement %q in %q is incomplete", req.ID, fw.ID)
			}
		}
	}
	return &Engine{frameworks: f.Frameworks, logger: logger}, nil
}

// Frameworks lists the frameworks the engine can evaluate.
func (e *Engine) Frameworks() []datatypes.Framework {
	out := make([]datatypes.Framework, 0, len(e.frameworks))
	for _, fw := range e.frameworks {
		out = append(out, fw.ID)
	}
	return out
}

// Evaluate scores every framework for one asset.
//
// # Inputs
//
//   - controlAssessments: Per-category effectiveness from the control
//     assessor. Categories absent from the slice score 0.
//   - assessment: The risk assessment this evaluation derives from;
//     supplies the vulnerability picture and linkage ID.
//
// # Outputs
//
//   - One ComplianceAssessment per framework, in mapping order.
func (e *Engine) Evaluate(assetID string, controlAssessments []datatypes.ControlAssessment, assessment *datatypes.RiskAssessment) []datatypes.ComplianceAssessment {
	effectiveness := make(map[string]float64, len(controlAssessments))
	for _, ca := range controlAssessments {
		effectiveness[ca.Category] = ca.Effectiveness
	}

	now := time.Now().UTC()
	results := make([]datatypes.ComplianceAssessment, 0, len(e.frameworks))
	for _, fw := range e.frameworks {
		results = append(results, e.evaluateFramework(assetID, fw, effectiveness, assessment, now))
	}
	return results
}

// EvaluateFramework scores one framework; unknown IDs return false.
func (e *Engine) EvaluateFramework(assetID string, framework datatypes.Framework, controlAssessments []datatypes.ControlAssessment, assessment *datatypes.RiskAssessment) (datatypes.ComplianceAssessment, bool) {
	effectiveness := make(map[string]float64, len(controlAssessments))
	for _, ca := range controlAssessments {
		effectiveness[ca.Category] = ca.Effectiveness
	}
	for _, fw := range e.frameworks {
		if fw.ID == framework {
			return e.evaluateFramework(assetID, fw, effectiveness, assessment, time.Now().UTC()), true
		}
	}
	return datatypes.ComplianceAssessment{}, false
}

func (e *Engine) evaluateFramework(assetID string, fw FrameworkMapping, effectiveness map[string]float64, assessment *datatypes.RiskAssessment, now time.Time) datatypes.ComplianceAssessment {
	result := datatypes.ComplianceAssessment{
		AssetID:    assetID,
		Framework:  fw.ID,
		AssessedAt: now,
	}
	if assessment != nil {
		result.RiskAssessmentID = assessment.ID
	}

	weighted, totalWeight := 0.0, 0.0
	for _, req := range fw.Requirements {
		score := requirementScore(req, effectiveness)
		weighted += score * float64(req.Weight)
		totalWeight += float64(req.Weight)

		if score >= PassThreshold {
			result.Passed++
		} else {
			result.Failed++
			result.Gaps = append(result.Gaps, fmt.Sprintf("%s: %s (%.0f%%)", req.ID, req.Title, score))
		}
	}
	if totalWeight > 0 {
		result.Score = math.Round(weighted/totalWeight*100) / 100
	}

	if assessment != nil && assessment.VulnSummary.CriticalCount > 0 && result.Score > CriticalVulnCap {
		result.Score = CriticalVulnCap
		result.Gaps = append(result.Gaps, fmt.Sprintf(
			"score capped: %d open critical vulnerabilities", assessment.VulnSummary.CriticalCount))
	}

	e.logger.Debug("framework evaluated",
		"asset_id", assetID,
		"framework", string(fw.ID),
		"score", result.Score,
		"passed", result.Passed,
		"failed", result.Failed,
	)
	return result
}

// requirementScore is the mean effectiveness over mapped categories.
// A category with no assessment contributes 0.
func requirementScore(req Requirement, effectiveness map[string]float64) float64 {
	total := 0.0
	for _, cat := range req.Categories {
		total += effectiveness[cat]
	}
	return total / float64(len(req.Categories))
}
