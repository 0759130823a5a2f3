// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package alerting turns assessment results into alerts, runs the
// escalation timers, and enforces the acknowledge-before-resolve
// lifecycle.
package alerting

import (
	"fmt"

	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
)

// Rule names stamped on alerts so operators can see what fired.
const (
	RuleTierCritical = "tier-critical"
	RuleTierHigh     = "tier-high"
	RuleScoreJump    = "score-jump"
	RuleCriticalCVE  = "critical-cve"
)

// ScoreJumpDelta is the minimum score increase between consecutive
// assessments that fires the score-jump rule.
const ScoreJumpDelta = 5

// candidate is a rule firing before persistence and dedup.
type candidate struct {
	rule    string
	level   datatypes.AlertLevel
	message string
}

// evaluateRules runs the threshold rules against a fresh assessment.
// prev is the previous assessment for the same asset, nil on first run.
func evaluateRules(ra *datatypes.RiskAssessment, prev *datatypes.RiskAssessment) []candidate {
	var out []candidate

	switch ra.Tier {
	case datatypes.TierCritical:
		out = append(out, candidate{
			rule:    RuleTierCritical,
			level:   datatypes.AlertCritical,
			message: fmt.Sprintf("risk score %d (CRITICAL)", ra.Score),
		})
	case datatypes.TierHigh:
		out = append(out, candidate{
			rule:    RuleTierHigh,
			level:   datatypes.AlertWarning,
			message: fmt.Sprintf("risk score %d (HIGH)", ra.Score),
		})
	}

	if prev != nil && ra.Score-prev.Score >= ScoreJumpDelta {
		out = append(out, candidate{
			rule:    RuleScoreJump,
			level:   datatypes.AlertWarning,
			message: fmt.Sprintf("risk score jumped %d → %d", prev.Score, ra.Score),
		})
	}

	if ra.VulnSummary.CriticalCount > 0 {
		out = append(out, candidate{
			rule:  RuleCriticalCVE,
			level: datatypes.AlertCritical,
			message: fmt.Sprintf("%d open critical vulnerabilities (max CVSS %.1f)",
				ra.VulnSummary.CriticalCount, ra.VulnSummary.MaxCVSS),
		})
	}

	return out
}
