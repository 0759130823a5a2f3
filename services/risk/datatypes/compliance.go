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

import "time"

// Framework identifies a regulatory or industry framework.
type Framework string

const (
	FrameworkGDPR     Framework = "gdpr"
	FrameworkSOC2     Framework = "soc2"
	FrameworkNISTCSF  Framework = "nist-csf"
	FrameworkISO27001 Framework = "iso27001"
	FrameworkPCIDSS   Framework = "pci-dss"
	FrameworkHIPAA    Framework = "hipaa"
)

// ControlAssessment is the effectiveness result for one control
// category on one asset.
type ControlAssessment struct {
	AssetID       string        `json:"asset_id"`
	Category      string        `json:"category"`
	Effectiveness float64       `json:"effectiveness"`
	Checks        []CheckResult `json:"checks,omitempty"`
	AssessedAt    time.Time     `json:"assessed_at"`
}

// CheckResult is the outcome of one catalog check.
type CheckResult struct {
	CheckID string                `json:"check_id"`
	Title   string                `json:"title"`
	Weight  int                   `json:"weight"`
	State   ControlImplementation `json:"state"`

	// Credit is the fraction of Weight earned (1.0 implemented,
	// 0.5 partial, 0 not implemented).
	Credit float64 `json:"credit"`
}

// ComplianceAssessment is a per-framework score tied to an asset and
// the risk assessment it was derived from.
type ComplianceAssessment struct {
	AssetID          string    `json:"asset_id"`
	RiskAssessmentID string    `json:"risk_assessment_id"`
	Framework        Framework `json:"framework"`
	Score            float64   `json:"score"`
	Passed           int       `json:"passed"`
	Failed           int       `json:"failed"`
	Gaps             []string  `json:"gaps,omitempty"`
	AssessedAt       time.Time `json:"assessed_at"`
}
