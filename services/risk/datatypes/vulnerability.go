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

// Severity is the CVSS qualitative severity rating.
type Severity string

const (
	SeverityNone     Severity = "NONE"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// CVSS v3 qualitative severity boundaries.
const (
	CVSSLowMin      = 0.1
	CVSSMediumMin   = 4.0
	CVSSHighMin     = 7.0
	CVSSCriticalMin = 9.0
)

// SeverityFromCVSS maps a CVSS v3 base score to its qualitative rating.
func SeverityFromCVSS(score float64) Severity {
	switch {
	case score >= CVSSCriticalMin:
		return SeverityCritical
	case score >= CVSSHighMin:
		return SeverityHigh
	case score >= CVSSMediumMin:
		return SeverityMedium
	case score >= CVSSLowMin:
		return SeverityLow
	default:
		return SeverityNone
	}
}

// ParseSeverity parses a severity string case-insensitively.
// Unknown input maps to NONE.
func ParseSeverity(s string) Severity {
	switch strings.ToUpper(s) {
	case "LOW":
		return SeverityLow
	case "MEDIUM":
		return SeverityMedium
	case "HIGH":
		return SeverityHigh
	case "CRITICAL":
		return SeverityCritical
	default:
		return SeverityNone
	}
}

// Order returns the numeric order of a severity for comparisons.
func (s Severity) Order() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// VulnStatus is the lifecycle state of a correlated finding.
type VulnStatus string

const (
	VulnOpen      VulnStatus = "open"
	VulnMitigated VulnStatus = "mitigated"
)

// Vulnerability is a CVE-linked finding correlated to an asset.
//
// # Invariants
//
//   - Severity never downgrades on refresh; only Status transitions
//     close a finding.
type Vulnerability struct {
	CVEID       string     `json:"cve_id"`
	AssetID     string     `json:"asset_id"`
	Product     string     `json:"product"`
	Version     string     `json:"version,omitempty"`
	CVSS        float64    `json:"cvss"`
	Severity    Severity   `json:"severity"`
	Description string     `json:"description,omitempty"`
	Status      VulnStatus `json:"status"`
	Published   time.Time  `json:"published"`
	Modified    time.Time  `json:"modified"`
	DetectedAt  time.Time  `json:"detected_at"`
}
