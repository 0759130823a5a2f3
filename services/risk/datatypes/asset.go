// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the core entities of the risk platform:
// assets, risk assessments, vulnerabilities, control assessments,
// alerts, and compliance assessments.
package datatypes

import (
	"time"
)

// AssetKind identifies the class of an inventoried asset.
type AssetKind string

const (
	AssetPostgres  AssetKind = "postgres"
	AssetSQLite    AssetKind = "sqlite"
	AssetDuckDB    AssetKind = "duckdb"
	AssetFileStore AssetKind = "filestore"
	AssetService   AssetKind = "service"
)

// DataSensitivity classifies the data an asset holds.
// Ordered from least to most sensitive.
type DataSensitivity string

const (
	SensitivityPublic       DataSensitivity = "public"
	SensitivityInternal     DataSensitivity = "internal"
	SensitivityConfidential DataSensitivity = "confidential"
	SensitivityRestricted   DataSensitivity = "restricted"
)

// SensitivityRank returns the numeric order of a sensitivity level.
// Unknown values rank as internal.
func SensitivityRank(s DataSensitivity) int {
	switch s {
	case SensitivityPublic:
		return 0
	case SensitivityInternal:
		return 1
	case SensitivityConfidential:
		return 2
	case SensitivityRestricted:
		return 3
	default:
		return 1
	}
}

// ProductRef identifies a software product running on an asset,
// used for CVE correlation.
type ProductRef struct {
	// Product is the lowercase product name as it appears in CPE
	// criteria (e.g. "postgresql", "sqlite").
	Product string `json:"product" binding:"required"`

	// Version is the installed version string. Empty matches all
	// versions of the product.
	Version string `json:"version,omitempty"`
}

// ControlImplementation describes the reported state of one security
// control on an asset, keyed by control check ID in Asset.Controls.
type ControlImplementation string

const (
	ControlImplemented    ControlImplementation = "implemented"
	ControlPartial        ControlImplementation = "partial"
	ControlNotImplemented ControlImplementation = "not_implemented"
	ControlNotApplicable  ControlImplementation = "not_applicable"
)

// Asset is an identified database or service instance under assessment.
//
// # Fields
//
//   - ID: UUID assigned at registration.
//   - Criticality: Business criticality 1 (low) to 5 (critical).
//   - DataSensitivity: Classification of the data held.
//   - InternetExposed: True if reachable from outside the perimeter.
//   - Products: Installed products for vulnerability correlation.
//   - Controls: Reported implementation state per control check ID.
//   - LastAssessedAt: Completion time of the most recent risk assessment.
type Asset struct {
	ID              string                           `json:"id"`
	Name            string                           `json:"name"`
	Kind            AssetKind                        `json:"kind"`
	Environment     string                           `json:"environment,omitempty"`
	Criticality     int                              `json:"criticality"`
	DataSensitivity DataSensitivity                  `json:"data_sensitivity"`
	InternetExposed bool                             `json:"internet_exposed"`
	Products        []ProductRef                     `json:"products,omitempty"`
	Controls        map[string]ControlImplementation `json:"controls,omitempty"`
	LastAssessedAt  *time.Time                       `json:"last_assessed_at,omitempty"`
	CreatedAt       time.Time                        `json:"created_at"`
}
