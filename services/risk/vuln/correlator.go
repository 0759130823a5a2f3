// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vuln

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
)

// versionCore matches the leading dotted numeric segments of a version
// string, after an optional "v" prefix.
var versionCore = regexp.MustCompile(`^[vV]?(\d+(?:\.\d+)*)`)

// parseVersion splits a version into its numeric segments and reports
// whether a pre-release suffix ("-rc1", "-beta.2") trails the core.
// Digits inside a suffix never leak into the comparison.
func parseVersion(v string) ([]int, bool) {
	v = strings.TrimSpace(v)
	m := versionCore.FindStringSubmatch(v)
	if m == nil {
		return nil, false
	}
	parts := strings.Split(m[1], ".")
	segs := make([]int, len(parts))
	for i, p := range parts {
		segs[i], _ = strconv.Atoi(p)
	}
	return segs, len(m[0]) < len(v)
}

// compareVersions compares two dotted version strings numerically,
// segment by segment. Returns -1, 0, or 1. Missing segments compare
// as zero; a pre-release suffix orders below the bare release, so
// "1.2.3-rc1" < "1.2.3".
func compareVersions(a, b string) int {
	as, apre := parseVersion(a)
	bs, bpre := parseVersion(b)

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	if apre != bpre {
		if apre {
			return -1
		}
		return 1
	}
	return 0
}

// versionAffected reports whether an installed version falls inside a
// CVE's affected range.
//
// Matching rules, in order:
//   - exact CPE version (not "*" or "-") must equal the installed version
//   - a start bound must be <= installed
//   - an end bound must be > installed (or >= when inclusive)
//   - a range row with no bounds ("*" version) matches everything
func versionAffected(installed string, pc productCVE) bool {
	installed = strings.TrimSpace(installed)
	if installed == "" || installed == "-" {
		// Unknown installed version: treat the product match as
		// affected so the finding surfaces for review.
		return true
	}

	if pc.Version != "" && pc.Version != "*" && pc.Version != "-" {
		return compareVersions(installed, pc.Version) == 0
	}

	if pc.VersionStart != "" && compareVersions(installed, pc.VersionStart) < 0 {
		return false
	}
	if pc.VersionEnd != "" {
		cmp := compareVersions(installed, pc.VersionEnd)
		if pc.EndInclusive {
			return cmp <= 0
		}
		return cmp < 0
	}
	return true
}

// CorrelateAsset matches the mirror against an asset's product list and
// persists findings. Severity never downgrades on re-correlation (see
// Mirror.SaveFinding).
//
// # Outputs
//
//   - int: Number of findings saved (new or refreshed).
//   - error: Non-nil on mirror failure; individual product validation
//     failures are skipped and logged by the caller via the summary.
func (s *Service) CorrelateAsset(ctx context.Context, asset *datatypes.Asset) (int, error) {
	if asset == nil {
		return 0, fmt.Errorf("asset must not be nil")
	}

	now := time.Now().UTC()
	saved := 0
	for _, ref := range asset.Products {
		matches, err := s.mirror.cvesForProduct(ctx, ref.Product)
		if err != nil {
			return saved, fmt.Errorf("correlate %s: %w", ref.Product, err)
		}

		// Deduplicate per CVE: a CVE can carry several ranges for the
		// same product; one affected range is enough.
		seen := make(map[string]bool, len(matches))
		for _, pc := range matches {
			if seen[pc.CVEID] || !versionAffected(ref.Version, pc) {
				continue
			}
			seen[pc.CVEID] = true

			severity := datatypes.ParseSeverity(pc.Severity)
			if severity == datatypes.SeverityNone && pc.CVSS > 0 {
				severity = datatypes.SeverityFromCVSS(pc.CVSS)
			}

			finding := &datatypes.Vulnerability{
				CVEID:       pc.CVEID,
				AssetID:     asset.ID,
				Product:     ref.Product,
				Version:     ref.Version,
				CVSS:        pc.CVSS,
				Severity:    severity,
				Description: pc.Description,
				Status:      datatypes.VulnOpen,
				Published:   pc.Published,
				Modified:    pc.Modified,
				DetectedAt:  now,
			}
			if err := s.mirror.SaveFinding(ctx, finding); err != nil {
				return saved, err
			}
			saved++
		}
	}
	if saved > 0 {
		s.refreshOpenFindings(ctx)
	}
	return saved, nil
}
