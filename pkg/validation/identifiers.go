// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are used in
// database queries or file paths. Using these validators prevents injection
// attacks (SQL injection, path traversal).
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// cveIDPattern matches CVE identifiers as assigned by MITRE.
// Format: CVE-YYYY-NNNN where the sequence part is 4+ digits.
var cveIDPattern = regexp.MustCompile(`^CVE-\d{4}-\d{4,}$`)

// productPattern matches product names safe for use in SQL LIKE queries.
// Allows: lowercase letters, digits, dots, underscores, hyphens.
// Max length: 64 characters.
var productPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._\-]{0,63}$`)

// uuidPattern matches canonical RFC 4122 textual UUIDs.
var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ValidateCVEID validates a CVE identifier before it reaches the CVE mirror.
//
// Valid IDs look like CVE-2024-12345. The year must be 4 digits and the
// sequence number at least 4.
//
// Example:
//
//	if err := validation.ValidateCVEID(id); err != nil {
//	    return nil, fmt.Errorf("invalid cve id: %w", err)
//	}
//	// Safe to use in SQL query
func ValidateCVEID(id string) error {
	if id == "" {
		return fmt.Errorf("cve id cannot be empty")
	}
	if !cveIDPattern.MatchString(strings.ToUpper(id)) {
		return fmt.Errorf("invalid cve id format: %q (expected CVE-YYYY-NNNN)", id)
	}
	return nil
}

// ValidateProduct validates a product name used in vulnerability correlation.
//
// Valid products:
//   - 1-64 characters
//   - lowercase letters a-z, digits 0-9
//   - dots, underscores and hyphens after the first character
//
// Returns an error if the product name is invalid.
func ValidateProduct(product string) error {
	if product == "" {
		return fmt.Errorf("product cannot be empty")
	}
	if !productPattern.MatchString(product) {
		return fmt.Errorf("invalid product format: %q (must be 1-64 lowercase alphanumeric chars, dots, underscores, or hyphens)", product)
	}
	return nil
}

// ValidateAssetID validates an asset identifier used in store keys and queries.
// Asset IDs are canonical lowercase UUIDs.
func ValidateAssetID(id string) error {
	if id == "" {
		return fmt.Errorf("asset id cannot be empty")
	}
	if !uuidPattern.MatchString(strings.ToLower(id)) {
		return fmt.Errorf("invalid asset id: %q (must be a UUID)", id)
	}
	return nil
}

// ValidateProducts validates multiple product names.
// Returns an error listing all invalid products if any fail validation.
func ValidateProducts(products []string) error {
	var invalid []string
	for _, p := range products {
		if err := ValidateProduct(p); err != nil {
			invalid = append(invalid, p)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid products: %s", strings.Join(invalid, ", "))
	}
	return nil
}
