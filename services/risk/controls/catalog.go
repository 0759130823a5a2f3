// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package controls assesses the security control posture of assets
// against a weighted control catalog. The baseline catalog ships
// embedded in the binary; deployments can layer an override file on
// top and have it hot-reloaded.
package controls

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianRisk/services/risk/controls/catalog"
)

// Check is one assessable control within a category.
type Check struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	Weight int    `yaml:"weight"`
}

// Category groups related checks. Effectiveness is computed per
// category from the weighted credit of its checks.
type Category struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Checks      []Check `yaml:"checks"`
}

// Catalog is the full control catalog.
type Catalog struct {
	Categories []Category `yaml:"categories"`
}

// LoadEmbedded parses the catalog baked into the binary.
//
// # Description
//
// This is the default catalog every deployment starts from. It is
// validated at load time, so a broken embedded catalog fails fast at
// startup rather than producing silent zero scores.
func LoadEmbedded() (*Catalog, error) {
	return Parse(catalog.ControlCatalog)
}

// LoadFile parses a catalog override from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse unmarshals and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse control catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid control catalog: %w", err)
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("catalog has no categories")
	}
	seen := make(map[string]string)
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("category with empty name")
		}
		if len(cat.Checks) == 0 {
			return fmt.Errorf("category %q has no checks", cat.Name)
		}
		for _, chk := range cat.Checks {
			if chk.ID == "" {
				return fmt.Errorf("category %q has a check with empty id", cat.Name)
			}
			if prev, dup := seen[chk.ID]; dup {
				return fmt.Errorf("check id %q duplicated across %q and %q", chk.ID, prev, cat.Name)
			}
			seen[chk.ID] = cat.Name
			if chk.Weight <= 0 {
				return fmt.Errorf("check %q has non-positive weight %d", chk.ID, chk.Weight)
			}
		}
	}
	return nil
}

// CheckCount returns the total number of checks across all categories.
func (c *Catalog) CheckCount() int {
	n := 0
	for _, cat := range c.Categories {
		n += len(cat.Checks)
	}
	return n
}
