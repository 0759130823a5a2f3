// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianRisk/pkg/validation"
	"github.com/AleutianAI/AleutianRisk/services/risk/storage"
)

// ListFindings returns correlated findings for an asset, open first,
// highest CVSS first.
func ListFindings(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID := c.Query("asset_id")
		if err := validation.ValidateAssetID(assetID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		findings, err := d.Vulns.Mirror().FindingsForAsset(c.Request.Context(), assetID)
		if err != nil {
			d.Logger.Error("list findings failed", "asset_id", assetID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"vulnerabilities": findings, "count": len(findings)})
	}
}

// SyncCVEs triggers a CVE mirror sync against the upstream database.
func SyncCVEs(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := d.Vulns.Sync(c.Request.Context())
		if err != nil {
			if d.Metrics != nil {
				d.Metrics.RecordVulnSync(0, false)
			}
			d.Logger.Error("cve sync failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "sync failed"})
			return
		}
		if d.Metrics != nil {
			d.Metrics.RecordVulnSync(result.RecordsStored, true)
		}
		c.JSON(http.StatusOK, result)
	}
}

// BackfillProduct pulls CVEs for one product into the mirror without
// waiting for the next incremental sync.
func BackfillProduct(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		product := c.Query("product")
		if err := validation.ValidateProduct(product); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := d.Vulns.BackfillProduct(c.Request.Context(), product)
		if err != nil {
			d.Logger.Error("cve backfill failed", "product", product, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "backfill failed"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// MitigateFinding closes one finding on one asset.
func MitigateFinding(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID := c.Param("assetId")
		cveID := strings.ToUpper(c.Param("cveId"))
		if err := validation.ValidateAssetID(assetID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := validation.ValidateCVEID(cveID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := d.Vulns.MitigateFinding(c.Request.Context(), assetID, cveID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "finding not found"})
				return
			}
			d.Logger.Error("mitigate finding failed",
				"asset_id", assetID, "cve_id", cveID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		d.Logger.Info("finding mitigated", "asset_id", assetID, "cve_id", cveID)
		c.JSON(http.StatusOK, gin.H{"asset_id": assetID, "cve_id": cveID, "status": "mitigated"})
	}
}
