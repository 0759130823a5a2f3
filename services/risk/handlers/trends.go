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
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianRisk/pkg/validation"
	"github.com/AleutianAI/AleutianRisk/services/risk/trend"
)

// GetTrend returns the risk trajectory for one asset. An optional
// horizon query parameter (days, 1-90) adjusts the forecast window.
func GetTrend(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID := c.Param("assetId")
		if err := validation.ValidateAssetID(assetID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var opts *trend.Options
		if raw := c.Query("horizon"); raw != "" {
			days, err := strconv.Atoi(raw)
			if err != nil || days < 1 || days > 90 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "horizon must be between 1 and 90 days"})
				return
			}
			o := trend.DefaultOptions()
			o.ForecastHorizon = time.Duration(days) * 24 * time.Hour
			opts = &o
		}

		result, err := d.Trends.AnalyzeAsset(c.Request.Context(), assetID, opts)
		if err != nil {
			d.Logger.Error("trend analysis failed", "asset_id", assetID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// ListTrends returns trajectories for all assets with history, sorted
// by growth rate descending.
func ListTrends(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		trends, err := d.Trends.AnalyzeAll(c.Request.Context(), nil)
		if err != nil {
			d.Logger.Error("trend analysis failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"trends": trends, "count": len(trends)})
	}
}
