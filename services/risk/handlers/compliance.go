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

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianRisk/pkg/validation"
	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
	"github.com/AleutianAI/AleutianRisk/services/risk/storage"
)

// GetCompliance evaluates framework compliance for an asset from its
// current control posture and latest assessment.
//
// Query parameters:
//
//   - asset_id: required UUID.
//   - framework: optional; evaluates a single framework when given.
func GetCompliance(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID := c.Query("asset_id")
		if err := validation.ValidateAssetID(assetID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx := c.Request.Context()

		asset, err := d.Store.GetAsset(ctx, assetID)
		if err != nil {
			respondStoreError(c, d.Logger, err)
			return
		}

		controlAssessments, _ := d.Controls.AssessAsset(asset)

		latest, err := d.Store.LatestAssessment(ctx, assetID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			respondStoreError(c, d.Logger, err)
			return
		}

		if raw := c.Query("framework"); raw != "" {
			result, ok := d.Compliance.EvaluateFramework(assetID, datatypes.Framework(raw), controlAssessments, latest)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown framework: " + raw})
				return
			}
			c.JSON(http.StatusOK, result)
			return
		}

		results := d.Compliance.Evaluate(assetID, controlAssessments, latest)
		c.JSON(http.StatusOK, gin.H{"compliance": results, "count": len(results)})
	}
}

// ListControlAssessments returns the per-category control effectiveness
// for an asset.
func ListControlAssessments(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID := c.Query("asset_id")
		if err := validation.ValidateAssetID(assetID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		asset, err := d.Store.GetAsset(c.Request.Context(), assetID)
		if err != nil {
			respondStoreError(c, d.Logger, err)
			return
		}

		assessments, summary := d.Controls.AssessAsset(asset)
		c.JSON(http.StatusOK, gin.H{"controls": assessments, "summary": summary})
	}
}
