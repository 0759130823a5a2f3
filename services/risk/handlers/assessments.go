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
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianRisk/pkg/validation"
	"github.com/AleutianAI/AleutianRisk/services/risk/storage"
)

const defaultAssessmentLimit = 50

type triggerAssessmentRequest struct {
	AssetID string `json:"asset_id" binding:"required,uuid"`
}

// TriggerAssessment scores one asset on demand and evaluates alert
// rules against the result. Responds 201 with the assessment.
func TriggerAssessment(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req triggerAssessmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx := c.Request.Context()

		asset, err := d.Store.GetAsset(ctx, req.AssetID)
		if err != nil {
			respondStoreError(c, d.Logger, err)
			return
		}

		prev, err := d.Store.LatestAssessment(ctx, asset.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			respondStoreError(c, d.Logger, err)
			return
		}

		ra, err := d.Engine.Assess(ctx, asset)
		if err != nil {
			if d.Metrics != nil {
				d.Metrics.RecordAssessmentError()
			}
			d.Logger.Error("assessment failed", "asset_id", asset.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "assessment failed"})
			return
		}
		if d.Metrics != nil {
			d.Metrics.RecordAssessment(string(ra.Tier), ra.AssetID, ra.Score,
				float64(ra.DurationMs)/1000)
		}

		if d.Alerts != nil {
			if _, err := d.Alerts.EvaluateAssessment(ctx, ra, prev); err != nil {
				d.Logger.Error("alert evaluation failed", "asset_id", asset.ID, "error", err)
			}
		}
		c.JSON(http.StatusCreated, ra)
	}
}

// ListAssessments returns assessment history for an asset, newest first.
//
// Query parameters:
//
//   - asset_id: required UUID.
//   - limit: optional, default 50.
func ListAssessments(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID := c.Query("asset_id")
		if err := validation.ValidateAssetID(assetID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		limit := defaultAssessmentLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 || parsed > 1000 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer between 1 and 1000"})
				return
			}
			limit = parsed
		}

		assessments, err := d.Store.ListAssessments(c.Request.Context(), assetID, limit)
		if err != nil {
			respondStoreError(c, d.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"assessments": assessments, "count": len(assessments)})
	}
}

// GetAssessment returns one assessment by ID.
func GetAssessment(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ra, err := d.Store.GetAssessment(c.Request.Context(), c.Param("assessmentId"))
		if err != nil {
			respondStoreError(c, d.Logger, err)
			return
		}
		c.JSON(http.StatusOK, ra)
	}
}
