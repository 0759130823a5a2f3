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

	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
	"github.com/AleutianAI/AleutianRisk/services/risk/storage"
)

// ListAlerts returns alerts newest first.
//
// Query parameters (all optional):
//
//   - asset_id: filter by asset.
//   - state: triggered, acknowledged, or resolved.
//   - level: warning, critical, or emergency.
func ListAlerts(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := storage.AlertFilter{
			AssetID: c.Query("asset_id"),
			State:   datatypes.AlertState(c.Query("state")),
			Level:   datatypes.AlertLevel(c.Query("level")),
		}
		alerts, err := d.Store.ListAlerts(c.Request.Context(), filter)
		if err != nil {
			respondStoreError(c, d.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
	}
}

// GetAlert returns one alert by ID.
func GetAlert(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		alert, err := d.Store.GetAlert(c.Request.Context(), c.Param("alertId"))
		if err != nil {
			respondStoreError(c, d.Logger, err)
			return
		}
		c.JSON(http.StatusOK, alert)
	}
}

type alertActionRequest struct {
	// By identifies the human taking the action.
	By string `json:"by" binding:"required,min=1,max=128"`
}

// AcknowledgeAlert records a human acknowledgment.
func AcknowledgeAlert(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req alertActionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		alert, err := d.Alerts.Acknowledge(c.Request.Context(), c.Param("alertId"), req.By)
		if err != nil {
			respondAlertError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, alert)
	}
}

// ResolveAlert closes an alert. An alert that was never acknowledged
// cannot be resolved; that conflict maps to 409.
func ResolveAlert(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req alertActionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		alert, err := d.Alerts.Resolve(c.Request.Context(), c.Param("alertId"), req.By)
		if err != nil {
			respondAlertError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, alert)
	}
}

// AlertsWebSocket upgrades to a websocket feed of alert events.
func AlertsWebSocket(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.Hub.Subscribe(c.Writer, c.Request); err != nil {
			d.Logger.Error("websocket upgrade failed", "error", err)
			// Upgrade failures already wrote a response.
		}
	}
}

func respondAlertError(c *gin.Context, d Deps, err error) {
	var badTransition *datatypes.ErrInvalidTransition
	switch {
	case errors.As(err, &badTransition):
		c.JSON(http.StatusConflict, gin.H{"error": badTransition.Error()})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		d.Logger.Error("alert operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
