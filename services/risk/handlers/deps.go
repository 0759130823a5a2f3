// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP handlers for the risk API.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianRisk/services/risk/alerting"
	"github.com/AleutianAI/AleutianRisk/services/risk/compliance"
	"github.com/AleutianAI/AleutianRisk/services/risk/controls"
	"github.com/AleutianAI/AleutianRisk/services/risk/engine"
	"github.com/AleutianAI/AleutianRisk/services/risk/observability"
	"github.com/AleutianAI/AleutianRisk/services/risk/storage"
	"github.com/AleutianAI/AleutianRisk/services/risk/trend"
	"github.com/AleutianAI/AleutianRisk/services/risk/vuln"
)

// Deps bundles the services the handlers operate on.
type Deps struct {
	Store      *storage.Store
	Engine     *engine.Engine
	Vulns      *vuln.Service
	Controls   *controls.Assessor
	Compliance *compliance.Engine
	Alerts     *alerting.Manager
	Hub        *alerting.Hub
	Trends     *trend.Analyzer
	Metrics    *observability.RiskMetrics
	Logger     *slog.Logger
}

// notFound maps storage misses to 404 and everything else to 500.
func respondStoreError(c *gin.Context, logger *slog.Logger, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	logger.Error("storage operation failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
