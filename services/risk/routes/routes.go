// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianRisk/services/risk/handlers"
	"github.com/AleutianAI/AleutianRisk/services/risk/middleware"
)

// SetupRoutes registers the full API surface on the router.
func SetupRoutes(router *gin.Engine, d handlers.Deps, provider middleware.AuthProvider) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1/risk")
	v1.Use(middleware.AuthMiddleware(provider))
	{
		assets := v1.Group("/assets")
		{
			assets.POST("", handlers.CreateAsset(d))
			assets.GET("", handlers.ListAssets(d))
			assets.GET("/:assetId", handlers.GetAsset(d))
			assets.PUT("/:assetId", handlers.UpdateAsset(d))
			assets.DELETE("/:assetId", handlers.DeleteAsset(d))
		}

		assessments := v1.Group("/assessments")
		{
			assessments.POST("", handlers.TriggerAssessment(d))
			assessments.GET("", handlers.ListAssessments(d))
			assessments.GET("/:assessmentId", handlers.GetAssessment(d))
		}

		vulns := v1.Group("/vulnerabilities")
		{
			vulns.GET("", handlers.ListFindings(d))
			vulns.POST("/sync", handlers.SyncCVEs(d))
			vulns.POST("/backfill", handlers.BackfillProduct(d))
			vulns.POST("/:assetId/:cveId/mitigate", handlers.MitigateFinding(d))
		}

		alerts := v1.Group("/alerts")
		{
			alerts.GET("", handlers.ListAlerts(d))
			alerts.GET("/ws", handlers.AlertsWebSocket(d))
			alerts.GET("/:alertId", handlers.GetAlert(d))
			alerts.POST("/:alertId/acknowledge", handlers.AcknowledgeAlert(d))
			alerts.POST("/:alertId/resolve", handlers.ResolveAlert(d))
		}

		v1.GET("/compliance", handlers.GetCompliance(d))
		v1.GET("/controls", handlers.ListControlAssessments(d))

		trends := v1.Group("/trends")
		{
			trends.GET("", handlers.ListTrends(d))
			trends.GET("/:assetId", handlers.GetTrend(d))
		}
	}
}
