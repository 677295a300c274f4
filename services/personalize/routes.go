// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package personalize

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all personalization routes with the router.
//
// Description:
//
//	Registers all /v1/personalize/* endpoints with the given Gin router
//	group. The router group should already have any required middleware
//	applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/personalize/recommendations - Rank tools for a context
//	POST /v1/personalize/events - Ingest an interaction event
//	POST /v1/personalize/generations/:id/result - Record a generation outcome
//	POST /v1/personalize/ratings - Attach a 1-5 user rating
//
//	POST /v1/personalize/experiments - Create an experiment
//	POST /v1/personalize/experiments/:id/start - Start an experiment
//	POST /v1/personalize/experiments/:id/stop - Stop an experiment
//	POST /v1/personalize/experiments/:id/results - Record an exposure outcome
//	GET  /v1/personalize/experiments/:id/variant - Resolve the caller's variant
//	GET  /v1/personalize/experiments/:id/analysis - Statistical analysis
//
//	POST /v1/personalize/quality/assess - Assess artifact quality
//	GET  /v1/personalize/quality/report/:tool - Rolling per-tool summary
//
//	POST /v1/personalize/monitor/performance - Record model performance
//	POST /v1/personalize/monitor/drift - Check a feature for drift
//
//	GET  /v1/personalize/health - Health check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	p := rg.Group("/personalize")
	{
		// Recommendation serving
		p.POST("/recommendations", handlers.HandleRecommendations)

		// Fire-and-forget ingestion
		p.POST("/events", handlers.HandleEvent)
		p.POST("/generations/:id/result", handlers.HandleGenerationResult)
		p.POST("/ratings", handlers.HandleRating)

		// Experiments
		experiments := p.Group("/experiments")
		{
			experiments.POST("", handlers.HandleCreateExperiment)
			experiments.POST("/:id/start", handlers.HandleStartExperiment)
			experiments.POST("/:id/stop", handlers.HandleStopExperiment)
			experiments.POST("/:id/results", handlers.HandleTestResult)
			experiments.GET("/:id/variant", handlers.HandleUserVariant)
			experiments.GET("/:id/analysis", handlers.HandleAnalysis)
		}

		// Quality assessment
		quality := p.Group("/quality")
		{
			quality.POST("/assess", handlers.HandleQualityAssess)
			quality.GET("/report/:tool", handlers.HandleQualityReport)
		}

		// Monitoring
		monitoring := p.Group("/monitor")
		{
			monitoring.POST("/performance", handlers.HandleModelPerformance)
			monitoring.POST("/drift", handlers.HandleDrift)
		}

		// Health
		p.GET("/health", handlers.HandleHealth)
	}
}
