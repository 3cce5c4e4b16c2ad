// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package countdown

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all countdown routes with the router.
//
// Description:
//
//	Registers all /v1/countdown/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Search Endpoints:
//
//	POST   /v1/countdown/searches - Start a search
//	GET    /v1/countdown/searches - List searches
//	GET    /v1/countdown/searches/:id - Get a search
//	DELETE /v1/countdown/searches/:id - Cancel a search
//	GET    /v1/countdown/searches/:id/stream - Websocket progress stream
//
// History Endpoints:
//
//	GET    /v1/countdown/history - List finished searches
//	GET    /v1/countdown/history/:id - Get one item
//	DELETE /v1/countdown/history/:id - Delete one item
//
// Other Endpoints:
//
//	GET /v1/countdown/operators - Available operators
//	GET /v1/countdown/health - Health check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	cd := rg.Group("/countdown")
	{
		cd.POST("/searches", handlers.HandleStartSearch)
		cd.GET("/searches", handlers.HandleListSearches)
		cd.GET("/searches/:id", handlers.HandleGetSearch)
		cd.DELETE("/searches/:id", handlers.HandleCancelSearch)
		cd.GET("/searches/:id/stream", handlers.HandleStream)

		cd.GET("/history", handlers.HandleListHistory)
		cd.GET("/history/:id", handlers.HandleGetHistory)
		cd.DELETE("/history/:id", handlers.HandleDeleteHistory)

		cd.GET("/operators", handlers.HandleOperators)
		cd.GET("/health", handlers.HandleHealth)
	}
}
