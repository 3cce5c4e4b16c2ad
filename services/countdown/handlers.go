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
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/countdown/services/countdown/engine"
	"github.com/AleutianAI/countdown/services/countdown/history"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Handlers contains the HTTP handlers for the countdown service.
type Handlers struct {
	svc         *Service
	streamRate  rate.Limit
	streamBurst int
}

// NewHandlers creates handlers over svc. Stream throttling comes from the
// service's Server config.
func NewHandlers(svc *Service) *Handlers {
	cfg := svc.Config().Server
	h := &Handlers{
		svc:         svc,
		streamRate:  rate.Limit(cfg.StreamRate),
		streamBurst: cfg.StreamBurst,
	}
	if h.streamRate <= 0 {
		h.streamRate = rate.Inf
	}
	if h.streamBurst < 1 {
		h.streamBurst = 1
	}
	return h
}

// ErrorResponse is returned for all error conditions.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`

	// Details contains additional error information.
	Details string `json:"details,omitempty"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	History bool   `json:"history"`
}

// OperatorResponse describes one operator.
type OperatorResponse struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Commutative bool   `json:"commutative"`
	Default     bool   `json:"default"`
}

// ListSearchesResponse is returned by GET /searches.
type ListSearchesResponse struct {
	Searches []JobSnapshot `json:"searches"`
}

// ListHistoryResponse is returned by GET /history.
type ListHistoryResponse struct {
	Items []history.Item `json:"items"`
}

// HandleStartSearch handles POST /v1/countdown/searches.
//
// Description:
//
//	Starts a search. With ?wait=true the handler blocks until the search
//	settles or the client goes away, and returns the latest snapshot.
//
// Request Body:
//
//	SolveRequest
//
// Response:
//
//	202 Accepted: JobSnapshot of the running search
//	200 OK: JobSnapshot of the settled search (wait=true)
//	400 Bad Request: Validation error
//	503 Service Unavailable: Service closed or at capacity
func (h *Handlers) HandleStartSearch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleStartSearch")

	var req SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	job, err := h.svc.Start(c.Request.Context(), req)
	if err != nil {
		logger.Warn("Search rejected", "error", err)
		writeError(c, err)
		return
	}
	logger.Info("Search started", "search_id", job.ID, "target", job.Target)

	if c.Query("wait") != "true" {
		c.JSON(http.StatusAccepted, job.Snapshot())
		return
	}

	select {
	case <-job.Done():
		c.JSON(http.StatusOK, job.Snapshot())
	case <-c.Request.Context().Done():
		c.JSON(http.StatusAccepted, job.Snapshot())
	}
}

// HandleListSearches handles GET /v1/countdown/searches.
//
// Response:
//
//	200 OK: ListSearchesResponse, newest first
func (h *Handlers) HandleListSearches(c *gin.Context) {
	getOrCreateRequestID(c)
	c.JSON(http.StatusOK, ListSearchesResponse{Searches: h.svc.List()})
}

// HandleGetSearch handles GET /v1/countdown/searches/:id.
//
// Response:
//
//	200 OK: JobSnapshot
//	404 Not Found: Unknown search ID
func (h *Handlers) HandleGetSearch(c *gin.Context) {
	getOrCreateRequestID(c)

	job, err := h.svc.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job.Snapshot())
}

// HandleCancelSearch handles DELETE /v1/countdown/searches/:id.
//
// Description:
//
//	Requests cancellation. The search observes it at its next slice, so the
//	returned snapshot may still be running.
//
// Response:
//
//	202 Accepted: JobSnapshot
//	404 Not Found: Unknown search ID
func (h *Handlers) HandleCancelSearch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCancelSearch")

	job, err := h.svc.Cancel(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	logger.Info("Search cancel requested", "search_id", job.ID)
	c.JSON(http.StatusAccepted, job.Snapshot())
}

// HandleListHistory handles GET /v1/countdown/history.
//
// Query Parameters:
//
//	limit - Maximum items to return (default 50, 0 for all)
//
// Response:
//
//	200 OK: ListHistoryResponse, newest first
//	400 Bad Request: Invalid limit
//	503 Service Unavailable: History disabled
func (h *Handlers) HandleListHistory(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListHistory")

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "limit must be a non-negative integer",
				Code:  "INVALID_LIMIT",
			})
			return
		}
		limit = n
	}

	items, err := h.svc.History(c.Request.Context(), limit)
	if err != nil {
		logger.Error("List history failed", "error", err)
		writeError(c, err)
		return
	}
	if items == nil {
		items = []history.Item{}
	}
	c.JSON(http.StatusOK, ListHistoryResponse{Items: items})
}

// HandleGetHistory handles GET /v1/countdown/history/:id.
//
// Response:
//
//	200 OK: history.Item
//	404 Not Found: Unknown item ID
//	503 Service Unavailable: History disabled
func (h *Handlers) HandleGetHistory(c *gin.Context) {
	getOrCreateRequestID(c)

	item, err := h.svc.HistoryItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// HandleDeleteHistory handles DELETE /v1/countdown/history/:id.
//
// Response:
//
//	204 No Content: Deleted
//	404 Not Found: Unknown item ID
//	503 Service Unavailable: History disabled
func (h *Handlers) HandleDeleteHistory(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDeleteHistory")

	if err := h.svc.DeleteHistory(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	logger.Info("History item deleted", "id", c.Param("id"))
	c.Status(http.StatusNoContent)
}

// HandleOperators handles GET /v1/countdown/operators.
//
// Response:
//
//	200 OK: []OperatorResponse in registry order
func (h *Handlers) HandleOperators(c *gin.Context) {
	defaults := make(map[engine.Operator]bool)
	for _, op := range DefaultOperators() {
		defaults[op] = true
	}

	ops := engine.AllOperators()
	out := make([]OperatorResponse, 0, len(ops))
	for _, op := range ops {
		info, _ := engine.Lookup(op)
		out = append(out, OperatorResponse{
			Name:        info.Name,
			Symbol:      info.Label,
			Commutative: info.Commutative,
			Default:     defaults[op],
		})
	}
	c.JSON(http.StatusOK, out)
}

// HandleHealth handles GET /v1/countdown/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: Version,
		History: h.svc.HistoryEnabled(),
	})
}

// writeError maps service errors to status codes.
func writeError(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError
	errCode := "INTERNAL_ERROR"

	if errors.Is(err, ErrInvalidRequest) {
		statusCode = http.StatusBadRequest
		errCode = "INVALID_REQUEST"
	} else if errors.Is(err, ErrSearchNotFound) {
		statusCode = http.StatusNotFound
		errCode = "SEARCH_NOT_FOUND"
	} else if errors.Is(err, history.ErrNotFound) {
		statusCode = http.StatusNotFound
		errCode = "HISTORY_NOT_FOUND"
	} else if errors.Is(err, ErrServiceClosed) {
		statusCode = http.StatusServiceUnavailable
		errCode = "SERVICE_CLOSED"
	} else if errors.Is(err, ErrTooManySearches) {
		statusCode = http.StatusServiceUnavailable
		errCode = "AT_CAPACITY"
	} else if errors.Is(err, ErrHistoryDisabled) {
		statusCode = http.StatusServiceUnavailable
		errCode = "HISTORY_DISABLED"
	}

	c.JSON(statusCode, ErrorResponse{
		Error: err.Error(),
		Code:  errCode,
	})
}

// getOrCreateRequestID extracts or generates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
