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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// closeWriteWait bounds the final close frame.
const closeWriteWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamRequest is a client message on a progress stream.
type StreamRequest struct {
	// Action is "cancel" to cancel the streamed search.
	Action string `json:"action"`
}

func sendJSON(ws *websocket.Conn, v interface{}) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleStream handles GET /v1/countdown/searches/:id/stream.
//
// Description:
//
//	Upgrades to a websocket and streams the search's events as JSON. The
//	first frame is a snapshot event; progress frames are throttled to the
//	configured stream rate; solution and terminal frames are always sent.
//	After the terminal frame the server closes the connection normally.
//	Sending {"action":"cancel"} cancels the search.
//
// Response:
//
//	101 Switching Protocols: Event stream
//	404 Not Found: Unknown search ID (before upgrade)
func (h *Handlers) HandleStream(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleStream")

	job, err := h.svc.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()

	streamClients.Inc()
	defer streamClients.Dec()
	logger.Info("Stream client connected", "search_id", job.ID)

	events, unsubscribe := job.Subscribe()
	defer unsubscribe()

	snap := job.Snapshot()
	if err := sendJSON(ws, Event{
		Type:      EventSnapshot,
		SearchID:  job.ID,
		State:     snap.State,
		Progress:  snap.Progress,
		Percent:   snap.Percent,
		Depth:     snap.Depth,
		Count:     snap.Count,
		Solutions: snap.Solutions,
	}); err != nil {
		return
	}

	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			var req StreamRequest
			if err := ws.ReadJSON(&req); err != nil {
				return
			}
			if req.Action == "cancel" {
				logger.Info("Stream client cancelled search", "search_id", job.ID)
				job.search.Cancel()
			}
		}
	}()

	limiter := rate.NewLimiter(h.streamRate, h.streamBurst)
	for {
		select {
		case <-disconnected:
			logger.Info("Stream client disconnected", "search_id", job.ID)
			return

		case ev, ok := <-events:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "search finished")
				_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
				return
			}
			if ev.Type == EventProgress && !limiter.Allow() {
				continue
			}
			if err := sendJSON(ws, ev); err != nil {
				return
			}
		}
	}
}
