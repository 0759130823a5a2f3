// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package alerting

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
)

const (
	writeTimeout = 5 * time.Second

	// sendBuffer absorbs event bursts from a full assessment sweep
	// before a subscriber counts as too slow to keep.
	sendBuffer = 32
)

// Event is the wire format pushed to websocket subscribers.
type Event struct {
	Event string           `json:"event"`
	Alert *datatypes.Alert `json:"alert"`
	At    time.Time        `json:"at"`
}

// subscriber pairs a connection with its outbound queue. The queue's
// single drain goroutine is the only writer on the connection; the
// websocket library does not allow concurrent writers.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans alert events out to websocket subscribers.
//
// # Thread Safety
//
// Safe for concurrent use. Publish may be called from any number of
// goroutines; writes to each connection are serialized through that
// subscriber's queue. A slow or dead subscriber is dropped rather
// than allowed to block the broadcast path.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Auth happens in middleware before the upgrade.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*subscriber]struct{}),
	}
}

// Subscribe upgrades the connection and registers it for events.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[sub] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("alert subscriber connected", "subscribers", n)

	go h.writeLoop(sub)
	go h.readLoop(sub)
	return nil
}

// writeLoop drains the subscriber queue onto the connection. It is the
// only goroutine that touches the connection's write side.
func (h *Hub) writeLoop(sub *subscriber) {
	defer sub.conn.Close()
	for payload := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.drop(sub)
			return
		}
	}
}

// readLoop discards inbound frames so client close frames are
// processed.
func (h *Hub) readLoop(sub *subscriber) {
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			h.drop(sub)
			return
		}
	}
}

// Publish implements Notifier by broadcasting the event to all
// subscribers. Enqueueing happens under the lock, so no send can race
// a queue close in drop.
func (h *Hub) Publish(event string, alert *datatypes.Alert) {
	payload, err := json.Marshal(Event{Event: event, Alert: alert, At: time.Now().UTC()})
	if err != nil {
		h.logger.Error("marshal alert event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.clients {
		select {
		case sub.send <- payload:
		default:
			// Full queue: the subscriber is not keeping up.
			delete(h.clients, sub)
			close(sub.send)
			h.logger.Debug("dropped slow alert subscriber")
		}
	}
}

// SubscriberCount reports the current number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.clients {
		close(sub.send)
	}
	h.clients = make(map[*subscriber]struct{})
}

// drop unregisters a subscriber. Closing the queue ends its writeLoop,
// which closes the connection. Safe to call more than once.
func (h *Hub) drop(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[sub]; ok {
		delete(h.clients, sub)
		close(sub.send)
	}
}
