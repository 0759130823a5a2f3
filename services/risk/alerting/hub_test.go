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
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(slog.Default())
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, hub.Subscribe(w, r))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 },
		time.Second, 10*time.Millisecond)

	alert := &datatypes.Alert{
		ID:      "alert-1",
		AssetID: testAssetID,
		Level:   datatypes.AlertCritical,
		Rule:    RuleTierCritical,
		State:   datatypes.AlertTriggered,
	}
	hub.Publish("triggered", alert)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "triggered", event.Event)
	require.NotNil(t, event.Alert)
	assert.Equal(t, "alert-1", event.Alert.ID)
}

func TestHubBroadcastsFromManyGoroutines(t *testing.T) {
	hub := NewHub(slog.Default())
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, hub.Subscribe(w, r))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 },
		time.Second, 10*time.Millisecond)

	// One publisher per scheduler worker, all firing at once.
	const publishers = 50
	received := make(chan int, 1)
	go func() {
		n := 0
		for n < publishers {
			conn.SetReadDeadline(time.Now().Add(3 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
			n++
		}
		received <- n
	}()

	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hub.Publish("triggered", &datatypes.Alert{
				ID:      fmt.Sprintf("alert-%d", i),
				AssetID: testAssetID,
				Level:   datatypes.AlertWarning,
				State:   datatypes.AlertTriggered,
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, publishers, <-received)
	assert.Equal(t, 1, hub.SubscriberCount())
}

func TestHubDropsClosedSubscribers(t *testing.T) {
	hub := NewHub(slog.Default())
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, hub.Subscribe(w, r))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 0 },
		time.Second, 10*time.Millisecond)

	// Publishing with no subscribers is a no-op.
	hub.Publish("resolved", &datatypes.Alert{ID: "alert-2"})
}
