// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTriggeredAlert() *Alert {
	return &Alert{
		ID:          "al-1",
		AssetID:     "as-1",
		Level:       AlertWarning,
		Rule:        "score_delta",
		State:       AlertTriggered,
		TriggeredAt: time.Now(),
	}
}

func TestAlertLifecycle(t *testing.T) {
	now := time.Now()

	t.Run("acknowledge then resolve succeeds", func(t *testing.T) {
		a := newTriggeredAlert()

		require.NoError(t, a.Acknowledge("oncall", now))
		assert.Equal(t, AlertAcknowledged, a.State)
		assert.Equal(t, "oncall", a.AcknowledgedBy)
		require.NotNil(t, a.AcknowledgedAt)

		require.NoError(t, a.Resolve("oncall", now))
		assert.Equal(t, AlertResolved, a.State)
		require.NotNil(t, a.ResolvedAt)
	})

	t.Run("resolve without acknowledgment is rejected", func(t *testing.T) {
		a := newTriggeredAlert()

		err := a.Resolve("oncall", now)
		require.Error(t, err)

		var tErr *ErrInvalidTransition
		require.ErrorAs(t, err, &tErr)
		assert.Equal(t, AlertTriggered, tErr.From)
		assert.Equal(t, AlertResolved, tErr.To)
		assert.Equal(t, AlertTriggered, a.State)
	})

	t.Run("acknowledge is idempotent", func(t *testing.T) {
		a := newTriggeredAlert()
		require.NoError(t, a.Acknowledge("first", now))
		require.NoError(t, a.Acknowledge("second", now))
		assert.Equal(t, "first", a.AcknowledgedBy)
	})

	t.Run("resolved alert cannot be re-acknowledged", func(t *testing.T) {
		a := newTriggeredAlert()
		require.NoError(t, a.Acknowledge("oncall", now))
		require.NoError(t, a.Resolve("oncall", now))
		assert.Error(t, a.Acknowledge("late", now))
	})
}

func TestAlertLevelEscalation(t *testing.T) {
	assert.Equal(t, AlertCritical, AlertWarning.Escalated())
	assert.Equal(t, AlertEmergency, AlertCritical.Escalated())
	assert.Equal(t, AlertEmergency, AlertEmergency.Escalated())
	assert.True(t, AlertEmergency.Order() > AlertWarning.Order())
}
