// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestAssetCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	asset := &datatypes.Asset{
		ID:              "0d7e9f1c-9b35-4c86-b7ea-1a8276d3f001",
		Name:            "orders-db",
		Kind:            datatypes.AssetPostgres,
		Criticality:     4,
		DataSensitivity: datatypes.SensitivityConfidential,
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, store.PutAsset(ctx, asset))

	got, err := store.GetAsset(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, "orders-db", got.Name)
	assert.Equal(t, datatypes.AssetPostgres, got.Kind)

	_, err = store.GetAsset(ctx, "ffffffff-ffff-ffff-ffff-ffffffffffff")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.DeleteAsset(ctx, asset.ID))
	_, err = store.GetAsset(ctx, asset.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.DeleteAsset(ctx, asset.ID), ErrNotFound)
}

func TestListAssetsSorted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, name := range []string{"zeta-db", "alpha-db", "mid-db"} {
		require.NoError(t, store.PutAsset(ctx, &datatypes.Asset{
			ID:   fmt.Sprintf("00000000-0000-0000-0000-00000000000%d", i),
			Name: name,
		}))
	}

	assets, err := store.ListAssets(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 3)
	assert.Equal(t, "alpha-db", assets[0].Name)
	assert.Equal(t, "zeta-db", assets[2].Name)
}

func TestAssessmentHistoryOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	assetID := "0d7e9f1c-9b35-4c86-b7ea-1a8276d3f001"

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ra := &datatypes.RiskAssessment{
			ID:          fmt.Sprintf("ra-%d", i),
			AssetID:     assetID,
			Score:       10 + i,
			Tier:        datatypes.TierForScore(10 + i),
			CompletedAt: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, store.PutAssessment(ctx, ra))
	}

	t.Run("list is newest first with limit", func(t *testing.T) {
		list, err := store.ListAssessments(ctx, assetID, 3)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "ra-4", list[0].ID)
		assert.Equal(t, "ra-2", list[2].ID)
	})

	t.Run("latest returns most recent", func(t *testing.T) {
		latest, err := store.LatestAssessment(ctx, assetID)
		require.NoError(t, err)
		assert.Equal(t, "ra-4", latest.ID)
		assert.Equal(t, 14, latest.Score)
	})

	t.Run("latest for unknown asset is ErrNotFound", func(t *testing.T) {
		_, err := store.LatestAssessment(ctx, "ffffffff-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("since cutoff returns oldest first", func(t *testing.T) {
		since, err := store.AssessmentsSince(ctx, assetID, base.Add(2*time.Hour))
		require.NoError(t, err)
		require.Len(t, since, 3)
		assert.Equal(t, "ra-2", since[0].ID)
		assert.Equal(t, "ra-4", since[2].ID)
	})

	t.Run("get by id", func(t *testing.T) {
		ra, err := store.GetAssessment(ctx, "ra-3")
		require.NoError(t, err)
		assert.Equal(t, 13, ra.Score)
	})
}

func TestAlertFiltering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	alerts := []*datatypes.Alert{
		{ID: "a-1", AssetID: "as-1", Level: datatypes.AlertWarning, State: datatypes.AlertTriggered, TriggeredAt: now},
		{ID: "a-2", AssetID: "as-1", Level: datatypes.AlertCritical, State: datatypes.AlertAcknowledged, TriggeredAt: now.Add(time.Minute)},
		{ID: "a-3", AssetID: "as-2", Level: datatypes.AlertWarning, State: datatypes.AlertTriggered, TriggeredAt: now.Add(2 * time.Minute)},
	}
	for _, a := range alerts {
		require.NoError(t, store.PutAlert(ctx, a))
	}

	all, err := store.ListAlerts(ctx, AlertFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first
	assert.Equal(t, "a-3", all[0].ID)

	triggered, err := store.ListAlerts(ctx, AlertFilter{State: datatypes.AlertTriggered})
	require.NoError(t, err)
	assert.Len(t, triggered, 2)

	asset1Critical, err := store.ListAlerts(ctx, AlertFilter{AssetID: "as-1", Level: datatypes.AlertCritical})
	require.NoError(t, err)
	require.Len(t, asset1Critical, 1)
	assert.Equal(t, "a-2", asset1Critical[0].ID)
}

func TestTouchAssetAssessed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	asset := &datatypes.Asset{ID: "0d7e9f1c-9b35-4c86-b7ea-1a8276d3f001", Name: "db"}
	require.NoError(t, store.PutAsset(ctx, asset))

	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.TouchAssetAssessed(ctx, asset.ID, at))

	got, err := store.GetAsset(ctx, asset.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastAssessedAt)
	assert.True(t, got.LastAssessedAt.Equal(at))
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.SyncWrites = false

	db, err := Open(cfg)
	require.NoError(t, err)
	store := NewStore(db)
	require.NoError(t, store.PutAsset(ctx, &datatypes.Asset{
		ID: "0d7e9f1c-9b35-4c86-b7ea-1a8276d3f001", Name: "persisted",
	}))
	require.NoError(t, db.Close())

	db2, err := Open(cfg)
	require.NoError(t, err)
	defer db2.Close()

	got, err := NewStore(db2).GetAsset(ctx, "0d7e9f1c-9b35-4c86-b7ea-1a8276d3f001")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Name)
}
