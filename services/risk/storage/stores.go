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
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
)

// Key prefixes. Assessment keys embed a zero-padded unix-nano timestamp
// so that a prefix scan per asset yields chronological order.
const (
	prefixAsset      = "asset/"
	prefixAssessment = "ra/"
	prefixAssessByID = "raid/"
	prefixAlert      = "alert/"
)

// Store wraps the BadgerDB instance with typed accessors for assets,
// risk assessments, and alerts.
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB transactions provide isolation.
type Store struct {
	db *badger.DB
}

// NewStore creates a Store over an opened database.
func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying database for lifecycle management.
func (s *Store) DB() *badger.DB { return s.db }

func (s *Store) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *Store) get(key string, v any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if err == badger.ErrKeyNotFound {
		return ErrNotFound
	}
	return err
}

// scan collects all values under a prefix, decoding each into a fresh
// value produced by newV and appending via collect.
func (s *Store) scan(prefix string, each func(val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				return each(val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// Assets
// =============================================================================

// PutAsset persists an asset record.
func (s *Store) PutAsset(ctx context.Context, asset *datatypes.Asset) error {
	if asset.ID == "" {
		return fmt.Errorf("asset id is required")
	}
	return s.put(prefixAsset+asset.ID, asset)
}

// GetAsset loads an asset by ID. Returns ErrNotFound if absent.
func (s *Store) GetAsset(ctx context.Context, id string) (*datatypes.Asset, error) {
	var asset datatypes.Asset
	if err := s.get(prefixAsset+id, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// ListAssets returns all registered assets sorted by name.
func (s *Store) ListAssets(ctx context.Context) ([]*datatypes.Asset, error) {
	var assets []*datatypes.Asset
	err := s.scan(prefixAsset, func(val []byte) error {
		var a datatypes.Asset
		if err := json.Unmarshal(val, &a); err != nil {
			return err
		}
		assets = append(assets, &a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Name < assets[j].Name })
	return assets, nil
}

// DeleteAsset removes an asset record. Assessment history and alerts
// for the asset are retained for audit.
func (s *Store) DeleteAsset(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(prefixAsset + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(prefixAsset + id))
	})
	if err == badger.ErrKeyNotFound {
		return ErrNotFound
	}
	return err
}

// TouchAssetAssessed updates an asset's last-assessed timestamp.
func (s *Store) TouchAssetAssessed(ctx context.Context, id string, at time.Time) error {
	asset, err := s.GetAsset(ctx, id)
	if err != nil {
		return err
	}
	asset.LastAssessedAt = &at
	return s.PutAsset(ctx, asset)
}

// =============================================================================
// Risk Assessments
// =============================================================================

func assessmentKey(assetID string, at time.Time, id string) string {
	return fmt.Sprintf("%s%s/%020d/%s", prefixAssessment, assetID, at.UnixNano(), id)
}

// PutAssessment persists an assessment under both a per-asset
// chronological key and a direct ID key.
func (s *Store) PutAssessment(ctx context.Context, ra *datatypes.RiskAssessment) error {
	if ra.ID == "" || ra.AssetID == "" {
		return fmt.Errorf("assessment id and asset id are required")
	}
	data, err := json.Marshal(ra)
	if err != nil {
		return fmt.Errorf("marshal assessment %s: %w", ra.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(assessmentKey(ra.AssetID, ra.CompletedAt, ra.ID)), data); err != nil {
			return err
		}
		return txn.Set([]byte(prefixAssessByID+ra.ID), data)
	})
}

// GetAssessment loads an assessment by ID.
func (s *Store) GetAssessment(ctx context.Context, id string) (*datatypes.RiskAssessment, error) {
	var ra datatypes.RiskAssessment
	if err := s.get(prefixAssessByID+id, &ra); err != nil {
		return nil, err
	}
	return &ra, nil
}

// ListAssessments returns an asset's assessments newest first, capped
// at limit (0 means no cap).
func (s *Store) ListAssessments(ctx context.Context, assetID string, limit int) ([]*datatypes.RiskAssessment, error) {
	var out []*datatypes.RiskAssessment
	err := s.scan(prefixAssessment+assetID+"/", func(val []byte) error {
		var ra datatypes.RiskAssessment
		if err := json.Unmarshal(val, &ra); err != nil {
			return err
		}
		out = append(out, &ra)
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Keys scan oldest-first; callers want newest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LatestAssessment returns an asset's most recent assessment, or
// ErrNotFound if the asset has never been assessed.
func (s *Store) LatestAssessment(ctx context.Context, assetID string) (*datatypes.RiskAssessment, error) {
	list, err := s.ListAssessments(ctx, assetID, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

// AssessmentsSince returns an asset's assessments completed at or after
// the cutoff, oldest first. Used by the trend analyzer.
func (s *Store) AssessmentsSince(ctx context.Context, assetID string, cutoff time.Time) ([]*datatypes.RiskAssessment, error) {
	all, err := s.ListAssessments(ctx, assetID, 0)
	if err != nil {
		return nil, err
	}
	var out []*datatypes.RiskAssessment
	for i := len(all) - 1; i >= 0; i-- {
		if !all[i].CompletedAt.Before(cutoff) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// =============================================================================
// Alerts
// =============================================================================

// PutAlert persists an alert record.
func (s *Store) PutAlert(ctx context.Context, alert *datatypes.Alert) error {
	if alert.ID == "" {
		return fmt.Errorf("alert id is required")
	}
	return s.put(prefixAlert+alert.ID, alert)
}

// GetAlert loads an alert by ID.
func (s *Store) GetAlert(ctx context.Context, id string) (*datatypes.Alert, error) {
	var alert datatypes.Alert
	if err := s.get(prefixAlert+id, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

// AlertFilter narrows ListAlerts results. Zero values match everything.
type AlertFilter struct {
	AssetID string
	State   datatypes.AlertState
	Level   datatypes.AlertLevel
}

func (f AlertFilter) matches(a *datatypes.Alert) bool {
	if f.AssetID != "" && !strings.EqualFold(f.AssetID, a.AssetID) {
		return false
	}
	if f.State != "" && f.State != a.State {
		return false
	}
	if f.Level != "" && f.Level != a.Level {
		return false
	}
	return true
}

// ListAlerts returns alerts matching the filter, newest first.
func (s *Store) ListAlerts(ctx context.Context, filter AlertFilter) ([]*datatypes.Alert, error) {
	var out []*datatypes.Alert
	err := s.scan(prefixAlert, func(val []byte) error {
		var a datatypes.Alert
		if err := json.Unmarshal(val, &a); err != nil {
			return err
		}
		if filter.matches(&a) {
			out = append(out, &a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	return out, nil
}
