// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vuln

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianRisk/pkg/validation"
	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
	"github.com/AleutianAI/AleutianRisk/services/risk/observability"
)

// Default sync parameters.
const (
	// DefaultSyncWindow bounds the initial backfill when the mirror
	// has never synced. NVD caps lastModified windows at 120 days.
	DefaultSyncWindow = 90 * 24 * time.Hour

	// SyncTimeout bounds one full sync cycle.
	SyncTimeout = 10 * time.Minute
)

// Service is the vulnerability assessment service: it keeps the CVE
// mirror current and correlates mirrored CVEs to assets.
//
// # Thread Safety
//
// Safe for concurrent use.
type Service struct {
	client  *NVDClient
	mirror  *Mirror
	metrics *observability.RiskMetrics
	logger  *slog.Logger
}

// NewService wires a client and mirror together. A nil metrics
// disables instrumentation.
func NewService(client *NVDClient, mirror *Mirror, metrics *observability.RiskMetrics, logger *slog.Logger) *Service {
	return &Service{client: client, mirror: mirror, metrics: metrics, logger: logger}
}

// Mirror exposes the mirror for read paths (handlers, risk engine).
func (s *Service) Mirror() *Mirror { return s.mirror }

// OpenSummary reports the open finding rollup for an asset.
func (s *Service) OpenSummary(ctx context.Context, assetID string) (datatypes.VulnSummary, error) {
	return s.mirror.OpenSummary(ctx, assetID)
}

// MitigateFinding closes one finding and refreshes the open-finding
// gauge. An unknown finding surfaces as storage.ErrNotFound.
func (s *Service) MitigateFinding(ctx context.Context, assetID, cveID string) error {
	if err := s.mirror.MitigateFinding(ctx, assetID, cveID); err != nil {
		return err
	}
	s.refreshOpenFindings(ctx)
	return nil
}

// refreshOpenFindings recomputes the open-finding gauge. Best effort;
// failures are logged, not returned.
func (s *Service) refreshOpenFindings(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	counts, err := s.mirror.OpenSeverityCounts(ctx)
	if err != nil {
		s.logger.Warn("open finding counts unavailable", "error", err)
		return
	}
	for _, sev := range []datatypes.Severity{
		datatypes.SeverityLow,
		datatypes.SeverityMedium,
		datatypes.SeverityHigh,
		datatypes.SeverityCritical,
	} {
		s.metrics.SetOpenFindings(string(sev), counts[string(sev)])
	}
}

// SyncResult summarizes one sync cycle.
type SyncResult struct {
	RecordsFetched int           `json:"records_fetched"`
	RecordsStored  int           `json:"records_stored"`
	Since          time.Time     `json:"since"`
	Until          time.Time     `json:"until"`
	Duration       time.Duration `json:"-"`
	DurationMs     int64         `json:"duration_ms"`
}

// Sync fetches CVE records modified since the last sync (or the
// default backfill window on first run) and upserts them into the
// mirror.
//
// # Limitations
//
//   - One sync at a time is expected; concurrent calls waste rate
//     budget but are otherwise harmless.
func (s *Service) Sync(ctx context.Context) (*SyncResult, error) {
	ctx, cancel := context.WithTimeout(ctx, SyncTimeout)
	defer cancel()

	start := time.Now()
	until := start.UTC()

	since, err := s.mirror.LastSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("read last sync: %w", err)
	}
	if since.IsZero() || until.Sub(since) > DefaultSyncWindow {
		since = until.Add(-DefaultSyncWindow)
	}

	records, err := s.client.FetchModifiedSince(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("fetch from nvd: %w", err)
	}

	stored, err := s.mirror.UpsertCVEs(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("store cve records: %w", err)
	}

	if err := s.mirror.RecordSync(ctx, syncSourceIncremental, stored); err != nil {
		return nil, fmt.Errorf("record sync: %w", err)
	}

	result := &SyncResult{
		RecordsFetched: len(records),
		RecordsStored:  stored,
		Since:          since,
		Until:          until,
		Duration:       time.Since(start),
	}
	result.DurationMs = result.Duration.Milliseconds()

	s.logger.Info("cve mirror sync complete",
		"fetched", result.RecordsFetched,
		"stored", result.RecordsStored,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

// BackfillResult summarizes one product backfill.
type BackfillResult struct {
	Product        string        `json:"product"`
	RecordsFetched int           `json:"records_fetched"`
	RecordsStored  int           `json:"records_stored"`
	Duration       time.Duration `json:"-"`
	DurationMs     int64         `json:"duration_ms"`
}

// BackfillProduct pulls CVEs for one product via keyword search and
// stores them in the mirror. A freshly registered product should not
// have to wait for the next modified-window sync before it can
// correlate.
func (s *Service) BackfillProduct(ctx context.Context, product string) (*BackfillResult, error) {
	if err := validation.ValidateProduct(product); err != nil {
		return nil, err
	}

	start := time.Now()
	records, err := s.client.FetchByProduct(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("fetch product cves: %w", err)
	}

	stored, err := s.mirror.UpsertCVEs(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("store cve records: %w", err)
	}

	if err := s.mirror.RecordSync(ctx, syncSourceKeyword, stored); err != nil {
		return nil, fmt.Errorf("record sync: %w", err)
	}

	result := &BackfillResult{
		Product:        product,
		RecordsFetched: len(records),
		RecordsStored:  stored,
		Duration:       time.Since(start),
	}
	result.DurationMs = result.Duration.Milliseconds()

	s.logger.Info("cve backfill complete",
		"product", product,
		"fetched", result.RecordsFetched,
		"stored", result.RecordsStored,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}
