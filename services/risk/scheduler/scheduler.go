// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scheduler runs continuous risk assessment cycles.
//
// Assessment cadence is inverse to risk: the higher an asset's last
// tier, the sooner it is due again. Due assets are assessed through a
// bounded worker pool so a large inventory cannot stampede the engine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
	"github.com/AleutianAI/AleutianRisk/services/risk/observability"
	"github.com/AleutianAI/AleutianRisk/services/risk/storage"
)

// =============================================================================
// Assessment Scheduler
// =============================================================================

// Cadence per risk tier. An asset is due when its last assessment is
// older than the cadence for its last tier.
const (
	CadenceCritical = 6 * time.Hour
	CadenceHigh     = 24 * time.Hour
	CadenceModerate = 72 * time.Hour
	CadenceLow      = 168 * time.Hour
)

// CadenceForTier returns the reassessment interval for a tier.
func CadenceForTier(tier datatypes.RiskTier) time.Duration {
	switch tier {
	case datatypes.TierCritical:
		return CadenceCritical
	case datatypes.TierHigh:
		return CadenceHigh
	case datatypes.TierModerate:
		return CadenceModerate
	default:
		return CadenceLow
	}
}

// Assessor scores one asset. Implemented by the risk engine.
type Assessor interface {
	Assess(ctx context.Context, asset *datatypes.Asset) (*datatypes.RiskAssessment, error)
}

// AlertSink receives fresh assessments for threshold evaluation.
type AlertSink interface {
	EvaluateAssessment(ctx context.Context, ra *datatypes.RiskAssessment, prev *datatypes.RiskAssessment) ([]*datatypes.Alert, error)
}

// Config holds scheduler settings.
//
// # Fields
//
//   - Interval: How often the due-asset sweep runs. Default: 5 minutes.
//   - Concurrency: Maximum assessments in flight. Default: 50.
//   - CycleTimeout: Budget for one full sweep. Default: 10 minutes.
type Config struct {
	Interval     time.Duration
	Concurrency  int
	CycleTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Interval:     5 * time.Minute,
		Concurrency:  50,
		CycleTimeout: 10 * time.Minute,
	}
}

// CycleResult summarizes one assessment sweep.
type CycleResult struct {
	AssetsTotal    int           `json:"assets_total"`
	AssetsDue      int           `json:"assets_due"`
	Assessed       int           `json:"assessed"`
	Failed         int           `json:"failed"`
	AlertsRaised   int           `json:"alerts_raised"`
	Duration       time.Duration `json:"-"`
	DurationMs     int64         `json:"duration_ms"`
	PerAssetErrors []string      `json:"per_asset_errors,omitempty"`
}

// Scheduler drives periodic assessment sweeps.
//
// # Thread Safety
//
// All public methods are thread-safe. Uses the ticker + done channel
// pattern for graceful shutdown.
type Scheduler struct {
	store    *storage.Store
	assessor Assessor
	alerts   AlertSink
	metrics  *observability.RiskMetrics
	logger   *slog.Logger
	config   Config

	mu      sync.Mutex
	done    chan struct{}
	running bool
}

// New creates a scheduler. A nil alerts sink disables alert evaluation;
// a nil metrics disables instrumentation.
func New(store *storage.Store, assessor Assessor, alerts AlertSink, metrics *observability.RiskMetrics, logger *slog.Logger, config Config) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConfig().Concurrency
	}
	if config.CycleTimeout <= 0 {
		config.CycleTimeout = DefaultConfig().CycleTimeout
	}
	return &Scheduler{
		store:    store,
		assessor: assessor,
		alerts:   alerts,
		metrics:  metrics,
		logger:   logger,
		config:   config,
		done:     make(chan struct{}),
	}
}

// Start begins the background sweep loop.
//
// # Outputs
//
//   - error: Non-nil if the scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("assessment scheduler starting",
		"interval", s.config.Interval.String(),
		"concurrency", s.config.Concurrency,
	)

	go s.runLoop(ctx)
	return nil
}

// Stop signals the sweep loop to exit. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.logger.Info("assessment scheduler stopping")
	close(s.done)
	s.running = false
}

// RunNow performs one sweep immediately without waiting for the ticker.
func (s *Scheduler) RunNow(ctx context.Context) (*CycleResult, error) {
	return s.runCycle(ctx)
}

func (s *Scheduler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Sweep immediately on start so fresh deployments do not idle.
	s.executeCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("assessment scheduler stopped (context cancelled)")
			return
		case <-s.done:
			s.logger.Info("assessment scheduler stopped (stop requested)")
			return
		case <-ticker.C:
			s.executeCycle(ctx)
		}
	}
}

func (s *Scheduler) executeCycle(ctx context.Context) {
	result, err := s.runCycle(ctx)
	if err != nil {
		s.logger.Error("assessment sweep failed", "error", err)
		return
	}
	if result.AssetsDue > 0 {
		s.logger.Info("assessment sweep completed",
			"assets_due", result.AssetsDue,
			"assessed", result.Assessed,
			"failed", result.Failed,
			"alerts_raised", result.AlertsRaised,
			"duration_ms", result.DurationMs,
		)
	} else {
		s.logger.Debug("assessment sweep completed (nothing due)")
	}
}

// runCycle selects due assets and assesses them through the pool.
func (s *Scheduler) runCycle(ctx context.Context) (*CycleResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.CycleTimeout)
	defer cancel()

	start := time.Now()
	result := &CycleResult{}

	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	result.AssetsTotal = len(assets)

	due, err := s.dueAssets(ctx, assets, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	result.AssetsDue = len(due)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for _, asset := range due {
		asset := asset
		g.Go(func() error {
			alerts, err := s.assessOne(gctx, asset)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.PerAssetErrors = append(result.PerAssetErrors,
					fmt.Sprintf("%s: %v", asset.ID, err))
				// One failing asset must not abort the sweep.
				return nil
			}
			result.Assessed++
			result.AlertsRaised += alerts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	result.DurationMs = result.Duration.Milliseconds()
	return result, nil
}

// dueAssets filters the inventory down to assets whose cadence expired.
// Never-assessed assets are always due.
func (s *Scheduler) dueAssets(ctx context.Context, assets []*datatypes.Asset, now time.Time) ([]*datatypes.Asset, error) {
	var due []*datatypes.Asset
	for _, asset := range assets {
		if asset.LastAssessedAt == nil {
			due = append(due, asset)
			continue
		}
		latest, err := s.store.LatestAssessment(ctx, asset.ID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				due = append(due, asset)
				continue
			}
			return nil, fmt.Errorf("latest assessment for %s: %w", asset.ID, err)
		}
		if now.Sub(*asset.LastAssessedAt) >= CadenceForTier(latest.Tier) {
			due = append(due, asset)
		}
	}
	return due, nil
}

// assessOne runs one assessment and evaluates alert rules against it.
// Returns the number of alerts raised.
func (s *Scheduler) assessOne(ctx context.Context, asset *datatypes.Asset) (int, error) {
	prev, err := s.store.LatestAssessment(ctx, asset.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("load previous assessment: %w", err)
	}

	start := time.Now()
	ra, err := s.assessor.Assess(ctx, asset)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordAssessmentError()
		}
		return 0, fmt.Errorf("assess: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordAssessment(string(ra.Tier), ra.AssetID, ra.Score, time.Since(start).Seconds())
	}

	if s.alerts == nil {
		return 0, nil
	}
	alerts, err := s.alerts.EvaluateAssessment(ctx, ra, prev)
	if err != nil {
		return 0, fmt.Errorf("evaluate alerts: %w", err)
	}
	return len(alerts), nil
}
