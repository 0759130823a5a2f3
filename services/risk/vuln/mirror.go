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
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AleutianAI/AleutianRisk/pkg/validation"
	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
	"github.com/AleutianAI/AleutianRisk/services/risk/storage"
)

// Mirror is the local SQLite CVE mirror plus the per-asset findings
// table.
//
// # Thread Safety
//
// Safe for concurrent use; database/sql pools connections and SQLite
// serializes writers.
type Mirror struct {
	db *sql.DB
}

// NewMirror opens (and migrates) a mirror database at the given path,
// creating parent directories as needed.
func NewMirror(path string) (*Mirror, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create mirror directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open cve mirror: %w", err)
	}
	m := &Mirror{db: db}
	if err := m.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

var memMirrorSeq atomic.Int64

// NewMirrorInMemory opens an in-memory mirror for testing. Each call
// gets its own database; the shared cache only spans the connection
// pool of that instance.
func NewMirrorInMemory() (*Mirror, error) {
	name := fmt.Sprintf("file:mirror%d?mode=memory&cache=shared", memMirrorSeq.Add(1))
	db, err := sql.Open("sqlite3", name)
	if err != nil {
		return nil, fmt.Errorf("open in-memory mirror: %w", err)
	}
	// A shared-cache in-memory database disappears when the last
	// connection closes; pin one open.
	db.SetMaxIdleConns(1)
	m := &Mirror{db: db}
	if err := m.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// Close closes the underlying database.
func (m *Mirror) Close() error { return m.db.Close() }

func (m *Mirror) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cves (
		cve_id TEXT PRIMARY KEY,
		description TEXT,
		cvss_score REAL,
		cvss_severity TEXT,
		published TIMESTAMP,
		modified TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS affected_software (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cve_id TEXT NOT NULL,
		vendor TEXT,
		product TEXT,
		version TEXT,
		version_start TEXT,
		version_end TEXT,
		end_inclusive INTEGER DEFAULT 0,
		FOREIGN KEY (cve_id) REFERENCES cves(cve_id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_affected_product ON affected_software(product);
	CREATE INDEX IF NOT EXISTS idx_affected_cve_product ON affected_software(cve_id, product);

	CREATE TABLE IF NOT EXISTS asset_findings (
		asset_id TEXT NOT NULL,
		cve_id TEXT NOT NULL,
		product TEXT NOT NULL,
		version TEXT,
		cvss_score REAL,
		severity TEXT,
		status TEXT NOT NULL DEFAULT 'open',
		detected_at TIMESTAMP,
		PRIMARY KEY (asset_id, cve_id)
	);
	CREATE INDEX IF NOT EXISTS idx_findings_asset ON asset_findings(asset_id, status);

	CREATE TABLE IF NOT EXISTS sync_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		synced_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		source TEXT,
		records_added INTEGER
	);
	`
	if _, err := m.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate cve mirror: %w", err)
	}
	return nil
}

// =============================================================================
// CVE Upserts and Queries
// =============================================================================

// UpsertCVEs writes a batch of normalized records inside one
// transaction, replacing affected-software rows per CVE.
func (m *Mirror) UpsertCVEs(ctx context.Context, records []CVERecord) (int, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	upsertCVE, err := tx.PrepareContext(ctx, `
		INSERT INTO cves (cve_id, description, cvss_score, cvss_severity, published, modified)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cve_id) DO UPDATE SET
			description = excluded.description,
			cvss_score = excluded.cvss_score,
			cvss_severity = excluded.cvss_severity,
			modified = excluded.modified`)
	if err != nil {
		return 0, fmt.Errorf("prepare cve upsert: %w", err)
	}
	defer upsertCVE.Close()

	insertAffected, err := tx.PrepareContext(ctx, `
		INSERT INTO affected_software
			(cve_id, vendor, product, version, version_start, version_end, end_inclusive)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare affected insert: %w", err)
	}
	defer insertAffected.Close()

	count := 0
	for _, rec := range records {
		if err := validation.ValidateCVEID(rec.CVEID); err != nil {
			continue
		}
		if _, err := upsertCVE.ExecContext(ctx, rec.CVEID, rec.Description,
			rec.CVSS, rec.Severity, rec.Published, rec.Modified); err != nil {
			return 0, fmt.Errorf("upsert %s: %w", rec.CVEID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM affected_software WHERE cve_id = ?`, rec.CVEID); err != nil {
			return 0, fmt.Errorf("clear affected for %s: %w", rec.CVEID, err)
		}
		for _, ap := range rec.Affected {
			endInclusive := 0
			if ap.EndInclusive {
				endInclusive = 1
			}
			if _, err := insertAffected.ExecContext(ctx, rec.CVEID, ap.Vendor,
				ap.Product, ap.Version, ap.VersionStart, ap.VersionEnd, endInclusive); err != nil {
				return 0, fmt.Errorf("insert affected for %s: %w", rec.CVEID, err)
			}
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return count, nil
}

// productCVE is a mirror row joined with one affected-product range.
type productCVE struct {
	CVEID        string
	Description  string
	CVSS         float64
	Severity     string
	Published    time.Time
	Modified     time.Time
	Version      string
	VersionStart string
	VersionEnd   string
	EndInclusive bool
}

// cvesForProduct returns all mirror rows whose affected product matches.
func (m *Mirror) cvesForProduct(ctx context.Context, product string) ([]productCVE, error) {
	if err := validation.ValidateProduct(product); err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx, `
		SELECT c.cve_id, c.description, c.cvss_score, c.cvss_severity,
		       c.published, c.modified,
		       a.version, a.version_start, a.version_end, a.end_inclusive
		FROM cves c
		JOIN affected_software a ON a.cve_id = c.cve_id
		WHERE a.product = ?`, product)
	if err != nil {
		return nil, fmt.Errorf("query cves for %s: %w", product, err)
	}
	defer rows.Close()

	var out []productCVE
	for rows.Next() {
		var pc productCVE
		var endInclusive int
		var published, modified sql.NullTime
		if err := rows.Scan(&pc.CVEID, &pc.Description, &pc.CVSS, &pc.Severity,
			&published, &modified, &pc.Version, &pc.VersionStart, &pc.VersionEnd,
			&endInclusive); err != nil {
			return nil, fmt.Errorf("scan cve row: %w", err)
		}
		pc.EndInclusive = endInclusive == 1
		if published.Valid {
			pc.Published = published.Time
		}
		if modified.Valid {
			pc.Modified = modified.Time
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

// CVECount returns the number of mirrored CVEs.
func (m *Mirror) CVECount(ctx context.Context) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cves`).Scan(&n)
	return n, err
}

// =============================================================================
// Asset Findings
// =============================================================================

// SaveFinding upserts a correlated finding. Severity and CVSS never
// downgrade on refresh; a re-correlation with a lower score keeps the
// stored values, and status is left untouched.
func (m *Mirror) SaveFinding(ctx context.Context, f *datatypes.Vulnerability) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO asset_findings
			(asset_id, cve_id, product, version, cvss_score, severity, status, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(asset_id, cve_id) DO UPDATE SET
			cvss_score = MAX(asset_findings.cvss_score, excluded.cvss_score),
			severity = CASE
				WHEN excluded.cvss_score > asset_findings.cvss_score THEN excluded.severity
				ELSE asset_findings.severity
			END`,
		f.AssetID, f.CVEID, f.Product, f.Version, f.CVSS, string(f.Severity),
		string(f.Status), f.DetectedAt)
	if err != nil {
		return fmt.Errorf("save finding %s/%s: %w", f.AssetID, f.CVEID, err)
	}
	return nil
}

// MitigateFinding marks a finding as mitigated. A finding that does
// not exist maps to storage.ErrNotFound so callers can tell a miss
// from a database failure.
func (m *Mirror) MitigateFinding(ctx context.Context, assetID, cveID string) error {
	res, err := m.db.ExecContext(ctx, `
		UPDATE asset_findings SET status = 'mitigated'
		WHERE asset_id = ? AND cve_id = ?`, assetID, cveID)
	if err != nil {
		return fmt.Errorf("mitigate finding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finding %s/%s: %w", assetID, cveID, storage.ErrNotFound)
	}
	return nil
}

// FindingsForAsset returns all findings for an asset, open first,
// highest CVSS first within each status.
func (m *Mirror) FindingsForAsset(ctx context.Context, assetID string) ([]*datatypes.Vulnerability, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT asset_id, cve_id, product, version, cvss_score, severity, status, detected_at
		FROM asset_findings
		WHERE asset_id = ?
		ORDER BY status ASC, cvss_score DESC`, assetID)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var out []*datatypes.Vulnerability
	for rows.Next() {
		var v datatypes.Vulnerability
		var severity, status string
		var detected sql.NullTime
		if err := rows.Scan(&v.AssetID, &v.CVEID, &v.Product, &v.Version,
			&v.CVSS, &severity, &status, &detected); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		v.Severity = datatypes.Severity(severity)
		v.Status = datatypes.VulnStatus(status)
		if detected.Valid {
			v.DetectedAt = detected.Time
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

// OpenSummary aggregates an asset's open findings for the risk engine.
func (m *Mirror) OpenSummary(ctx context.Context, assetID string) (datatypes.VulnSummary, error) {
	findings, err := m.FindingsForAsset(ctx, assetID)
	if err != nil {
		return datatypes.VulnSummary{}, err
	}
	var sum datatypes.VulnSummary
	for _, f := range findings {
		if f.Status != datatypes.VulnOpen {
			continue
		}
		sum.OpenTotal++
		if f.CVSS > sum.MaxCVSS {
			sum.MaxCVSS = f.CVSS
		}
		switch f.Severity {
		case datatypes.SeverityCritical:
			sum.CriticalCount++
		case datatypes.SeverityHigh:
			sum.HighCount++
		case datatypes.SeverityMedium:
			sum.MediumCount++
		case datatypes.SeverityLow:
			sum.LowCount++
		}
	}
	return sum, nil
}

// OpenSeverityCounts aggregates open findings across all assets by
// severity. Feeds the open-finding gauge.
func (m *Mirror) OpenSeverityCounts(ctx context.Context) (map[string]int, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT severity, COUNT(*) FROM asset_findings
		WHERE status = 'open' GROUP BY severity`)
	if err != nil {
		return nil, fmt.Errorf("count open findings: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var severity string
		var n int
		if err := rows.Scan(&severity, &n); err != nil {
			return nil, fmt.Errorf("scan severity count: %w", err)
		}
		counts[severity] = n
	}
	return counts, rows.Err()
}

// =============================================================================
// Sync History
// =============================================================================

// Sync-history sources.
const (
	syncSourceIncremental = "nvd"
	syncSourceKeyword     = "nvd-keyword"
)

// RecordSync appends a sync-history row.
func (m *Mirror) RecordSync(ctx context.Context, source string, recordsAdded int) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO sync_history (source, records_added) VALUES (?, ?)`,
		source, recordsAdded)
	return err
}

// LastSync returns the time of the most recent incremental sync, or
// zero time if the mirror has never synced. Keyword backfills are
// recorded under other sources and must not shrink the next
// modified-window fetch.
func (m *Mirror) LastSync(ctx context.Context) (time.Time, error) {
	var t sql.NullTime
	err := m.db.QueryRowContext(ctx,
		`SELECT MAX(synced_at) FROM sync_history WHERE source = ?`,
		syncSourceIncremental).Scan(&t)
	if err != nil {
		return time.Time{}, err
	}
	if !t.Valid {
		return time.Time{}, nil
	}
	return t.Time, nil
}
