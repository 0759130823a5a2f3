// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vuln implements the vulnerability assessment service: a
// rate-limited NVD client, a SQLite CVE mirror, and correlation of
// mirrored CVEs to inventoried assets.
package vuln

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultNVDBaseURL is the NVD CVE API 2.0 endpoint.
const DefaultNVDBaseURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"

// NVD public rate budget without an API key is 5 requests per rolling
// 30 seconds. We stay under it.
const (
	nvdRequestsPerWindow = 5
	nvdWindow            = 30 * time.Second
	nvdPageSize          = 2000
)

// NVDClient fetches CVE records from the NVD REST API.
//
// # Thread Safety
//
// Safe for concurrent use; the rate limiter serializes the request
// budget across goroutines.
type NVDClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NVDOption configures an NVDClient.
type NVDOption func(*NVDClient)

// WithBaseURL overrides the API endpoint. Used by tests.
func WithBaseURL(u string) NVDOption {
	return func(c *NVDClient) { c.baseURL = u }
}

// WithAPIKey sets an NVD API key, which raises the rate budget.
func WithAPIKey(key string) NVDOption {
	return func(c *NVDClient) {
		c.apiKey = key
		// Keyed clients get 50 requests per 30s window.
		c.limiter = rate.NewLimiter(rate.Every(nvdWindow/50), 50)
	}
}

// WithHTTPClient overrides the HTTP client. Used by tests.
func WithHTTPClient(hc *http.Client) NVDOption {
	return func(c *NVDClient) { c.httpClient = hc }
}

// NewNVDClient creates a client with the public (unkeyed) rate budget.
func NewNVDClient(logger *slog.Logger, opts ...NVDOption) *NVDClient {
	c := &NVDClient{
		baseURL: DefaultNVDBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		limiter: rate.NewLimiter(rate.Every(nvdWindow/nvdRequestsPerWindow), nvdRequestsPerWindow),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// nvdResponse is the top-level NVD 2.0 response envelope.
type nvdResponse struct {
	ResultsPerPage  int                `json:"resultsPerPage"`
	StartIndex      int                `json:"startIndex"`
	TotalResults    int                `json:"totalResults"`
	Vulnerabilities []nvdVulnerability `json:"vulnerabilities"`
}

// nvdVulnerability mirrors the subset of the NVD record we store.
type nvdVulnerability struct {
	CVE struct {
		ID           string `json:"id"`
		Published    string `json:"published"`
		LastModified string `json:"lastModified"`
		VulnStatus   string `json:"vulnStatus"`
		Descriptions []struct {
			Lang  string `json:"lang"`
			Value string `json:"value"`
		} `json:"descriptions"`
		Metrics struct {
			CvssMetricV31 []struct {
				CvssData struct {
					BaseScore    float64 `json:"baseScore"`
					BaseSeverity string  `json:"baseSeverity"`
				} `json:"cvssData"`
			} `json:"cvssMetricV31"`
			CvssMetricV30 []struct {
				CvssData struct {
					BaseScore    float64 `json:"baseScore"`
					BaseSeverity string  `json:"baseSeverity"`
				} `json:"cvssData"`
			} `json:"cvssMetricV30"`
			CvssMetricV2 []struct {
				CvssData struct {
					BaseScore float64 `json:"baseScore"`
				} `json:"cvssData"`
				BaseSeverity string `json:"baseSeverity"`
			} `json:"cvssMetricV2"`
		} `json:"metrics"`
		Configurations []struct {
			Nodes []struct {
				CpeMatch []struct {
					Vulnerable            bool   `json:"vulnerable"`
					Criteria              string `json:"criteria"`
					VersionStartIncluding string `json:"versionStartIncluding"`
					VersionEndExcluding   string `json:"versionEndExcluding"`
					VersionEndIncluding   string `json:"versionEndIncluding"`
				} `json:"cpeMatch"`
			} `json:"nodes"`
		} `json:"configurations"`
	} `json:"cve"`
}

// CVERecord is the normalized form of an NVD record ready for the
// mirror.
type CVERecord struct {
	CVEID       string
	Description string
	CVSS        float64
	Severity    string
	Published   time.Time
	Modified    time.Time
	Affected    []AffectedProduct
}

// AffectedProduct is one vulnerable product range from the CVE's CPE
// configuration.
type AffectedProduct struct {
	Vendor       string
	Product      string
	Version      string // exact version, "*" for ranges
	VersionStart string // inclusive lower bound, empty if none
	VersionEnd   string // upper bound, empty if none
	EndInclusive bool
}

// FetchModifiedSince pages through all CVEs modified in the given
// window, normalizing each record.
//
// # Inputs
//
//   - ctx: Cancellation; each page waits on the rate limiter first.
//   - since, until: lastModStartDate / lastModEndDate window. NVD
//     rejects windows over 120 days; callers should chunk.
//
// # Outputs
//
//   - []CVERecord: Normalized records, possibly empty.
//   - error: Non-nil on HTTP, decode, or rate-limiter failure.
func (c *NVDClient) FetchModifiedSince(ctx context.Context, since, until time.Time) ([]CVERecord, error) {
	var records []CVERecord
	startIndex := 0

	for {
		page, err := c.fetchPage(ctx, since, until, startIndex)
		if err != nil {
			return nil, err
		}
		for _, v := range page.Vulnerabilities {
			records = append(records, normalizeRecord(v))
		}

		startIndex += page.ResultsPerPage
		if startIndex >= page.TotalResults || page.ResultsPerPage == 0 {
			break
		}
	}

	c.logger.Info("nvd fetch complete",
		"records", len(records),
		"since", since.Format(time.RFC3339),
		"until", until.Format(time.RFC3339),
	)
	return records, nil
}

// FetchByProduct fetches CVEs matching a keyword search for one
// product. Backs the on-demand product backfill so a newly registered
// asset can correlate before the next incremental sync.
func (c *NVDClient) FetchByProduct(ctx context.Context, product string) ([]CVERecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("keywordSearch", product)
	q.Set("resultsPerPage", fmt.Sprintf("%d", nvdPageSize))

	resp, err := c.doRequest(ctx, q)
	if err != nil {
		return nil, err
	}

	records := make([]CVERecord, 0, len(resp.Vulnerabilities))
	for _, v := range resp.Vulnerabilities {
		records = append(records, normalizeRecord(v))
	}
	return records, nil
}

func (c *NVDClient) fetchPage(ctx context.Context, since, until time.Time, startIndex int) (*nvdResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("lastModStartDate", since.UTC().Format("2006-01-02T15:04:05.000"))
	q.Set("lastModEndDate", until.UTC().Format("2006-01-02T15:04:05.000"))
	q.Set("startIndex", fmt.Sprintf("%d", startIndex))
	q.Set("resultsPerPage", fmt.Sprintf("%d", nvdPageSize))

	return c.doRequest(ctx, q)
}

func (c *NVDClient) doRequest(ctx context.Context, q url.Values) (*nvdResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build nvd request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("apiKey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nvd request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("nvd returned status %d: %s", resp.StatusCode, string(body))
	}

	var decoded nvdResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode nvd response: %w", err)
	}
	return &decoded, nil
}

// normalizeRecord flattens an NVD record to the mirror schema, taking
// the best available CVSS metric (v3.1 > v3.0 > v2).
func normalizeRecord(v nvdVulnerability) CVERecord {
	rec := CVERecord{CVEID: v.CVE.ID}

	for _, d := range v.CVE.Descriptions {
		if d.Lang == "en" {
			rec.Description = d.Value
			break
		}
	}

	m := v.CVE.Metrics
	switch {
	case len(m.CvssMetricV31) > 0:
		rec.CVSS = m.CvssMetricV31[0].CvssData.BaseScore
		rec.Severity = m.CvssMetricV31[0].CvssData.BaseSeverity
	case len(m.CvssMetricV30) > 0:
		rec.CVSS = m.CvssMetricV30[0].CvssData.BaseScore
		rec.Severity = m.CvssMetricV30[0].CvssData.BaseSeverity
	case len(m.CvssMetricV2) > 0:
		rec.CVSS = m.CvssMetricV2[0].CvssData.BaseScore
		rec.Severity = m.CvssMetricV2[0].BaseSeverity
	}

	if t, err := time.Parse("2006-01-02T15:04:05.000", v.CVE.Published); err == nil {
		rec.Published = t
	}
	if t, err := time.Parse("2006-01-02T15:04:05.000", v.CVE.LastModified); err == nil {
		rec.Modified = t
	}

	for _, cfg := range v.CVE.Configurations {
		for _, node := range cfg.Nodes {
			for _, match := range node.CpeMatch {
				if !match.Vulnerable {
					continue
				}
				ap, ok := parseCPECriteria(match.Criteria)
				if !ok {
					continue
				}
				ap.VersionStart = match.VersionStartIncluding
				if match.VersionEndExcluding != "" {
					ap.VersionEnd = match.VersionEndExcluding
				} else if match.VersionEndIncluding != "" {
					ap.VersionEnd = match.VersionEndIncluding
					ap.EndInclusive = true
				}
				rec.Affected = append(rec.Affected, ap)
			}
		}
	}
	return rec
}

// parseCPECriteria extracts vendor, product, and version from a CPE 2.3
// criteria string: cpe:2.3:a:vendor:product:version:...
func parseCPECriteria(criteria string) (AffectedProduct, bool) {
	parts := strings.Split(criteria, ":")
	if len(parts) < 6 || parts[0] != "cpe" {
		return AffectedProduct{}, false
	}
	return AffectedProduct{
		Vendor:  parts[3],
		Product: parts[4],
		Version: parts[5],
	}, true
}
