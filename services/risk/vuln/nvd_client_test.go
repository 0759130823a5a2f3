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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nvdPageTemplate = `{
  "resultsPerPage": %d,
  "startIndex": %d,
  "totalResults": %d,
  "vulnerabilities": [%s]
}`

const nvdRecord = `{
  "cve": {
    "id": "CVE-2024-%05d",
    "published": "2024-01-15T10:00:00.000",
    "lastModified": "2024-02-01T08:30:00.000",
    "vulnStatus": "Analyzed",
    "descriptions": [
      {"lang": "es", "value": "desbordamiento"},
      {"lang": "en", "value": "heap overflow in parser"}
    ],
    "metrics": {
      "cvssMetricV31": [
        {"cvssData": {"baseScore": 8.8, "baseSeverity": "HIGH"}}
      ]
    },
    "configurations": [
      {"nodes": [
        {"cpeMatch": [
          {"vulnerable": true, "criteria": "cpe:2.3:a:postgresql:postgresql:*:*:*:*:*:*:*:*",
           "versionEndExcluding": "13.4"},
          {"vulnerable": false, "criteria": "cpe:2.3:a:other:other:1.0:*:*:*:*:*:*:*"}
        ]}
      ]}
    ]
  }
}`

func fastTestClient(t *testing.T, serverURL string) *NVDClient {
	t.Helper()
	c := NewNVDClient(slog.Default(), WithBaseURL(serverURL))
	// Tests should not wait on the public rate budget.
	c.limiter.SetLimit(1000)
	c.limiter.SetBurst(1000)
	return c
}

func TestFetchModifiedSincePaginates(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		start := r.URL.Query().Get("startIndex")
		require.NotEmpty(t, r.URL.Query().Get("lastModStartDate"))

		w.Header().Set("Content-Type", "application/json")
		if start == "0" {
			fmt.Fprintf(w, nvdPageTemplate, 1, 0, 2, fmt.Sprintf(nvdRecord, 1))
		} else {
			fmt.Fprintf(w, nvdPageTemplate, 1, 1, 2, fmt.Sprintf(nvdRecord, 2))
		}
	}))
	defer server.Close()

	client := fastTestClient(t, server.URL)
	records, err := client.FetchModifiedSince(context.Background(),
		time.Now().Add(-24*time.Hour), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 2, requests)
	require.Len(t, records, 2)
	assert.Equal(t, "CVE-2024-00001", records[0].CVEID)
	assert.Equal(t, "CVE-2024-00002", records[1].CVEID)
}

func TestNormalizeRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, nvdPageTemplate, 1, 0, 1, fmt.Sprintf(nvdRecord, 7))
	}))
	defer server.Close()

	client := fastTestClient(t, server.URL)
	records, err := client.FetchModifiedSince(context.Background(),
		time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "heap overflow in parser", rec.Description, "english description preferred")
	assert.Equal(t, 8.8, rec.CVSS)
	assert.Equal(t, "HIGH", rec.Severity)
	assert.Equal(t, 2024, rec.Published.Year())

	// Only the vulnerable CPE match survives normalization.
	require.Len(t, rec.Affected, 1)
	assert.Equal(t, "postgresql", rec.Affected[0].Product)
	assert.Equal(t, "13.4", rec.Affected[0].VersionEnd)
	assert.False(t, rec.Affected[0].EndInclusive)
}

func TestFetchErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer server.Close()

	client := fastTestClient(t, server.URL)
	_, err := client.FetchModifiedSince(context.Background(),
		time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestParseCPECriteria(t *testing.T) {
	ap, ok := parseCPECriteria("cpe:2.3:a:postgresql:postgresql:9.6.1:*:*:*:*:*:*:*")
	require.True(t, ok)
	assert.Equal(t, "postgresql", ap.Vendor)
	assert.Equal(t, "postgresql", ap.Product)
	assert.Equal(t, "9.6.1", ap.Version)

	_, ok = parseCPECriteria("not-a-cpe")
	assert.False(t, ok)
}

func TestSyncRecordsHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, nvdPageTemplate, 1, 0, 1, fmt.Sprintf(nvdRecord, 42))
	}))
	defer server.Close()

	mirror, err := NewMirrorInMemory()
	require.NoError(t, err)
	defer mirror.Close()

	svc := NewService(fastTestClient(t, server.URL), mirror, nil, slog.Default())

	result, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordsFetched)
	assert.Equal(t, 1, result.RecordsStored)

	last, err := mirror.LastSync(context.Background())
	require.NoError(t, err)
	assert.False(t, last.IsZero())

	n, err := mirror.CVECount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBackfillProductStoresRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "postgresql", r.URL.Query().Get("keywordSearch"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, nvdPageTemplate, 1, 0, 1, fmt.Sprintf(nvdRecord, 77))
	}))
	defer server.Close()

	mirror, err := NewMirrorInMemory()
	require.NoError(t, err)
	defer mirror.Close()

	svc := NewService(fastTestClient(t, server.URL), mirror, nil, slog.Default())

	result, err := svc.BackfillProduct(context.Background(), "postgresql")
	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordsFetched)
	assert.Equal(t, 1, result.RecordsStored)

	n, err := mirror.CVECount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// A keyword backfill must not advance the incremental sync window.
	last, err := mirror.LastSync(context.Background())
	require.NoError(t, err)
	assert.True(t, last.IsZero())
}

func TestBackfillProductRejectsBadName(t *testing.T) {
	mirror, err := NewMirrorInMemory()
	require.NoError(t, err)
	defer mirror.Close()

	svc := NewService(NewNVDClient(slog.Default()), mirror, nil, slog.Default())
	_, err = svc.BackfillProduct(context.Background(), "Robert'; DROP TABLE--")
	require.Error(t, err)
}
