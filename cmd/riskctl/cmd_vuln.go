// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianRisk/services/risk/vuln"
)

var (
	vulnSyncTimeout     int
	vulnBackfillTimeout int
)

var vulnCmd = &cobra.Command{
	Use:   "vuln",
	Short: "Manage the local CVE mirror",
}

var vulnSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull new CVE records from the upstream database",
	Run:   runVulnSync,
}

var vulnBackfillCmd = &cobra.Command{
	Use:   "backfill [product]",
	Short: "Pull CVEs for one product without waiting for a full sync",
	Args:  cobra.ExactArgs(1),
	Run:   runVulnBackfill,
}

func init() {
	vulnSyncCmd.Flags().IntVar(&vulnSyncTimeout, "timeout", 300,
		"Total timeout in seconds (upstream sync can be slow)")
	vulnBackfillCmd.Flags().IntVar(&vulnBackfillTimeout, "timeout", 60,
		"Total timeout in seconds")

	vulnCmd.AddCommand(vulnSyncCmd)
	vulnCmd.AddCommand(vulnBackfillCmd)
	rootCmd.AddCommand(vulnCmd)
}

func runVulnSync(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(vulnSyncTimeout)*time.Second)
	defer cancel()

	var result vuln.SyncResult
	if err := newClient().post(ctx, "/vulnerabilities/sync", nil, &result); err != nil {
		outputError("CVE sync failed", err)
		os.Exit(ExitError)
	}

	if outputJSON {
		printJSON(result)
		return
	}
	fmt.Printf("Fetched %d records, stored %d new (window %s .. %s, %dms)\n",
		result.RecordsFetched, result.RecordsStored,
		result.Since.Format(time.RFC3339), result.Until.Format(time.RFC3339),
		result.DurationMs)
}

func runVulnBackfill(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(vulnBackfillTimeout)*time.Second)
	defer cancel()

	var result vuln.BackfillResult
	path := "/vulnerabilities/backfill?product=" + url.QueryEscape(args[0])
	if err := newClient().post(ctx, path, nil, &result); err != nil {
		outputError("CVE backfill failed", err)
		os.Exit(ExitError)
	}

	if outputJSON {
		printJSON(result)
		return
	}
	fmt.Printf("Fetched %d records for %s, stored %d new (%dms)\n",
		result.RecordsFetched, result.Product, result.RecordsStored, result.DurationMs)
}
