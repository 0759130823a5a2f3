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

	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
)

var complianceFramework string

var complianceCmd = &cobra.Command{
	Use:   "compliance [asset-id]",
	Short: "Evaluate framework compliance for an asset",
	Long: `Map an asset's control posture onto regulatory frameworks.

Scores are computed from control category effectiveness; open critical
vulnerabilities cap the achievable score. A framework passes at 70%.

Examples:
  riskctl compliance 9f1c...
  riskctl compliance 9f1c... --framework pci-dss`,
	Args: cobra.ExactArgs(1),
	Run:  runComplianceCommand,
}

func init() {
	complianceCmd.Flags().StringVar(&complianceFramework, "framework", "",
		"Evaluate a single framework (gdpr, soc2, nist-csf, iso27001, pci-dss, hipaa)")
	rootCmd.AddCommand(complianceCmd)
}

func runComplianceCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	query := url.Values{"asset_id": {args[0]}}
	if complianceFramework != "" {
		query.Set("framework", complianceFramework)
	}

	var resp struct {
		Compliance []datatypes.ComplianceAssessment `json:"compliance"`
		Count      int                              `json:"count"`
	}
	if err := newClient().get(ctx, "/compliance?"+query.Encode(), &resp); err != nil {
		outputError("Compliance evaluation failed", err)
		os.Exit(ExitError)
	}

	if outputJSON {
		printJSON(resp)
		return
	}
	for _, ca := range resp.Compliance {
		verdict := "PASS"
		if ca.Score < 70 {
			verdict = "FAIL"
		}
		fmt.Printf("%-10s %6.1f%%  %s  (%d passed, %d failed)\n",
			ca.Framework, ca.Score, verdict, ca.Passed, ca.Failed)
		for _, gap := range ca.Gaps {
			fmt.Printf("    gap: %s\n", gap)
		}
	}
}
