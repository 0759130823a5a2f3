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
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	assessThreshold  string
	assessStrict     bool
	assessPermissive bool
	assessQuiet      bool
	assessExplain    bool
	assessTimeout    int
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var assessCmd = &cobra.Command{
	Use:   "assess [asset-id]",
	Short: "Run a risk assessment for one asset",
	Long: `Trigger an on-demand risk assessment and report the composite score.

The service correlates open vulnerabilities, evaluates security controls,
and derives a 1-25 composite score with a tier (LOW/MODERATE/HIGH/CRITICAL).
This is useful for CI/CD gating and review prioritization.

Examples:
  riskctl assess 9f1c...             # Assess one asset
  riskctl assess 9f1c... --threshold moderate
  riskctl assess 9f1c... --strict    # Fail on any risk (threshold=low)
  riskctl assess 9f1c... --json      # JSON output for automation

Exit Codes:
  0 = Tier at or below threshold (safe to proceed)
  1 = Tier above threshold (requires review)
  2 = Error (unknown asset, service failure)`,
	Args: cobra.ExactArgs(1),
	Run:  runAssessCommand,
}

func init() {
	assessCmd.Flags().StringVar(&assessThreshold, "threshold", "high",
		"Exit 0 if at/below: low, moderate, high, critical")
	assessCmd.Flags().BoolVar(&assessStrict, "strict", false,
		"Alias for --threshold low")
	assessCmd.Flags().BoolVar(&assessPermissive, "permissive", false,
		"Alias for --threshold critical")
	assessCmd.Flags().BoolVar(&assessQuiet, "quiet", false,
		"Only exit code, no output")
	assessCmd.Flags().BoolVar(&assessExplain, "explain", false,
		"Show detailed factor breakdown")
	assessCmd.Flags().IntVar(&assessTimeout, "timeout", 60,
		"Total timeout in seconds")

	rootCmd.AddCommand(assessCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runAssessCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(assessTimeout)*time.Second)
	defer cancel()

	var result datatypes.RiskAssessment
	err := newClient().post(ctx, "/assessments",
		map[string]string{"asset_id": args[0]}, &result)
	if err != nil {
		outputError("Risk assessment failed", err)
		os.Exit(ExitError)
	}

	if !assessQuiet {
		if outputJSON {
			printJSON(result)
		} else {
			outputAssessmentText(&result)
		}
	}

	threshold := datatypes.ParseRiskTier(assessThreshold)
	if assessStrict {
		threshold = datatypes.TierLow
	} else if assessPermissive {
		threshold = datatypes.TierCritical
	}
	if result.Tier.Exceeds(threshold) {
		os.Exit(ExitRiskFound)
	}
	os.Exit(ExitSuccess)
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

func outputAssessmentText(result *datatypes.RiskAssessment) {
	fmt.Printf("Risk Tier: %s %s\n", result.Tier, tierIndicator(result.Tier))
	fmt.Printf("Risk Score: %d/25 (likelihood %d x impact %d x exposure %.2f)\n",
		result.Score, result.Likelihood, result.Impact, result.Exposure)
	fmt.Println()

	if len(result.Factors) > 0 {
		fmt.Println("Contributing Factors:")
		for _, f := range result.Factors {
			fmt.Printf("  %s %s: %s\n", factorIcon(f.Severity), f.Signal, f.Message)
		}
		fmt.Println()
	}

	if result.Recommendation != "" {
		fmt.Printf("Recommendation: %s\n", result.Recommendation)
		fmt.Println()
	}

	if assessExplain {
		fmt.Printf("Algorithm: v%s\n", result.AlgorithmVersion)
		fmt.Println()
		fmt.Println("Signal Breakdown:")
		fmt.Println("  Vulnerabilities:")
		fmt.Printf("    - Open findings: %d\n", result.VulnSummary.OpenTotal)
		fmt.Printf("    - Critical: %d, High: %d\n",
			result.VulnSummary.CriticalCount, result.VulnSummary.HighCount)
		fmt.Printf("    - Max CVSS: %.1f\n", result.VulnSummary.MaxCVSS)
		fmt.Println("  Controls:")
		fmt.Printf("    - Mean effectiveness: %.1f%%\n", result.ControlSummary.MeanEffectiveness)
		if result.ControlSummary.WeakestCategory != "" {
			fmt.Printf("    - Weakest category: %s (%.1f%%)\n",
				result.ControlSummary.WeakestCategory, result.ControlSummary.WeakestEffectiveness)
		}
		fmt.Println()
	}

	fmt.Printf("Assessment completed in %dms\n", result.DurationMs)
}

func tierIndicator(tier datatypes.RiskTier) string {
	switch tier {
	case datatypes.TierCritical:
		return "[!!!]"
	case datatypes.TierHigh:
		return "[!!]"
	case datatypes.TierModerate:
		return "[!]"
	default:
		return "[ok]"
	}
}

func factorIcon(severity string) string {
	switch severity {
	case "critical":
		return "!!!"
	case "warning":
		return " ! "
	default:
		return " - "
	}
}
