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

	"github.com/AleutianAI/AleutianRisk/services/risk/trend"
)

var trendCmd = &cobra.Command{
	Use:   "trend [asset-id]",
	Short: "Show risk trajectories",
	Long: `Show how risk scores are moving across the inventory.

With no arguments all assets with assessment history are listed,
sorted by growth rate descending. With an asset id, the trajectory
and 7-day forecast for that asset is shown.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runTrendCommand,
}

func init() {
	rootCmd.AddCommand(trendCmd)
}

func runTrendCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := newClient()

	if len(args) == 1 {
		var t trend.RiskTrend
		if err := client.get(ctx, "/trends/"+args[0], &t); err != nil {
			outputError("Trend lookup failed", err)
			os.Exit(ExitError)
		}
		if outputJSON {
			printJSON(t)
			return
		}
		outputTrendText(t)
		return
	}

	var resp struct {
		Trends []trend.RiskTrend `json:"trends"`
		Count  int               `json:"count"`
	}
	if err := client.get(ctx, "/trends", &resp); err != nil {
		outputError("Trend lookup failed", err)
		os.Exit(ExitError)
	}
	if outputJSON {
		printJSON(resp)
		return
	}
	if resp.Count == 0 {
		fmt.Println("No assessment history yet.")
		return
	}
	for _, t := range resp.Trends {
		marker := ""
		if t.IsRapidGrowth {
			marker = "  RAPID"
		}
		fmt.Printf("%s  %-6s score=%2d growth=%+7.2f%% forecast=%2d%s\n",
			t.AssetID, t.Direction, t.CurrentScore, t.GrowthRate, t.ForecastScore, marker)
	}
}

func outputTrendText(t trend.RiskTrend) {
	fmt.Printf("Asset: %s\n", t.AssetID)
	fmt.Printf("Direction: %s (%.2f%% vs comparison period)\n", t.Direction, t.GrowthRate)
	fmt.Printf("Current Score: %d (was %d)\n", t.CurrentScore, t.PreviousScore)
	fmt.Printf("Forecast: %d (%s)\n", t.ForecastScore, t.ForecastTier)
	fmt.Printf("Data Points: %d\n", t.DataPoints)
	if t.IsRapidGrowth {
		fmt.Println("Warning: rapid risk growth detected")
	}
}
