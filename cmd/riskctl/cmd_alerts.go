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

var (
	alertsState   string
	alertsLevel   string
	alertsAssetID string
	alertsActor   string
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Inspect and work risk alerts",
	Long: `List alerts and move them through their lifecycle.

Alerts must be acknowledged by an operator before they can be resolved;
the service rejects a resolve on an unacknowledged alert.`,
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts, newest first",
	Run:   runAlertsList,
}

var alertsAckCmd = &cobra.Command{
	Use:   "ack [alert-id]",
	Short: "Acknowledge an alert",
	Args:  cobra.ExactArgs(1),
	Run:   runAlertsAck,
}

var alertsResolveCmd = &cobra.Command{
	Use:   "resolve [alert-id]",
	Short: "Resolve an acknowledged alert",
	Args:  cobra.ExactArgs(1),
	Run:   runAlertsResolve,
}

func init() {
	alertsListCmd.Flags().StringVar(&alertsState, "state", "",
		"Filter by state: triggered, acknowledged, resolved")
	alertsListCmd.Flags().StringVar(&alertsLevel, "level", "",
		"Filter by level: warning, critical, emergency")
	alertsListCmd.Flags().StringVar(&alertsAssetID, "asset", "",
		"Filter by asset id")

	alertsAckCmd.Flags().StringVar(&alertsActor, "by", "",
		"Operator identity recorded on the alert (required)")
	alertsResolveCmd.Flags().StringVar(&alertsActor, "by", "",
		"Operator identity recorded on the alert (required)")

	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsAckCmd)
	alertsCmd.AddCommand(alertsResolveCmd)
	rootCmd.AddCommand(alertsCmd)
}

func runAlertsList(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	query := url.Values{}
	if alertsState != "" {
		query.Set("state", alertsState)
	}
	if alertsLevel != "" {
		query.Set("level", alertsLevel)
	}
	if alertsAssetID != "" {
		query.Set("asset_id", alertsAssetID)
	}
	path := "/alerts"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var resp struct {
		Alerts []datatypes.Alert `json:"alerts"`
		Count  int               `json:"count"`
	}
	if err := newClient().get(ctx, path, &resp); err != nil {
		outputError("Failed to list alerts", err)
		os.Exit(ExitError)
	}

	if outputJSON {
		printJSON(resp)
		return
	}
	if resp.Count == 0 {
		fmt.Println("No alerts.")
		return
	}
	for _, a := range resp.Alerts {
		fmt.Printf("%s  %-9s %-12s %-12s asset=%s  %s\n",
			a.ID, a.Level, a.State, a.Rule, a.AssetID, a.Message)
	}
}

func runAlertsAck(cmd *cobra.Command, args []string) {
	alertAction(args[0], "acknowledge")
}

func runAlertsResolve(cmd *cobra.Command, args []string) {
	alertAction(args[0], "resolve")
}

func alertAction(alertID, action string) {
	if alertsActor == "" {
		outputError("Missing operator identity", fmt.Errorf("--by is required"))
		os.Exit(ExitError)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var alert datatypes.Alert
	err := newClient().post(ctx, "/alerts/"+alertID+"/"+action,
		map[string]string{"by": alertsActor}, &alert)
	if err != nil {
		outputError("Alert "+action+" failed", err)
		os.Exit(ExitError)
	}

	if outputJSON {
		printJSON(alert)
		return
	}
	fmt.Printf("Alert %s is now %s\n", alert.ID, alert.State)
}
