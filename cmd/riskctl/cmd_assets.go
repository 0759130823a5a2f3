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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
)

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "Manage the asset inventory",
}

var assetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered assets",
	Run:   runAssetsList,
}

var assetsGetCmd = &cobra.Command{
	Use:   "get [asset-id]",
	Short: "Show one asset",
	Args:  cobra.ExactArgs(1),
	Run:   runAssetsGet,
}

var assetsRegisterCmd = &cobra.Command{
	Use:   "register [json-file]",
	Short: "Register an asset from a JSON definition file",
	Args:  cobra.ExactArgs(1),
	Run:   runAssetsRegister,
}

func init() {
	assetsCmd.AddCommand(assetsListCmd)
	assetsCmd.AddCommand(assetsGetCmd)
	assetsCmd.AddCommand(assetsRegisterCmd)
	rootCmd.AddCommand(assetsCmd)
}

func runAssetsList(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var resp struct {
		Assets []datatypes.Asset `json:"assets"`
		Count  int               `json:"count"`
	}
	if err := newClient().get(ctx, "/assets", &resp); err != nil {
		outputError("Failed to list assets", err)
		os.Exit(ExitError)
	}

	if outputJSON {
		printJSON(resp)
		return
	}
	if resp.Count == 0 {
		fmt.Println("No assets registered.")
		return
	}
	for _, a := range resp.Assets {
		last := "never"
		if a.LastAssessedAt != nil {
			last = a.LastAssessedAt.Format(time.RFC3339)
		}
		fmt.Printf("%s  %-24s kind=%-9s crit=%d sens=%-12s assessed=%s\n",
			a.ID, a.Name, a.Kind, a.Criticality, a.DataSensitivity, last)
	}
}

func runAssetsGet(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var asset datatypes.Asset
	if err := newClient().get(ctx, "/assets/"+args[0], &asset); err != nil {
		outputError("Failed to fetch asset", err)
		os.Exit(ExitError)
	}
	printJSON(asset)
}

func runAssetsRegister(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		outputError("Failed to read asset definition", err)
		os.Exit(ExitError)
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		outputError("Invalid asset definition", err)
		os.Exit(ExitError)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var asset datatypes.Asset
	if err := newClient().post(ctx, "/assets", body, &asset); err != nil {
		outputError("Failed to register asset", err)
		os.Exit(ExitError)
	}

	if outputJSON {
		printJSON(asset)
		return
	}
	fmt.Printf("Registered asset %s (%s)\n", asset.ID, asset.Name)
}
