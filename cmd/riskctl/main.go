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
	"log"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes shared by every subcommand.
const (
	ExitSuccess   = 0
	ExitRiskFound = 1
	ExitError     = 2
)

// --- Global Command Variables ---
var (
	serverURL  string
	apiToken   string
	outputJSON bool

	rootCmd = &cobra.Command{
		Use:   "riskctl",
		Short: "A cli to manage the Aleutian risk assessment service",
		Long: `riskctl talks to a running risk service to register assets,
trigger assessments, work alerts, and inspect risk trajectories.`,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	defaultServer := os.Getenv("RISK_SERVER_URL")
	if defaultServer == "" {
		defaultServer = "http://localhost:12310"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer,
		"Base URL of the risk service")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("RISK_API_TOKEN"),
		"Bearer token for the service API")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false,
		"Output as JSON")
}
