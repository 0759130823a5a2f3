// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()
	require.NotNil(t, logger)

	// Should not panic on any level
	logger.Debug("debug msg", "k", "v")
	logger.Info("info msg", "k", "v")
	logger.Warn("warn msg", "k", "v")
	logger.Error("error msg", "k", "v")
}

func TestFileLogging(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "test",
	})
	logger.Info("file entry", "asset_id", "a-1")
	require.NoError(t, logger.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "file entry")
	assert.Contains(t, string(data), "asset_id")
}

func TestLevelFiltering(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelWarn,
		Service:  "test",
		Exporter: exporter,
	})

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")
	logger.Error("also kept")

	entries := exporter.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "ERROR", entries[1].Level)
}

func TestExporterReceivesFields(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelInfo,
		Service:  "risk",
		Exporter: exporter,
	})

	logger.Info("assessment complete", "asset_id", "a-1", "score", 18)

	entries := exporter.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "risk", entries[0].Service)
	assert.Equal(t, "a-1", entries[0].Fields["asset_id"])
	assert.Equal(t, 18, entries[0].Fields["score"])
}

func TestWithAttaches(t *testing.T) {
	logger := Default().With("component", "scheduler")
	require.NotNil(t, logger)
	logger.Info("cycle complete")
}

func TestArgsToMap(t *testing.T) {
	m := argsToMap([]any{"a", 1, "b", "two"})
	assert.Equal(t, 1, m["a"])
	assert.Equal(t, "two", m["b"])

	// Odd trailing value
	m = argsToMap([]any{"a", 1, "dangling"})
	assert.Equal(t, "dangling", m["!BADKEY"])

	assert.Nil(t, argsToMap(nil))
}
