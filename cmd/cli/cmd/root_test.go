package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI against a throwaway file-backed history
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("UTILBILL_STORAGE_BACKEND", "file")
	t.Setenv("UTILBILL_STORAGE_DIRECTORY", filepath.Join(dir, "data"))

	// flags keep their values between executions
	outputFormat, showDetails, waterRegion, historyType, clearYes, initForce = "", false, "", "all", false, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(dir, "config.yaml")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestElectricityCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "electricity", "200")
	require.NoError(t, err)
	// 200 kWh * 0.218 * 1.06 * 1.016
	assert.Contains(t, out, "Electricity bill: RM 46.96")
}

func TestWaterCommandRequiresRegion(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "water", "18000")
	require.Error(t, err)

	out, err := run(t, dir, "water", "18000", "--region", "central")
	require.NoError(t, err)
	// 18 m³ * 0.57 + RM 2.50
	assert.Contains(t, out, "Water bill: RM 12.76")

	// region names are case-insensitive, as over HTTP
	out, err = run(t, dir, "water", "18000", "--region", "Central")
	require.NoError(t, err)
	assert.Contains(t, out, "Water bill: RM 12.76")
}

func TestBillCommandsRejectBadUsage(t *testing.T) {
	dir := t.TempDir()

	for _, usage := range []string{"abc", "-5", "NaN"} {
		_, err := run(t, dir, "electricity", "--", usage)
		assert.Error(t, err, usage)
	}

	out, err := run(t, dir, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No bills in history.")
}

func TestHistoryAndSummaryCommands(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "electricity", "150")
	require.NoError(t, err)
	_, err = run(t, dir, "water", "9000", "--region", "sarawak")
	require.NoError(t, err)

	out, err := run(t, dir, "history", "list", "--type", "water")
	require.NoError(t, err)
	assert.Contains(t, out, "sarawak")
	assert.NotContains(t, out, "electricity")

	out, err = run(t, dir, "--format", "json", "history", "list")
	require.NoError(t, err)
	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	assert.ElementsMatch(t, []interface{}{"electricity", "water"}, []interface{}{records[0]["type"], records[1]["type"]})

	out, err = run(t, dir, "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "This month (all):")

	_, err = run(t, dir, "history", "clear")
	assert.Error(t, err, "clear needs --yes")

	out, err = run(t, dir, "history", "clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "History cleared.")

	out, err = run(t, dir, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No bills in history.")
}

func TestTariffShowCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "tariff", "show", "water")
	require.NoError(t, err)
	assert.Contains(t, out, "Water tariffs (per m³)")
	assert.NotContains(t, out, "Electricity tariffs")

	out, err = run(t, dir, "tariff", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Electricity tariffs (per kWh)")
	assert.Contains(t, out, "Water tariffs (per m³)")

	_, err = run(t, dir, "tariff", "show", "gas")
	assert.Error(t, err)
}

func TestVersionAndConfigCommands(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "utilbill version")

	out, err = run(t, dir, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "config.yaml")

	_, err = run(t, dir, "config", "init")
	assert.Error(t, err, "existing file is not overwritten")

	out, err = run(t, dir, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "backend: file")
}
