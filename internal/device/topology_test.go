// SPDX-FileCopyrightText: 2026 The Ryzenmon Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTopology populates a fake sysfs tree for one CPU. Pass an empty
// string to skip a file.
func writeTopology(t *testing.T, sysfs string, cpu int, pkgID, coreID string) {
	t.Helper()

	dir := filepath.Join(sysfs, "devices", "system", "cpu", fmt.Sprintf("cpu%d", cpu), "topology")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if pkgID != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "physical_package_id"), []byte(pkgID+"\n"), 0o644))
	}
	if coreID != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "core_id"), []byte(coreID+"\n"), 0o644))
	}
}

func TestDetectTopology_CountsUntilFirstFailure(t *testing.T) {
	sysfs := t.TempDir()
	for cpu := 0; cpu < 4; cpu++ {
		writeTopology(t, sysfs, cpu, "0", fmt.Sprintf("%d", cpu))
	}
	// cpu5 exists but cpu4 does not; the scan must stop at 4
	writeTopology(t, sysfs, 5, "0", "5")

	topo := DetectTopology(sysfs, slog.Default())
	assert.Equal(t, 4, topo.CPUs())
	assert.Equal(t, []int{0, 1, 2, 3}, topo.SampleCPUs())
}

func TestDetectTopology_NoCPUs(t *testing.T) {
	topo := DetectTopology(t.TempDir(), slog.Default())
	assert.Equal(t, 0, topo.CPUs())
	assert.Empty(t, topo.SampleCPUs())
	assert.Empty(t, topo.PackageFirstCPU())
}

func TestDetectTopology_SMTSiblingsDeduplicated(t *testing.T) {
	// 4 logical CPUs, 2 physical cores: threads (0,1) share core 0 and
	// threads (2,3) share core 1
	sysfs := t.TempDir()
	writeTopology(t, sysfs, 0, "0", "0")
	writeTopology(t, sysfs, 1, "0", "0")
	writeTopology(t, sysfs, 2, "0", "1")
	writeTopology(t, sysfs, 3, "0", "1")

	topo := DetectTopology(sysfs, slog.Default())
	assert.Equal(t, 4, topo.CPUs())
	assert.Equal(t, []int{0, 2}, topo.SampleCPUs())
}

func TestDetectTopology_PackageFirstCPU(t *testing.T) {
	sysfs := t.TempDir()
	writeTopology(t, sysfs, 0, "0", "0")
	writeTopology(t, sysfs, 1, "0", "1")
	writeTopology(t, sysfs, 2, "1", "0")
	writeTopology(t, sysfs, 3, "1", "1")

	topo := DetectTopology(sysfs, slog.Default())
	assert.Equal(t, map[int]int{0: 0, 1: 2}, topo.PackageFirstCPU())

	// designated CPUs must be part of the sample set
	sampled := map[int]bool{}
	for _, cpu := range topo.SampleCPUs() {
		sampled[cpu] = true
	}
	for _, cpu := range topo.PackageFirstCPU() {
		assert.True(t, sampled[cpu])
	}
}

func TestDetectTopology_MissingCoreID(t *testing.T) {
	// without core_id every logical CPU counts as its own core
	sysfs := t.TempDir()
	writeTopology(t, sysfs, 0, "0", "")
	writeTopology(t, sysfs, 1, "0", "")

	topo := DetectTopology(sysfs, slog.Default())
	assert.Equal(t, 2, topo.CPUs())
	assert.Equal(t, []int{0, 1}, topo.SampleCPUs())
}

func TestDetectTopology_MalformedPackageID(t *testing.T) {
	// a CPU with garbage in physical_package_id still counts
	sysfs := t.TempDir()
	writeTopology(t, sysfs, 0, "0", "0")
	writeTopology(t, sysfs, 1, "bogus", "1")

	topo := DetectTopology(sysfs, slog.Default())
	assert.Equal(t, 2, topo.CPUs())
}
