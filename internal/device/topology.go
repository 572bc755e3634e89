// SPDX-FileCopyrightText: 2026 The Ryzenmon Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultSysfsPath is the default sysfs mount point.
const DefaultSysfsPath = "/sys"

// coreKey identifies a physical core within the machine
type coreKey struct {
	pkg  int
	core int
}

// Topology describes the logical CPUs found at startup. It is built once
// and never mutated afterwards.
type Topology struct {
	cpus        int
	pkgFirstCPU map[int]int // package id -> first logical CPU seen on it
	sampleCPUs  []int       // one logical CPU per physical core, ascending
}

// DetectTopology scans per-CPU topology files sequentially from index 0
// and stops at the first unreadable index; the CPU count equals that
// index. For each CPU it records the owning package and, where core_id
// is available, deduplicates SMT siblings so that sampleCPUs holds one
// logical CPU per physical core. The AMD core energy counter is shared
// between sibling threads, so reading it once per physical core is both
// sufficient and avoids double counting.
func DetectTopology(sysfsPath string, logger *slog.Logger) *Topology {
	if logger == nil {
		logger = slog.Default()
	}

	topo := &Topology{
		pkgFirstCPU: make(map[int]int),
	}
	seenCores := make(map[coreKey]bool)

	for cpu := 0; ; cpu++ {
		contents, err := os.ReadFile(topologyFile(sysfsPath, cpu, "physical_package_id"))
		if err != nil {
			break
		}
		topo.cpus = cpu + 1

		// a malformed id still counts the CPU, it just lands in a
		// catch-all package bucket
		pkg, err := strconv.Atoi(strings.TrimSpace(string(contents)))
		if err != nil {
			logger.Warn("Malformed package id", "cpu", cpu, "error", err)
			pkg = -1
		}

		if _, seen := topo.pkgFirstCPU[pkg]; !seen {
			topo.pkgFirstCPU[pkg] = cpu
		}

		// core_id may be absent on restricted sysfs; fall back to
		// treating every logical CPU as its own core
		core, err := readTopologyID(sysfsPath, cpu, "core_id")
		if err != nil {
			core = cpu
		}

		key := coreKey{pkg: pkg, core: core}
		if !seenCores[key] {
			seenCores[key] = true
			topo.sampleCPUs = append(topo.sampleCPUs, cpu)
		}
	}

	sort.Ints(topo.sampleCPUs)
	logger.Info("Detected CPU topology",
		"cpus", topo.cpus,
		"packages", len(topo.pkgFirstCPU),
		"sampled_cores", len(topo.sampleCPUs))

	return topo
}

// CPUs returns the number of logical CPUs found by the scan. Zero means
// no usable CPUs; callers must treat that as "nothing to sample".
func (t *Topology) CPUs() int {
	return t.cpus
}

// SampleCPUs returns the logical CPUs to sample, one per physical core.
func (t *Topology) SampleCPUs() []int {
	cpus := make([]int, len(t.sampleCPUs))
	copy(cpus, t.sampleCPUs)
	return cpus
}

// PackageFirstCPU returns the designated logical CPU per package id. The
// designated CPU is the first one seen on the package and is always part
// of SampleCPUs.
func (t *Topology) PackageFirstCPU() map[int]int {
	m := make(map[int]int, len(t.pkgFirstCPU))
	for pkg, cpu := range t.pkgFirstCPU {
		m[pkg] = cpu
	}
	return m
}

func readTopologyID(sysfsPath string, cpu int, name string) (int, error) {
	contents, err := os.ReadFile(topologyFile(sysfsPath, cpu, name))
	if err != nil {
		return 0, err
	}

	id, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		return 0, fmt.Errorf("malformed topology file cpu%d/%s: %w", cpu, name, err)
	}
	return id, nil
}

func topologyFile(sysfsPath string, cpu int, name string) string {
	return filepath.Join(sysfsPath, "devices", "system", "cpu",
		fmt.Sprintf("cpu%d", cpu), "topology", name)
}
