// SPDX-FileCopyrightText: 2026 The Ryzenmon Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"time"

	"github.com/pvetools/ryzenmon/internal/device"
)

// PowerMetrics is the outcome of one sampling cycle. It is constructed,
// published and dropped within a single loop iteration; only the most
// recent value is retained for scraping.
type PowerMetrics struct {
	Timestamp time.Time

	// CPUs holds the sampled logical CPU indices, aligned with CoreWatts.
	CPUs      []int
	CoreWatts []device.Power

	// CoreTotal is the sum of CoreWatts.
	CoreTotal device.Power

	// CoreEnergy is the total core energy accrued during the window.
	CoreEnergy device.Energy

	// PackageWatts sums the per-package power, where each package
	// contributes the delta read on its designated CPU.
	PackageWatts device.Power
	PerPackage   map[int]device.Power
}

// Stats counts loop outcomes since startup.
type Stats struct {
	Cycles          uint64
	SampleFailures  uint64
	PublishFailures uint64
}
