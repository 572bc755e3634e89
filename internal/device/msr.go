// SPDX-FileCopyrightText: 2026 The Ryzenmon Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"encoding/binary"
	"fmt"
	"os"
)

// MSR register addresses for AMD family 17h+ RAPL energy counters
const (
	// MSRPowerUnit - power unit register containing the energy scaling exponent
	MSRPowerUnit = 0xC0010299

	// Energy counters (32-bit, wrap at 2^32)
	MSRCoreEnergy    = 0xC001029A // per-core energy counter
	MSRPackageEnergy = 0xC001029B // per-package energy counter

	// energyUnitMask selects bits 12:8 of the power unit register
	energyUnitMask = 0x1F00
)

// DefaultMSRPath is the device path template for per-CPU MSR access,
// parameterized by the logical CPU index.
const DefaultMSRPath = "/dev/cpu/%d/msr"

// MSR provides raw register access for one logical CPU through the msr
// device interface. Registers are addressed by using the register number
// as the byte offset into the device.
type MSR struct {
	cpu  int
	file *os.File
}

// OpenMSR opens the MSR device of the given logical CPU read-only.
// pathTemplate must contain a single %d verb for the CPU index.
func OpenMSR(pathTemplate string, cpu int) (*MSR, error) {
	path := fmt.Sprintf(pathTemplate, cpu)
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open MSR device %s: %w", path, err)
	}
	return &MSR{cpu: cpu, file: file}, nil
}

// CPU returns the logical CPU index this MSR device belongs to.
func (m *MSR) CPU() int {
	return m.cpu
}

// Read reads the 64-bit register at the given address. A short read is
// reported as an error by ReadAt, so the result is always all 8 bytes.
func (m *MSR) Read(address uint32) (uint64, error) {
	buf := make([]byte, 8)
	if _, err := m.file.ReadAt(buf, int64(address)); err != nil {
		return 0, fmt.Errorf("failed to read MSR 0x%x on cpu %d: %w", address, m.cpu, err)
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// Close releases the underlying device handle.
func (m *MSR) Close() error {
	return m.file.Close()
}

// RegisterReader reads 64-bit registers by address.
type RegisterReader interface {
	Read(address uint32) (uint64, error)
}

// ReadEnergyUnit reads the power unit register and returns the energy
// scale in microjoules per counter LSB. The register holds a 5-bit
// exponent E in bits 12:8; one count equals 2^-E joules.
func ReadEnergyUnit(r RegisterReader) (float64, error) {
	raw, err := r.Read(MSRPowerUnit)
	if err != nil {
		return 0, fmt.Errorf("failed to read power unit register: %w", err)
	}

	exponent := (raw & energyUnitMask) >> 8
	return 1_000_000.0 / float64(uint64(1)<<exponent), nil
}

// EnergyCounterDelta returns the number of counts accumulated between
// two readings of a 32-bit energy counter. A wrap during the interval
// shows up as curr < prev; computing the difference in uint32 space is
// equivalent to (curr - prev + 2^32) mod 2^32 and yields the true
// positive delta. Bits above the counter width are ignored.
func EnergyCounterDelta(prev, curr uint64) uint64 {
	return uint64(uint32(curr) - uint32(prev))
}
