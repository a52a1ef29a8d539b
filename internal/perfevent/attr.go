// Package perfevent opens encoded events as Linux perf sampling events and
// drains their rings into a sample.BufferLog.
package perfevent

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"math/bits"
	"unsafe"

	"pmutool/internal/pmu"
	"pmutool/internal/sample"

	"golang.org/x/sys/unix"
)

// register bits the kernel owns; they are derived from the attr bits instead
const kernelOwnedBits = 1<<16 | 1<<17 | 1<<20 | 1<<22 // usr, os, int, en

const (
	DefaultPeriod = 1000
	DefaultPages  = 64
)

// Options configure the perf events of a session.
type Options struct {
	PID    int    // -1 for every thread on CPU
	CPU    int    // -1 for any CPU
	Period uint64 // events between samples
	Pages  int    // ring data pages, a power of two
}

func (o Options) validate() error {
	if o.PID == -1 && o.CPU == -1 {
		return fmt.Errorf("a pid or a cpu is required")
	}
	if o.Period == 0 {
		return fmt.Errorf("sample period must be greater than zero")
	}
	if o.Pages <= 0 || o.Pages&(o.Pages-1) != 0 {
		return fmt.Errorf("ring pages must be a power of two, got %d", o.Pages)
	}
	return nil
}

// Attr builds the perf_event_attr sampling enc as a raw event.
func Attr(enc pmu.Encoding, opts Options) (*unix.PerfEventAttr, error) {
	if len(enc.Codes) == 0 {
		return nil, fmt.Errorf("event %s has no codes: %w", enc.Fstr, pmu.ErrNotSupported)
	}
	attr := &unix.PerfEventAttr{
		Type:        unix.PERF_TYPE_RAW,
		Size:        uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
		Config:      enc.Codes[0] &^ kernelOwnedBits,
		Sample:      opts.Period,
		Sample_type: sample.SampleType,
		Wakeup:      1,
		Bits:        unix.PerfBitDisabled | unix.PerfBitExcludeHv | unix.PerfBitPreciseIPBit2,
	}
	if len(enc.Codes) > 1 {
		attr.Ext1 = enc.Codes[1]
	}
	if enc.PLM&pmu.PLM3 == 0 {
		attr.Bits |= unix.PerfBitExcludeUser
	}
	if enc.PLM&pmu.PLM0 == 0 {
		attr.Bits |= unix.PerfBitExcludeKernel
	}
	return attr, nil
}

// pagesShift returns n for a ring of 2^n data pages.
func pagesShift(pages int) uint {
	return uint(bits.TrailingZeros(uint(pages)))
}
