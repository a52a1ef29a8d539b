// Package msr reads model specific registers through the Linux msr driver.
package msr

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const DevicePath = "/dev/cpu/%d/msr"

// IA32_PERFEVTSEL0..3
const (
	PerfEvtSel0     = 0x186
	NumPerfEvtSel   = 4
	perfEvtSelEnBit = 22
)

// Reader reads the MSRs of one CPU. Each byte offset of dev selects one
// 64-bit register, as the msr driver does.
type Reader struct {
	cpu int
	dev io.ReaderAt
}

// device is an open msr driver file.
type device int

func (d device) ReadAt(buf []byte, off int64) (int, error) { return unix.Pread(int(d), buf, off) }

func (d device) Close() error { return unix.Close(int(d)) }

// NewReader returns a Reader for cpu over dev.
func NewReader(cpu int, dev io.ReaderAt) *Reader {
	return &Reader{cpu: cpu, dev: dev}
}

// Open opens the msr device of cpu. pathFormat defaults to DevicePath.
func Open(pathFormat string, cpu int) (*Reader, error) {
	if pathFormat == "" {
		pathFormat = DevicePath
	}
	path := fmt.Sprintf(pathFormat, cpu)
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("MSR device not found at %s, please load the driver using modprobe msr command", path))
	}
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't open the msr interface %s", path)
	}
	return NewReader(cpu, device(fd)), nil
}

// Read returns the value of register reg.
func (r *Reader) Read(reg int64) (uint64, error) {
	buf := make([]byte, 8)
	n, err := r.dev.ReadAt(buf, reg)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read msr 0x%x on cpu %d", reg, r.cpu)
	}
	if n != len(buf) {
		return 0, errors.Errorf("wrong byte count %d reading msr 0x%x on cpu %d", n, reg, r.cpu)
	}
	// x86 is little endian
	val := binary.LittleEndian.Uint64(buf)
	slog.Debug("read msr", slog.Int("cpu", r.cpu), slog.String("msr", fmt.Sprintf("0x%x", reg)), slog.String("value", fmt.Sprintf("0x%x", val)))
	return val, nil
}

// Close closes the device when it can be closed.
func (r *Reader) Close() error {
	if c, ok := r.dev.(io.Closer); ok {
		return errors.Wrap(c.Close(), "close msr device")
	}
	return nil
}

// EventSelect is the value of one IA32_PERFEVTSELx register.
type EventSelect struct {
	Index int
	Value uint64
}

// Enabled reports whether the counter's enable bit is set.
func (e EventSelect) Enabled() bool { return e.Value&(1<<perfEvtSelEnBit) != 0 }

// ReadEventSelects reads every general purpose IA32_PERFEVTSELx of the CPU.
func (r *Reader) ReadEventSelects() ([]EventSelect, error) {
	sels := make([]EventSelect, 0, NumPerfEvtSel)
	for i := range NumPerfEvtSel {
		v, err := r.Read(int64(PerfEvtSel0 + i))
		if err != nil {
			return nil, err
		}
		sels = append(sels, EventSelect{Index: i, Value: v})
	}
	return sels, nil
}
