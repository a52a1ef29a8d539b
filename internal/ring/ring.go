// Package ring reads sample records out of a perf_event mmap ring buffer.
//
// The kernel appends records and advances data_head; the reader copies the
// pending bytes out and publishes data_tail. Head is loaded before tail and
// the tail store happens only after the copy, so the kernel never overwrites
// bytes still being read.
package ring

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Ring is one perf mmap region: a metadata page followed by a power of two
// sized data area.
type Ring struct {
	meta    *unix.PerfEventMmapPage // metadata page: at &mapping[0]
	data    []byte                  // circular data area
	mapping []byte                  // nil when the memory is not owned
}

// New maps the ring of perf event fd with 2^n data pages.
func New(fd int, n uint) (*Ring, error) {
	pageSize := unix.Getpagesize()
	size := (1 + (1 << n)) * pageSize
	mapping, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, os.NewSyscallError("mmap", err)
	}
	meta := (*unix.PerfEventMmapPage)(unsafe.Pointer(&mapping[0]))
	offset, dataSize := meta.Data_offset, meta.Data_size
	if offset == 0 {
		// kernels before 4.1 leave data_offset and data_size zero
		offset, dataSize = uint64(pageSize), uint64(size-pageSize)
	}
	if offset+dataSize > uint64(len(mapping)) {
		_ = unix.Munmap(mapping)
		return nil, fmt.Errorf("ring data area [%d, %d) exceeds mapping of %d bytes", offset, offset+dataSize, len(mapping))
	}
	return &Ring{meta: meta, data: mapping[offset : offset+dataSize], mapping: mapping}, nil
}

// NewWithData wraps a metadata page and data area that the caller owns.
func NewWithData(meta *unix.PerfEventMmapPage, data []byte) *Ring {
	return &Ring{meta: meta, data: data}
}

// Size returns the size of the circular data area in bytes.
func (r *Ring) Size() int { return len(r.data) }

// Pending reports whether the kernel has written records not yet drained.
func (r *Ring) Pending() bool {
	return atomic.LoadUint64(&r.meta.Data_head) != atomic.LoadUint64(&r.meta.Data_tail)
}

// Drain appends every pending byte to dst, in write order, and marks them
// consumed. It returns dst unchanged when the ring is idle.
func (r *Ring) Drain(dst []byte) []byte {
	size := uint64(len(r.data))
	if size == 0 {
		return dst
	}
	head := atomic.LoadUint64(&r.meta.Data_head)
	tail := atomic.LoadUint64(&r.meta.Data_tail)
	if head == tail {
		return dst
	}
	// head and tail grow without bound; positions are taken modulo size
	h, t := head%size, tail%size
	var n uint64
	switch {
	case head > tail && head-tail <= size:
		n = head - tail
	case head > tail:
		slog.Warn("ring overrun, records lost", slog.Uint64("head", head), slog.Uint64("tail", tail), slog.Uint64("size", size))
		n = size
		t = h
	default:
		n = (h + size - t) % size
		if n == 0 {
			n = size
		}
	}
	if t+n <= size {
		dst = append(dst, r.data[t:t+n]...)
	} else {
		dst = append(dst, r.data[t:]...)
		dst = append(dst, r.data[:t+n-size]...)
	}
	atomic.StoreUint64(&r.meta.Data_tail, head)
	return dst
}

// Close unmaps the ring if New mapped it.
func (r *Ring) Close() error {
	if r.mapping == nil {
		return nil
	}
	err := unix.Munmap(r.mapping)
	r.mapping, r.data, r.meta = nil, nil, nil
	if err != nil {
		return os.NewSyscallError("munmap", err)
	}
	return nil
}
