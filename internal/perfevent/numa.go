package perfevent

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// QueryNodes returns the NUMA node holding the page of each address in the
// address space of pid. A negative entry is the negated errno move_pages
// reported for that page, e.g., -ENOENT for a page not present.
func QueryNodes(pid int, addrs []uint64) ([]int, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	pageMask := ^uint64(unix.Getpagesize() - 1) // #nosec G115
	pages := make([]uintptr, len(addrs))
	for i, addr := range addrs {
		pages[i] = uintptr(addr & pageMask)
	}
	status := make([]int32, len(addrs))
	// a nil node list makes move_pages report placement without moving
	_, _, errno := unix.Syscall6(unix.SYS_MOVE_PAGES,
		uintptr(pid), // #nosec G115
		uintptr(len(pages)),
		uintptr(unsafe.Pointer(&pages[0])),
		0,
		uintptr(unsafe.Pointer(&status[0])),
		0)
	if errno != 0 {
		return nil, os.NewSyscallError("move_pages", errno)
	}
	nodes := make([]int, len(status))
	for i, s := range status {
		nodes[i] = int(s)
	}
	return nodes, nil
}
