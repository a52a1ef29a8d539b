package intelx86

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"strings"
)

// IA32_PERFEVTSELx bit positions
const (
	bitUsr     = 16
	bitOS      = 17
	bitEdge    = 18
	bitPC      = 19
	bitInt     = 20
	bitAny     = 21
	bitEn      = 22
	bitInv     = 23
	cmaskShift = 24
	umaskShift = 8
)

// Register is the value of a performance event select register.
type Register uint64

func (r Register) bit(n uint) uint64 { return (uint64(r) >> n) & 1 }

func (r *Register) setBit(n uint, on bool) {
	if on {
		*r |= 1 << n
	} else {
		*r &^= 1 << n
	}
}

func (r Register) EventSelect() uint8 { return uint8(r) }
func (r Register) UnitMask() uint8    { return uint8(r >> umaskShift) }
func (r Register) CounterMask() uint8 { return uint8(r >> cmaskShift) }
func (r Register) Usr() bool          { return r.bit(bitUsr) == 1 }
func (r Register) OS() bool           { return r.bit(bitOS) == 1 }
func (r Register) Edge() bool         { return r.bit(bitEdge) == 1 }
func (r Register) Int() bool          { return r.bit(bitInt) == 1 }
func (r Register) Any() bool          { return r.bit(bitAny) == 1 }
func (r Register) Enable() bool       { return r.bit(bitEn) == 1 }
func (r Register) Inv() bool          { return r.bit(bitInv) == 1 }

func (r *Register) setCounterMask(v uint8) {
	*r = (*r &^ (0xff << cmaskShift)) | Register(v)<<cmaskShift
}

// Format renders the register fields. The any-thread field exists from
// architecture version 3.
func (r Register) Format(archVersion int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[0x%x event_sel=0x%x umask=0x%x os=%d usr=%d en=%d int=%d inv=%d edge=%d cnt_mask=%d",
		uint64(r), r.EventSelect(), r.UnitMask(), r.bit(bitOS), r.bit(bitUsr), r.bit(bitEn),
		r.bit(bitInt), r.bit(bitInv), r.bit(bitEdge), r.CounterMask())
	if archVersion > 2 {
		fmt.Fprintf(&sb, " any=%d", r.bit(bitAny))
	}
	sb.WriteString("]")
	return sb.String()
}

func (r Register) String() string { return r.Format(3) }
