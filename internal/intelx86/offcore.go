package intelx86

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"

	"pmutool/internal/pmu"
)

const (
	offcoreRequestGroup  = 0
	offcoreResponseGroup = 1
)

// encodeOffcoreResponse routes the request and response unit masks to the
// auxiliary MSR_OFFCORE_RSP register (bits 0-7 request, 8-15 response). The
// event select register keeps only its hardcoded unit mask.
func encodeOffcoreResponse(p *PMU, idx int, d pmu.Descriptor) (pmu.Encoding, error) {
	st, err := p.build(idx, d)
	if err != nil {
		return pmu.Encoding{}, err
	}
	if st.ev.NumGroups != 2 {
		return pmu.Encoding{}, fmt.Errorf("event %s: expected request and response groups: %w", st.ev.Name, pmu.ErrTableInvalid)
	}
	req := st.grpBits[offcoreRequestGroup] & 0xff
	rsp := st.grpBits[offcoreResponseGroup] & 0xff
	names := decodeUnitMasks(st.ev, req, offcoreRequestGroup)
	names = append(names, decodeUnitMasks(st.ev, rsp, offcoreResponseGroup)...)
	return pmu.Encoding{
		Event: idx,
		Codes: []uint64{uint64(st.reg), req | rsp<<8},
		Fstr:  p.canonical(st.ev, names, st.reg, 0),
		PLM:   plmOf(st.reg),
	}, nil
}

var knownCustomEncoders = map[string]CustomEncoder{
	"OFFCORE_RESPONSE_0": encodeOffcoreResponse,
	"OFFCORE_RESPONSE_1": encodeOffcoreResponse,
}

// CustomEncodersFor returns the known custom encoders for the events of t
// flagged ENCODER.
func CustomEncodersFor(t pmu.Table) map[string]CustomEncoder {
	custom := make(map[string]CustomEncoder)
	for i := range t.Len() {
		ev := t.Event(i)
		if ev.Flags&pmu.FlagEncoder == 0 {
			continue
		}
		if enc, ok := knownCustomEncoders[ev.Name]; ok {
			custom[ev.Name] = enc
		}
	}
	return custom
}
