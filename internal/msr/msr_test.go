package msr

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeDevice answers one 64-bit register per offset. Registers not in the
// map fail with EIO like unsupported MSRs do.
type fakeDevice map[int64]uint64

func (d fakeDevice) ReadAt(buf []byte, off int64) (int, error) {
	v, ok := d[off]
	if !ok {
		return 0, unix.EIO
	}
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], v)
	return copy(buf, raw[:]), nil
}

// shortDevice returns half a register.
type shortDevice struct{}

func (shortDevice) ReadAt(buf []byte, _ int64) (int, error) { return 4, nil }

func TestReadEventSelects(t *testing.T) {
	r := NewReader(3, fakeDevice{
		0x186: 0x53003c,
		0x187: 0x1100c0,
		0x188: 0,
		0x189: 0x5301cd,
	})
	defer r.Close()

	sels, err := r.ReadEventSelects()
	require.NoError(t, err)
	require.Len(t, sels, 4)
	assert.Equal(t, EventSelect{Index: 0, Value: 0x53003c}, sels[0])
	assert.True(t, sels[0].Enabled())
	assert.Equal(t, uint64(0x1100c0), sels[1].Value)
	assert.False(t, sels[1].Enabled())
	assert.Zero(t, sels[2].Value)
	assert.Equal(t, EventSelect{Index: 3, Value: 0x5301cd}, sels[3])
}

func TestReadErrors(t *testing.T) {
	r := NewReader(3, fakeDevice{0x186: 1})
	_, err := r.ReadEventSelects()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "msr 0x187 on cpu 3")
	assert.ErrorIs(t, err, unix.EIO)

	_, err = NewReader(0, shortDevice{}).Read(0x186)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong byte count 4")
	assert.NoError(t, NewReader(0, shortDevice{}).Close())
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "cpu%d"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "modprobe msr")
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}
