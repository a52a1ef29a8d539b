package progress

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestMultiSpinnerLabels(t *testing.T) {
	ms := NewMultiSpinnerWriter(&syncBuffer{}, false)
	require.NoError(t, ms.AddSpinner("CYCLES"))
	require.NoError(t, ms.AddSpinner("INST_RETIRED"))
	assert.Error(t, ms.AddSpinner("CYCLES"))
	assert.Error(t, ms.Status("MISSING", "x"))
}

func TestMultiSpinnerNotTerminal(t *testing.T) {
	out := &syncBuffer{}
	ms := NewMultiSpinnerWriter(out, false)
	require.NoError(t, ms.AddSpinner("A"))
	require.NoError(t, ms.AddSpinner("B"))
	ms.Start()
	require.NoError(t, ms.Status("A", "100 samples"))
	require.NoError(t, ms.Status("A", "100 samples"))
	ms.Finish()
	ms.Finish()

	got := out.String()
	assert.Equal(t, 1, strings.Count(got, "100 samples"))
	assert.NotContains(t, got, "B  ")
	assert.NotContains(t, got, "\x1b[1A")
}

func TestMultiSpinnerTerminal(t *testing.T) {
	out := &syncBuffer{}
	ms := NewMultiSpinnerWriter(out, true)
	require.NoError(t, ms.AddSpinner("A"))
	ms.Start()
	require.NoError(t, ms.Status("A", "done"))
	ms.Finish()

	got := out.String()
	assert.Contains(t, got, "\x1b[1A")
	assert.True(t, strings.HasSuffix(strings.TrimRight(got, " \n"), "done"))
}

func TestMultiSpinnerConcurrentStatus(t *testing.T) {
	ms := NewMultiSpinnerWriter(&syncBuffer{}, true)
	ms.interval = 1
	require.NoError(t, ms.AddSpinner("A"))
	ms.Start()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				_ = ms.Status("A", strings.Repeat("x", (i+j)%5))
			}
		}()
	}
	wg.Wait()
	ms.Finish()
}
