package sample

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import "sync"

// Buffer is one drained chunk of a ring.
type Buffer struct {
	Source int // index of the event that produced it
	Data   []byte
}

// BufferLog is an append-only list of drained buffers shared by the
// goroutines draining each ring.
type BufferLog struct {
	mu   sync.Mutex
	bufs []Buffer
}

// Append records data drained from source. Empty buffers are dropped.
func (l *BufferLog) Append(source int, data []byte) {
	if len(data) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bufs = append(l.bufs, Buffer{Source: source, Data: data})
}

func (l *BufferLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bufs)
}

// Bytes returns the total size of the buffers.
func (l *BufferLog) Bytes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, b := range l.bufs {
		n += len(b.Data)
	}
	return n
}

// Each calls fn for every buffer in append order while holding the log.
// An error from fn stops the traversal and is returned.
func (l *BufferLog) Each(fn func(Buffer) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.bufs {
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}
