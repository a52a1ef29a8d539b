// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

/*
Package progress shows live sampling status, one line per event.
*/
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

var spinChars []string = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

type spinnerState struct {
	label       string
	status      string
	statusIsNew bool
	spinIndex   int
}

// MultiSpinner draws a spinner per label. On a terminal it redraws in place;
// otherwise only changed statuses are written, one line each.
type MultiSpinner struct {
	mu       sync.Mutex
	out      io.Writer
	tty      bool
	interval time.Duration
	spinners []spinnerState
	done     chan struct{}
	wg       sync.WaitGroup
	spinning bool
}

// NewMultiSpinner creates a MultiSpinner that writes to stderr.
func NewMultiSpinner() *MultiSpinner {
	return NewMultiSpinnerWriter(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))
}

// NewMultiSpinnerWriter creates a MultiSpinner that writes to out.
func NewMultiSpinnerWriter(out io.Writer, tty bool) *MultiSpinner {
	return &MultiSpinner{out: out, tty: tty, interval: 250 * time.Millisecond}
}

// AddSpinner adds a spinner with a unique label.
func (ms *MultiSpinner) AddSpinner(label string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, spinner := range ms.spinners {
		if spinner.label == label {
			return fmt.Errorf("spinner with label %s already exists", label)
		}
	}
	ms.spinners = append(ms.spinners, spinnerState{label: label, status: "?"})
	return nil
}

// Start draws the spinners and begins redrawing them periodically.
func (ms *MultiSpinner) Start() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.spinning {
		return
	}
	ms.draw(true)
	ms.done = make(chan struct{})
	ms.spinning = true
	ms.wg.Add(1)
	go ms.onTick(ms.done)
}

// Finish stops the redraw loop and draws the final statuses.
func (ms *MultiSpinner) Finish() {
	ms.mu.Lock()
	if !ms.spinning {
		ms.mu.Unlock()
		return
	}
	ms.spinning = false
	close(ms.done)
	ms.mu.Unlock()
	ms.wg.Wait()
	ms.mu.Lock()
	ms.draw(false)
	ms.mu.Unlock()
}

// Status updates the status of the spinner with the given label.
func (ms *MultiSpinner) Status(label string, status string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for i := range ms.spinners {
		if ms.spinners[i].label == label {
			if status != ms.spinners[i].status {
				ms.spinners[i].status = status
				ms.spinners[i].statusIsNew = true
			}
			return nil
		}
	}
	return fmt.Errorf("did not find spinner with label %s", label)
}

func (ms *MultiSpinner) onTick(done <-chan struct{}) {
	defer ms.wg.Done()
	ticker := time.NewTicker(ms.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ms.mu.Lock()
			ms.draw(true)
			ms.mu.Unlock()
		}
	}
}

// draw must be called with mu held.
func (ms *MultiSpinner) draw(goUp bool) {
	for i, spinner := range ms.spinners {
		if !ms.tty && !spinner.statusIsNew {
			continue
		}
		fmt.Fprintf(ms.out, "%-20s  %s  %-40s\n", spinner.label, spinChars[spinner.spinIndex], spinner.status)
		ms.spinners[i].statusIsNew = false
		ms.spinners[i].spinIndex = (spinner.spinIndex + 1) % len(spinChars)
	}
	if goUp && ms.tty {
		for range ms.spinners {
			fmt.Fprint(ms.out, "\x1b[1A")
		}
	}
}
