package perfevent

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"pmutool/internal/pmu"
	"pmutool/internal/ring"
	"pmutool/internal/sample"

	"golang.org/x/sys/unix"
)

const pollTimeout = 100 * time.Millisecond

// Event is one open sampling event and its ring.
type Event struct {
	Name string
	fd   int
	ring *ring.Ring
}

// Session owns the events of one sampling run and the buffers drained
// from them.
type Session struct {
	events []*Event
	log    sample.BufferLog
}

// Open opens every encoding as a disabled sampling event.
func Open(encs []pmu.Encoding, opts Options) (*Session, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	s := &Session{}
	for _, enc := range encs {
		ev, err := openEvent(enc, opts)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.events = append(s.events, ev)
	}
	return s, nil
}

func openEvent(enc pmu.Encoding, opts Options) (*Event, error) {
	attr, err := Attr(enc, opts)
	if err != nil {
		return nil, err
	}
	fd, err := unix.PerfEventOpen(attr, opts.PID, opts.CPU, -1, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", enc.Fstr, os.NewSyscallError("perf_event_open", err))
	}
	r, err := ring.New(fd, pagesShift(opts.Pages))
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("event %s: %w", enc.Fstr, err)
	}
	slog.Debug("opened sampling event", slog.String("event", enc.Fstr), slog.Int("fd", fd), slog.String("config", fmt.Sprintf("0x%x", attr.Config)), slog.Int("ring_bytes", r.Size()))
	return &Event{Name: enc.Fstr, fd: fd, ring: r}, nil
}

func (s *Session) Events() []*Event { return s.events }

// Log returns the buffers drained so far.
func (s *Session) Log() *sample.BufferLog { return &s.log }

func (s *Session) ioctl(req uint, name string) error {
	for _, ev := range s.events {
		if err := unix.IoctlSetInt(ev.fd, req, 0); err != nil {
			return fmt.Errorf("event %s: %w", ev.Name, os.NewSyscallError(name, err))
		}
	}
	return nil
}

func (s *Session) Enable() error  { return s.ioctl(unix.PERF_EVENT_IOC_ENABLE, "PERF_EVENT_IOC_ENABLE") }
func (s *Session) Disable() error { return s.ioctl(unix.PERF_EVENT_IOC_DISABLE, "PERF_EVENT_IOC_DISABLE") }

// Run enables the events and drains each ring from its own goroutine until
// ctx is done. The events are disabled and drained one last time before
// Run returns.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Enable(); err != nil {
		return err
	}
	var wg sync.WaitGroup
	errs := make([]error, len(s.events))
	for i, ev := range s.events {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.drainLoop(ctx, i, ev)
		}()
	}
	wg.Wait()
	disableErr := s.Disable()
	for i, ev := range s.events {
		s.log.Append(i, ev.ring.Drain(nil))
	}
	return errors.Join(append(errs, disableErr)...)
}

func (s *Session) drainLoop(ctx context.Context, source int, ev *Event) error {
	fds := []unix.PollFd{{Fd: int32(ev.fd), Events: unix.POLLIN}} // #nosec G115
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		n, err := unix.Poll(fds, int(pollTimeout/time.Millisecond))
		if err != nil && !errors.Is(err, unix.EINTR) {
			return fmt.Errorf("event %s: %w", ev.Name, os.NewSyscallError("poll", err))
		}
		if n > 0 && fds[0].Revents&unix.POLLHUP != 0 {
			// the monitored task exited
			s.log.Append(source, ev.ring.Drain(nil))
			slog.Info("sampled task exited", slog.String("event", ev.Name))
			<-ctx.Done()
			return nil
		}
		if ev.ring.Pending() {
			s.log.Append(source, ev.ring.Drain(nil))
		}
	}
}

// Close unmaps the rings and closes the events.
func (s *Session) Close() error {
	var errs []error
	for _, ev := range s.events {
		if err := ev.ring.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := unix.Close(ev.fd); err != nil {
			errs = append(errs, os.NewSyscallError("close", err))
		}
	}
	s.events = nil
	return errors.Join(errs...)
}
