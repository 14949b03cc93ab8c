// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session drives one diagnostic session against a fused-orientation
// sensor: report subscriptions, the polling loop, freshness filtering,
// time-gated one-shot commands and the calibration workflow.
//
// A Session owns all of its state and is driven by a single goroutine; none
// of its methods are safe for concurrent use.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/bno_diagnostics/internal/bno"
)

// Tick describes one loop iteration.
type Tick struct {
	// Index is 1-based.
	Index int
	// Elapsed is measured from session start, not from the previous tick.
	Elapsed time.Duration
	// Ready is the driver's Update result for this tick.
	Ready bool
}

// Hooks receive loop events. Any of them may be nil.
type Hooks struct {
	Sample   func(Tick, bno.Sample)
	NotReady func(Tick)
	Command  func(Tick, Fired)
	// Persist reports the outcome of an external persist trigger.
	Persist func(Tick, error)
	// TickDone is called once per tick after all processing.
	TickDone func(Tick)
}

// LoopConfig bounds and paces the polling loop.
type LoopConfig struct {
	// Tick is the sleep between iterations. Independent of report intervals.
	Tick time.Duration
	// MaxTicks stops the loop after that many iterations; 0 runs until
	// the context is cancelled.
	MaxTicks int
}

// Result summarizes a finished run.
type Result struct {
	Ticks         int
	NotReady      int
	Samples       map[bno.ReportType]int
	Commands      int
	CommandErrors int
	Calibration   CalibrationState
	Elapsed       time.Duration
}

// TotalSamples is the number of samples delivered across all reports.
func (r Result) TotalSamples() int {
	n := 0
	for _, c := range r.Samples {
		n += c
	}
	return n
}

// Session is the context for one diagnostic run against a single driver.
type Session struct {
	driver bno.Driver
	clock  Clock

	Registry  *Registry
	Freshness *FreshnessTracker
	Sequencer *Sequencer

	calibration *Calibration
	triggers    <-chan struct{}
	hooks       Hooks
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(s *Session) { s.clock = c } }

// WithHooks installs loop event hooks.
func WithHooks(h Hooks) Option { return func(s *Session) { s.hooks = h } }

// WithTriggers supplies external persist trigger events, polled once per tick.
func WithTriggers(ch <-chan struct{}) Option { return func(s *Session) { s.triggers = ch } }

func New(d bno.Driver, opts ...Option) *Session {
	reg := NewRegistry(d)
	s := &Session{
		driver:    d,
		clock:     SystemClock{},
		Registry:  reg,
		Freshness: NewFreshnessTracker(d, reg),
		Sequencer: NewSequencer(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Driver returns the driver the session was built with.
func (s *Session) Driver() bno.Driver { return s.driver }

// StartCalibration creates and activates the calibration workflow.
// On ErrCalibrationUnsupported the workflow is Failed and Run refuses to start.
func (s *Session) StartCalibration(mode CalibrationMode, axes Axes, interval time.Duration, onTransition func(from, to CalibrationState)) error {
	if s.calibration != nil {
		return errors.New("calibration workflow already started")
	}
	s.calibration = NewCalibration(s.driver, s.Registry, mode)
	s.calibration.OnTransition = onTransition
	return s.calibration.Activate(axes, interval)
}

// Calibration returns the workflow, or nil when none was started.
func (s *Session) Calibration() *Calibration { return s.calibration }

// Run polls the driver until cfg.MaxTicks iterations have run or ctx is
// cancelled. Cancellation is checked once per tick and only ever ends the
// loop between ticks; it is a normal stop and returns a nil error.
//
// Within a tick, fresh samples are delivered before the calibration workflow
// observes accuracy, and the sequencer always advances with the tick's
// elapsed time even when the driver had no data.
func (s *Session) Run(ctx context.Context, cfg LoopConfig) (res Result, err error) {
	res.Samples = make(map[bno.ReportType]int)
	if cfg.Tick <= 0 {
		return res, fmt.Errorf("loop tick must be positive, got %v", cfg.Tick)
	}
	if s.calibration != nil && s.calibration.State() == Failed {
		res.Calibration = Failed
		return res, ErrCalibrationUnsupported
	}

	start := s.clock.Now()
	defer func() {
		res.Elapsed = s.clock.Now().Sub(start)
		if s.calibration != nil {
			res.Calibration = s.calibration.State()
		}
	}()

	for i := 1; cfg.MaxTicks == 0 || i <= cfg.MaxTicks; i++ {
		if ctx.Err() != nil {
			return res, nil
		}
		if s.clock.Sleep(ctx, cfg.Tick) != nil {
			return res, nil
		}

		tick := Tick{Index: i, Elapsed: s.clock.Now().Sub(start)}
		s.step(&tick, &res)
		res.Ticks++
		if s.hooks.TickDone != nil {
			s.hooks.TickDone(tick)
		}
	}
	return res, nil
}

func (s *Session) step(tick *Tick, res *Result) {
	tick.Ready = s.driver.Update()
	if tick.Ready {
		s.Freshness.Mark()
		for _, smp := range s.Freshness.Collect() {
			res.Samples[smp.Report()]++
			if s.hooks.Sample != nil {
				s.hooks.Sample(*tick, smp)
			}
		}
		if s.calibration != nil {
			s.calibration.Observe(s.calibration.ReadStatus())
		}
	} else {
		res.NotReady++
		if s.hooks.NotReady != nil {
			s.hooks.NotReady(*tick)
		}
	}

	fired, err := s.Sequencer.Advance(tick.Elapsed)
	if err != nil {
		log.Printf("session: command error at %v: %v", tick.Elapsed, err)
	}
	for _, f := range fired {
		res.Commands++
		if f.Err != nil {
			res.CommandErrors++
		}
		if s.hooks.Command != nil {
			s.hooks.Command(*tick, f)
		}
	}

	s.pollTrigger(*tick)
}

// pollTrigger consumes at most one pending persist trigger.
func (s *Session) pollTrigger(tick Tick) {
	if s.triggers == nil || s.calibration == nil {
		return
	}
	select {
	case _, ok := <-s.triggers:
		if !ok {
			s.triggers = nil
			return
		}
		err := s.calibration.Persist()
		if s.hooks.Persist != nil {
			s.hooks.Persist(tick, err)
		}
	default:
	}
}

// Connect calls the driver's Connect until it succeeds, waiting retryDelay
// between attempts. It returns the number of attempts made.
func Connect(ctx context.Context, d bno.Driver, clock Clock, retryDelay time.Duration) (int, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	for attempt := 1; ; attempt++ {
		if d.Connect() {
			return attempt, nil
		}
		log.Printf("session: failed to connect to IMU (attempt %d), retrying in %v", attempt, retryDelay)
		if err := clock.Sleep(ctx, retryDelay); err != nil {
			return attempt, fmt.Errorf("connect: %w", err)
		}
	}
}
