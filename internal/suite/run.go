// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package suite

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/relabs-tech/bno_diagnostics/internal/bno"
	"github.com/relabs-tech/bno_diagnostics/internal/publish"
	"github.com/relabs-tech/bno_diagnostics/internal/session"
)

// Env is what a test runs against.
type Env struct {
	Driver bno.Driver
	Out    io.Writer
	// Sinks receive every event in addition to the console.
	Sinks []publish.Sink
	Clock session.Clock
	// CommandDelay is the session time after which one-shot commands fire.
	CommandDelay time.Duration
	// MaxTicks bounds streaming tests; 0 runs until the context is done.
	MaxTicks int
	// Triggers are save requests for interactive calibration.
	Triggers <-chan struct{}
}

// ticker is implemented by sinks that count loop iterations.
type ticker interface {
	Tick(session.Tick)
}

// Run dispatches test n. Exactly one test runs per call.
func Run(ctx context.Context, n int, e *Env) (session.Result, error) {
	t, err := Lookup(n)
	if err != nil {
		return session.Result{}, err
	}
	log.Printf("suite: running test %d (%s)", t.Number, t.Slug)
	fmt.Fprintf(e.Out, "Running test %d:\n\n", t.Number)
	if t.Intro != "" {
		fmt.Fprintln(e.Out, t.Intro)
	}
	if !t.Streaming() {
		return session.Result{}, t.oneShot(e)
	}
	return e.stream(ctx, t)
}

func (e *Env) stream(ctx context.Context, t Test) (session.Result, error) {
	console := &publish.Console{W: e.Out, ShowNotReady: t.ShowNotReady, CalibrationHint: t.Calibration != nil}
	sinks := append(publish.Multi{console}, e.Sinks...)

	var tickers []ticker
	for _, k := range e.Sinks {
		if tk, ok := k.(ticker); ok {
			tickers = append(tickers, tk)
		}
	}

	opts := []session.Option{session.WithHooks(session.Hooks{
		Sample:   sinks.Sample,
		NotReady: sinks.NotReady,
		Command:  sinks.Command,
		Persist:  sinks.Persist,
		TickDone: func(tick session.Tick) {
			for _, tk := range tickers {
				tk.Tick(tick)
			}
		},
	})}
	if e.Clock != nil {
		opts = append(opts, session.WithClock(e.Clock))
	}
	if t.Calibration != nil && t.Calibration.Mode == session.InteractiveSave && e.Triggers != nil {
		opts = append(opts, session.WithTriggers(e.Triggers))
	}
	s := session.New(e.Driver, opts...)

	if plan := t.Calibration; plan != nil {
		err := s.StartCalibration(plan.Mode, plan.Axes, plan.Interval, func(from, to session.CalibrationState) {
			sinks.Calibration(from, to, s.Calibration().LastStatus())
		})
		if err != nil {
			return session.Result{Calibration: s.Calibration().State()}, fmt.Errorf("test %d: %w", t.Number, err)
		}
	}
	for _, sub := range t.Reports {
		if err := s.Registry.Enable(sub.Report, sub.Interval); err != nil {
			return session.Result{}, fmt.Errorf("test %d: %w", t.Number, err)
		}
	}
	for _, c := range t.Commands {
		c := c
		s.Sequencer.Schedule(c.Name, e.CommandDelay, func() error { return c.Action(s) })
	}

	res, err := s.Run(ctx, session.LoopConfig{Tick: t.Tick, MaxTicks: e.MaxTicks})
	if err != nil {
		return res, fmt.Errorf("test %d: %w", t.Number, err)
	}
	return res, nil
}

// PrintSummary writes the end-of-session totals.
func PrintSummary(w io.Writer, res session.Result) {
	fmt.Fprintf(w, "Ticks: %d (not ready: %d), elapsed %.3f s\n", res.Ticks, res.NotReady, res.Elapsed.Seconds())
	reports := make([]bno.ReportType, 0, len(res.Samples))
	for r := range res.Samples {
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i] < reports[j] })
	for _, r := range reports {
		fmt.Fprintf(w, "  %s: %d samples\n", r, res.Samples[r])
	}
	if res.Commands > 0 {
		fmt.Fprintf(w, "Commands fired: %d (%d failed)\n", res.Commands, res.CommandErrors)
	}
	if res.Calibration != session.NotStarted {
		fmt.Fprintf(w, "Calibration: %s\n", res.Calibration)
	}
}

var metadataReports = []struct {
	title  string
	report bno.ReportType
}{
	{"Linear Acceleration", bno.LinearAcceleration},
	{"Rotation Vector", bno.Rotation},
	{"Magnetic Field", bno.MagneticField},
	{"Tap Detector", bno.TapDetector},
}

func printMetadata(e *Env) error {
	for _, m := range metadataReports {
		fmt.Fprintf(e.Out, "Printing metadata for %s:\n", m.title)
		fmt.Fprintln(e.Out, e.Driver.DescribeReportMetadata(m.report))
	}
	return nil
}

func setPermanentOrientation(e *Env) error {
	fmt.Fprintln(e.Out, "Setting permanent sensor orientation...")
	clock := e.Clock
	if clock == nil {
		clock = session.SystemClock{}
	}
	start := clock.Now()
	// 180 degrees about Y; the zero quaternion restores the default.
	e.Driver.SetPermanentOrientation(remapQuaternion)
	fmt.Fprintf(e.Out, "Done setting orientation (took %.3f seconds)\n", clock.Now().Sub(start).Seconds())
	return nil
}

func printInfo(e *Env) error {
	info := e.Driver.Info()
	fmt.Fprintf(e.Out, "BNO080 reports as SW version %d.%d.%d, build %d, part no. %d\n",
		info.MajorVersion, info.MinorVersion, info.PatchVersion, info.BuildNumber, info.PartNumber)
	return nil
}
