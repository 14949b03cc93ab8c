// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package suite is the catalogue of bench diagnostic sessions selectable
// from the menu.
package suite

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/bno_diagnostics/internal/bno"
	"github.com/relabs-tech/bno_diagnostics/internal/orientation"
	"github.com/relabs-tech/bno_diagnostics/internal/session"
)

var ErrInvalidSelection = errors.New("invalid test number")

// Subscription is a report a test enables before its loop starts.
type Subscription struct {
	Report   bno.ReportType
	Interval time.Duration
}

// Command is a one-shot action fired once the session has run for the
// configured command delay.
type Command struct {
	Name   string
	Action func(s *session.Session) error
}

// CalibrationPlan describes the calibration workflow of a test.
type CalibrationPlan struct {
	Mode     session.CalibrationMode
	Axes     session.Axes
	Interval time.Duration
}

// Test is one menu entry. Streaming tests run the polling loop; one-shot
// tests only issue commands and print their result.
type Test struct {
	Number int
	Title  string
	// Slug names the test in metrics labels and published envelopes.
	Slug string

	Reports      []Subscription
	Tick         time.Duration
	ShowNotReady bool
	Commands     []Command
	Calibration  *CalibrationPlan
	Intro        string

	oneShot func(e *Env) error
}

// Streaming reports whether the test runs the polling loop.
func (t Test) Streaming() bool { return t.oneShot == nil }

// remapQuaternion rotates the sensor 180 degrees about Y so Z points down.
var remapQuaternion = orientation.Quaternion{W: 0, X: -1, Y: 0, Z: 0}

var catalogue = []Test{
	{
		Number:  1,
		Title:   "Print linear acceleration",
		Slug:    "linear_acceleration",
		Reports: []Subscription{{bno.LinearAcceleration, 10 * time.Millisecond}},
		Tick:    time.Millisecond,
	},
	{
		Number:       2,
		Title:        "Display rotation vector",
		Slug:         "rotation",
		Reports:      []Subscription{{bno.Rotation, 200 * time.Millisecond}},
		Tick:         200 * time.Millisecond,
		ShowNotReady: true,
	},
	{
		Number: 3,
		Title:  "Display rotation and acceleration",
		Slug:   "rotation_acceleration",
		Reports: []Subscription{
			{bno.Rotation, 10 * time.Millisecond},
			{bno.LinearAcceleration, 10 * time.Millisecond},
		},
		Tick: time.Millisecond,
	},
	{
		Number:  4,
		Title:   "Run tap detector",
		Slug:    "tap_detector",
		Reports: []Subscription{{bno.TapDetector, 10 * time.Millisecond}},
		Tick:    time.Millisecond,
		Intro:   "Listening for taps...",
	},
	{
		Number:       5,
		Title:        "Display game rotation vector",
		Slug:         "game_rotation",
		Reports:      []Subscription{{bno.GameRotation, 200 * time.Millisecond}},
		Tick:         200 * time.Millisecond,
		ShowNotReady: true,
	},
	{
		Number:       6,
		Title:        "Test tare function",
		Slug:         "tare",
		Reports:      []Subscription{{bno.Rotation, 100 * time.Millisecond}},
		Tick:         100 * time.Millisecond,
		ShowNotReady: true,
		Commands: []Command{{Name: "tare", Action: func(s *session.Session) error {
			s.Driver().Tare()
			return nil
		}}},
	},
	{
		Number:       7,
		Title:        "Run magnetometer calibration",
		Slug:         "mag_calibration",
		Tick:         200 * time.Millisecond,
		ShowNotReady: true,
		Calibration: &CalibrationPlan{
			Mode:     session.PassiveMonitor,
			Axes:     session.Axes{Mag: true},
			Interval: 200 * time.Millisecond,
		},
	},
	{
		Number:  8,
		Title:   "Test stability classifier",
		Slug:    "stability",
		Reports: []Subscription{{bno.StabilityClassifier, 200 * time.Millisecond}},
		Tick:    time.Millisecond,
	},
	{
		Number:  9,
		Title:   "Test metadata reading",
		Slug:    "metadata",
		oneShot: printMetadata,
	},
	{
		Number: 10,
		Title:  "Test set orientation",
		Slug:   "set_orientation",
		Reports: []Subscription{
			{bno.TotalAcceleration, 200 * time.Millisecond},
			{bno.Rotation, 200 * time.Millisecond},
		},
		Tick: 200 * time.Millisecond,
		Commands: []Command{{Name: "set orientation", Action: func(s *session.Session) error {
			s.Driver().SetOrientation(remapQuaternion)
			return nil
		}}},
	},
	{
		Number:  11,
		Title:   "Test set permanent orientation",
		Slug:    "permanent_orientation",
		oneShot: setPermanentOrientation,
	},
	{
		Number: 12,
		Title:  "Test disabling reports",
		Slug:   "disable_report",
		Reports: []Subscription{
			{bno.TotalAcceleration, 200 * time.Millisecond},
			{bno.Rotation, 200 * time.Millisecond},
		},
		Tick: 200 * time.Millisecond,
		Commands: []Command{{Name: "disable rotation", Action: func(s *session.Session) error {
			return s.Registry.Disable(bno.Rotation)
		}}},
	},
	{
		Number:       13,
		Title:        "Test accelerometer calibration",
		Slug:         "accel_calibration",
		Tick:         200 * time.Millisecond,
		ShowNotReady: true,
		Calibration: &CalibrationPlan{
			Mode:     session.InteractiveSave,
			Axes:     session.Axes{Accel: true},
			Interval: 200 * time.Millisecond,
		},
		Intro: "Send any character to save the calibration once status reaches 2-3.",
	},
	{
		Number:  14,
		Title:   "Print device info",
		Slug:    "device_info",
		oneShot: printInfo,
	},
}

// Tests returns the catalogue in menu order.
func Tests() []Test {
	out := make([]Test, len(catalogue))
	copy(out, catalogue)
	return out
}

// Lookup returns exactly the test numbered n.
func Lookup(n int) (Test, error) {
	for _, t := range catalogue {
		if t.Number == n {
			return t, nil
		}
	}
	return Test{}, fmt.Errorf("test %d: %w", n, ErrInvalidSelection)
}

// PrintMenu writes the selection menu.
func PrintMenu(w io.Writer) {
	fmt.Fprintln(w, "BNO Test Suite:")
	fmt.Fprintln(w, "Select a test:")
	for _, t := range catalogue {
		fmt.Fprintf(w, "%d. %s\n", t.Number, t.Title)
	}
}

// ReadSelection reads one line from r and parses it as a test number.
// r stays usable afterwards, so the same reader can feed save triggers.
func ReadSelection(r *bufio.Reader) (int, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return 0, fmt.Errorf("read selection: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("selection %q: %w", strings.TrimSpace(line), ErrInvalidSelection)
	}
	if _, err := Lookup(n); err != nil {
		return 0, err
	}
	return n, nil
}
