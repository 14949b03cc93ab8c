// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"errors"
	"fmt"
	"time"
)

// Action is a one-shot command run by the Sequencer.
type Action func() error

type schedule struct {
	name      string
	threshold time.Duration
	action    Action
	fired     bool
}

// Fired describes a schedule that ran during an Advance call.
type Fired struct {
	Name      string
	Threshold time.Duration
	Elapsed   time.Duration
	Err       error
}

// Sequencer fires one-shot actions once elapsed session time reaches their
// threshold. Elapsed time is measured from session start and never goes
// backwards.
type Sequencer struct {
	schedules []*schedule
	elapsed   time.Duration
}

func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Schedule registers action to run on the first Advance whose elapsed time
// is >= threshold.
func (s *Sequencer) Schedule(name string, threshold time.Duration, action Action) {
	if action == nil {
		panic("session: nil action for schedule " + name)
	}
	s.schedules = append(s.schedules, &schedule{
		name:      name,
		threshold: threshold,
		action:    action,
	})
}

// Advance moves session time to elapsed and runs every due schedule, in
// registration order. Each action runs at most once. Action errors are
// returned joined; the schedule still counts as fired.
func (s *Sequencer) Advance(elapsed time.Duration) ([]Fired, error) {
	if elapsed > s.elapsed {
		s.elapsed = elapsed
	}
	var (
		fired []Fired
		errs  []error
	)
	for _, sc := range s.schedules {
		if sc.fired || s.elapsed < sc.threshold {
			continue
		}
		sc.fired = true
		err := sc.action()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sc.name, err))
		}
		fired = append(fired, Fired{Name: sc.name, Threshold: sc.threshold, Elapsed: s.elapsed, Err: err})
	}
	return fired, errors.Join(errs...)
}

// Elapsed is the latest session time seen.
func (s *Sequencer) Elapsed() time.Duration { return s.elapsed }

// Pending returns the number of schedules that have not fired yet.
func (s *Sequencer) Pending() int {
	n := 0
	for _, sc := range s.schedules {
		if !sc.fired {
			n++
		}
	}
	return n
}
