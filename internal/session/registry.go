// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"fmt"
	"time"

	"github.com/relabs-tech/bno_diagnostics/internal/bno"
)

// Subscription is an active report at the interval the device was asked for.
type Subscription struct {
	Type     bno.ReportType
	Interval time.Duration
}

// Registry tracks which reports are enabled on the device.
// There is at most one subscription per report type.
type Registry struct {
	driver bno.Driver
	subs   map[bno.ReportType]time.Duration
}

func NewRegistry(d bno.Driver) *Registry {
	return &Registry{
		driver: d,
		subs:   make(map[bno.ReportType]time.Duration),
	}
}

// Enable asks the device to emit t every interval. Enabling an already
// enabled report replaces its interval. The subscription is only recorded
// when the driver accepts it.
func (r *Registry) Enable(t bno.ReportType, interval time.Duration) error {
	if !t.Valid() {
		return fmt.Errorf("enable %v: unknown report type", t)
	}
	if interval <= 0 {
		return fmt.Errorf("enable %v: interval must be positive, got %v", t, interval)
	}
	if !r.driver.EnableReport(t, interval) {
		return fmt.Errorf("enable %v at %v: %w", t, interval, ErrReportRejected)
	}
	r.subs[t] = interval
	return nil
}

// Disable stops consuming t and asks the device to stop emitting it.
// The subscription is dropped even if the driver refuses, so nothing further
// for t is consumed.
func (r *Registry) Disable(t bno.ReportType) error {
	delete(r.subs, t)
	if !r.driver.DisableReport(t) {
		return fmt.Errorf("disable %v: %w", t, ErrDisableRejected)
	}
	return nil
}

// Enabled reports whether t is currently subscribed.
func (r *Registry) Enabled(t bno.ReportType) bool {
	_, ok := r.subs[t]
	return ok
}

// Interval returns the subscribed interval for t.
func (r *Registry) Interval(t bno.ReportType) (time.Duration, bool) {
	iv, ok := r.subs[t]
	return iv, ok
}

// Active returns the subscriptions in report type order.
func (r *Registry) Active() []Subscription {
	out := make([]Subscription, 0, len(r.subs))
	for _, t := range bno.AllReports {
		if iv, ok := r.subs[t]; ok {
			out = append(out, Subscription{Type: t, Interval: iv})
		}
	}
	return out
}

// Len is the number of active subscriptions.
func (r *Registry) Len() int { return len(r.subs) }
