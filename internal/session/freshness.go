package session

import (
	"github.com/relabs-tech/bno_diagnostics/internal/bno"
)

// FreshnessTracker decides, per subscribed report, whether the current
// driver update produced new data. The driver's fresh flags are sampled
// once per successful update; Collect hands each fresh sample out once.
type FreshnessTracker struct {
	driver   bno.Driver
	registry *Registry

	generation uint64
	fresh      map[bno.ReportType]bool
}

func NewFreshnessTracker(d bno.Driver, reg *Registry) *FreshnessTracker {
	return &FreshnessTracker{
		driver:   d,
		registry: reg,
		fresh:    make(map[bno.ReportType]bool),
	}
}

// Mark records the fresh flags for a driver update that returned true.
// It must not be called for an update that returned false.
func (f *FreshnessTracker) Mark() {
	f.generation++
	clear(f.fresh)
	for _, sub := range f.registry.Active() {
		if f.driver.IsFresh(sub.Type) {
			f.fresh[sub.Type] = true
		}
	}
}

// IsFresh reports whether t has an unconsumed fresh sample this update.
func (f *FreshnessTracker) IsFresh(t bno.ReportType) bool {
	return f.fresh[t] && f.registry.Enabled(t)
}

// Generation counts successful driver updates seen so far.
func (f *FreshnessTracker) Generation() uint64 { return f.generation }

// Collect reads every fresh sample in report type order and consumes it.
// A second call before the next Mark returns nothing.
func (f *FreshnessTracker) Collect() []bno.Sample {
	var out []bno.Sample
	for _, t := range bno.AllReports {
		if !f.IsFresh(t) {
			continue
		}
		delete(f.fresh, t)
		if s := bno.ReadSample(f.driver, t); s != nil {
			out = append(out, s)
		}
	}
	return out
}
