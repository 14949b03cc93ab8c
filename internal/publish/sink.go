// Package publish delivers consumed session events to the console and MQTT.
package publish

import (
	"github.com/relabs-tech/bno_diagnostics/internal/bno"
	"github.com/relabs-tech/bno_diagnostics/internal/session"
)

// Sink receives the events of a running session.
type Sink interface {
	Sample(tick session.Tick, s bno.Sample)
	NotReady(tick session.Tick)
	Command(tick session.Tick, f session.Fired)
	Calibration(from, to session.CalibrationState, st session.AxisStatus)
	// Persist reports the outcome of an external save request.
	Persist(tick session.Tick, err error)
}

// Multi fans every event out to all sinks in order.
type Multi []Sink

func (m Multi) Sample(tick session.Tick, s bno.Sample) {
	for _, k := range m {
		k.Sample(tick, s)
	}
}

func (m Multi) NotReady(tick session.Tick) {
	for _, k := range m {
		k.NotReady(tick)
	}
}

func (m Multi) Command(tick session.Tick, f session.Fired) {
	for _, k := range m {
		k.Command(tick, f)
	}
}

func (m Multi) Calibration(from, to session.CalibrationState, st session.AxisStatus) {
	for _, k := range m {
		k.Calibration(from, to, st)
	}
}

func (m Multi) Persist(tick session.Tick, err error) {
	for _, k := range m {
		k.Persist(tick, err)
	}
}
