// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bno

import (
	"github.com/relabs-tech/bno_diagnostics/internal/orientation"
)

// Sample is one decoded report value. Concrete types are:
//
//	OrientationSample       Rotation, GameRotation
//	MotionSample            LinearAcceleration, TotalAcceleration, MagneticField
//	UncalibratedMagSample   MagneticFieldUncalibrated
//	TapSample               TapDetector
//	StabilitySample         StabilityClassifier
//
// A sample is only meaningful for the tick in which it was reported fresh.
type Sample interface {
	Report() ReportType
}

// OrientationSample carries a rotation vector report.
type OrientationSample struct {
	Type       ReportType             `json:"-"`
	Quaternion orientation.Quaternion `json:"quaternion"`
	// Accuracy is the estimated heading accuracy in radians (Rotation only).
	Accuracy float64 `json:"accuracy"`
	Status   uint8   `json:"status"`
}

func (s OrientationSample) Report() ReportType { return s.Type }

// Pose returns the Euler angles in degrees.
func (s OrientationSample) Pose() orientation.Pose { return s.Quaternion.Pose() }

// MotionSample carries a calibrated 3-axis vector.
type MotionSample struct {
	Type   ReportType       `json:"-"`
	Vector orientation.Vec3 `json:"vector"`
	Status uint8            `json:"status"`
}

func (s MotionSample) Report() ReportType { return s.Type }

// UncalibratedMagSample carries the raw field and the device's current
// hard-iron offset estimate.
type UncalibratedMagSample struct {
	Field          orientation.Vec3 `json:"field"`
	HardIronOffset orientation.Vec3 `json:"hard_iron_offset"`
	Status         uint8            `json:"status"`
}

func (UncalibratedMagSample) Report() ReportType { return MagneticFieldUncalibrated }

// TapSample is the tap detector edge.
type TapSample struct {
	Detected bool `json:"detected"`
}

func (TapSample) Report() ReportType { return TapDetector }

// StabilitySample is the decoded classifier output.
type StabilitySample struct {
	State StabilityState `json:"state"`
	Code  uint8          `json:"code"`
}

func (StabilitySample) Report() ReportType { return StabilityClassifier }

// StatusOf returns the accuracy status carried by s, or false when the
// report type has no status.
func StatusOf(s Sample) (uint8, bool) {
	switch v := s.(type) {
	case OrientationSample:
		return v.Status, true
	case MotionSample:
		return v.Status, true
	case UncalibratedMagSample:
		return v.Status, true
	default:
		return 0, false
	}
}

// ReadSample builds the tagged sample for t from the driver's accessors.
// Callers must only use it for a report the driver flagged fresh this update.
func ReadSample(d Driver, t ReportType) Sample {
	switch t {
	case Rotation:
		return OrientationSample{
			Type:       Rotation,
			Quaternion: d.RotationVector(),
			Accuracy:   d.RotationAccuracy(),
			Status:     d.Status(Rotation),
		}
	case GameRotation:
		return OrientationSample{
			Type:       GameRotation,
			Quaternion: d.GameRotationVector(),
			Status:     d.Status(GameRotation),
		}
	case LinearAcceleration:
		return MotionSample{Type: t, Vector: d.LinearAcceleration(), Status: d.Status(t)}
	case TotalAcceleration:
		return MotionSample{Type: t, Vector: d.TotalAcceleration(), Status: d.Status(t)}
	case MagneticField:
		return MotionSample{Type: t, Vector: d.MagneticField(), Status: d.Status(t)}
	case MagneticFieldUncalibrated:
		return UncalibratedMagSample{
			Field:          d.MagneticFieldUncalibrated(),
			HardIronOffset: d.HardIronOffset(),
			Status:         d.Status(t),
		}
	case TapDetector:
		return TapSample{Detected: d.TapDetected()}
	case StabilityClassifier:
		code := d.StabilityCode()
		return StabilitySample{State: DecodeStability(code), Code: code}
	default:
		return nil
	}
}
