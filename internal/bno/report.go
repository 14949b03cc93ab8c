// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bno holds the data model shared by the diagnostic session engine
// and the fused-orientation sensor drivers it talks to.
package bno

import (
	"fmt"
	"strings"
)

// ReportType identifies a subscribable telemetry stream.
type ReportType uint8

const (
	Rotation ReportType = iota
	GameRotation
	LinearAcceleration
	TotalAcceleration
	MagneticField
	MagneticFieldUncalibrated
	TapDetector
	StabilityClassifier

	numReportTypes
)

// AllReports lists every report type in a stable order.
var AllReports = []ReportType{
	Rotation,
	GameRotation,
	LinearAcceleration,
	TotalAcceleration,
	MagneticField,
	MagneticFieldUncalibrated,
	TapDetector,
	StabilityClassifier,
}

var reportNames = [numReportTypes]string{
	Rotation:                  "rotation",
	GameRotation:              "game_rotation",
	LinearAcceleration:        "linear_acceleration",
	TotalAcceleration:         "total_acceleration",
	MagneticField:             "mag_field",
	MagneticFieldUncalibrated: "mag_field_uncalibrated",
	TapDetector:               "tap_detector",
	StabilityClassifier:       "stability_classifier",
}

// Valid reports whether r is one of the known report types.
func (r ReportType) Valid() bool { return r < numReportTypes }

// String returns the snake_case name, also used as the MQTT topic suffix.
func (r ReportType) String() string {
	if !r.Valid() {
		return fmt.Sprintf("report(%d)", uint8(r))
	}
	return reportNames[r]
}

// ParseReportType is the inverse of String.
func ParseReportType(s string) (ReportType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, r := range AllReports {
		if reportNames[r] == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown report type %q", s)
}

// MarshalText lets ReportType be used as a JSON value and map key.
func (r ReportType) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid report type %d", uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *ReportType) UnmarshalText(b []byte) error {
	v, err := ParseReportType(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Accuracy status codes reported by the device for each report.
const (
	StatusUnreliable uint8 = 0
	StatusLow        uint8 = 1
	StatusMedium     uint8 = 2
	StatusHigh       uint8 = 3
)

// StatusString renders a report status code the way the device documents it.
func StatusString(status uint8) string {
	switch status {
	case StatusUnreliable:
		return "Unreliable"
	case StatusLow:
		return "Accuracy Low"
	case StatusMedium:
		return "Accuracy Medium"
	case StatusHigh:
		return "Accuracy High"
	default:
		return "Error"
	}
}
