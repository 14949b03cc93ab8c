// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bno

import (
	"time"

	"github.com/relabs-tech/bno_diagnostics/internal/orientation"
)

// ProductInfo is the identification the device returns after reset.
type ProductInfo struct {
	MajorVersion uint8  `json:"major_version"`
	MinorVersion uint8  `json:"minor_version"`
	PatchVersion uint16 `json:"patch_version"`
	BuildNumber  uint32 `json:"build_number"`
	PartNumber   uint32 `json:"part_number"`
}

// Driver is the communication driver for a fused-orientation sensor.
// Bus transport, packet framing and report decoding live behind it.
//
// Boolean results follow the device: false means the device did not accept
// or did not answer, never a Go-level failure. Update returning false is the
// normal "no packet yet" case.
type Driver interface {
	// Connect resets the device and waits for its advertisement.
	Connect() bool
	Info() ProductInfo

	EnableReport(t ReportType, interval time.Duration) bool
	DisableReport(t ReportType) bool

	// Update reads and decodes pending packets; true when a batch was processed.
	Update() bool
	// IsFresh reports whether the last Update delivered new data for t.
	IsFresh(t ReportType) bool
	Status(t ReportType) uint8

	RotationVector() orientation.Quaternion
	RotationAccuracy() float64
	GameRotationVector() orientation.Quaternion
	LinearAcceleration() orientation.Vec3
	TotalAcceleration() orientation.Vec3
	MagneticField() orientation.Vec3
	MagneticFieldUncalibrated() orientation.Vec3
	HardIronOffset() orientation.Vec3
	TapDetected() bool
	StabilityCode() uint8

	EnableCalibration(accel, gyro, mag bool) bool
	PersistCalibration()
	// Tare redefines the zero-yaw reference to the current orientation.
	Tare()
	SetOrientation(q orientation.Quaternion)
	SetPermanentOrientation(q orientation.Quaternion)
	DescribeReportMetadata(t ReportType) string
}
