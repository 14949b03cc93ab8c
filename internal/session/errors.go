package session

import "errors"

var (
	// ErrReportRejected is returned when the driver refuses to enable a report.
	ErrReportRejected = errors.New("driver rejected report enable")
	// ErrDisableRejected is returned when the driver refuses to disable a report.
	ErrDisableRejected = errors.New("driver rejected report disable")
	// ErrCalibrationUnsupported is fatal for the session: the device refused
	// to enter calibration mode.
	ErrCalibrationUnsupported = errors.New("calibration mode could not be enabled")
	// ErrNotReadyToPersist is returned by Persist outside ReadyToPersist.
	ErrNotReadyToPersist = errors.New("calibration has not converged")
	// ErrPersistDisabled is returned by Persist in passive monitor mode.
	ErrPersistDisabled = errors.New("calibration persistence disabled in passive mode")
)
