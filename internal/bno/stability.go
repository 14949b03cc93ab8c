package bno

// StabilityState is the device-computed motion classification.
type StabilityState uint8

const (
	StabilityUnknown StabilityState = iota
	StabilityOnTable
	StabilityStationary
	StabilityStable
	StabilityInMotion
)

// DecodeStability maps the classifier's raw code to a StabilityState.
// Codes the device does not document decode to StabilityUnknown.
func DecodeStability(code uint8) StabilityState {
	switch code {
	case 1:
		return StabilityOnTable
	case 2:
		return StabilityStationary
	case 3:
		return StabilityStable
	case 4:
		return StabilityInMotion
	default:
		return StabilityUnknown
	}
}

func (s StabilityState) String() string {
	switch s {
	case StabilityOnTable:
		return "On Table"
	case StabilityStationary:
		return "Stationary"
	case StabilityStable:
		return "Stable"
	case StabilityInMotion:
		return "Motion"
	default:
		return "Unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s StabilityState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *StabilityState) UnmarshalText(b []byte) error {
	for _, c := range []StabilityState{StabilityOnTable, StabilityStationary, StabilityStable, StabilityInMotion} {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	*s = StabilityUnknown
	return nil
}
