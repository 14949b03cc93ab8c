package orientation

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestQuaternionPoseRoundTrip(t *testing.T) {
	cases := []struct {
		name             string
		roll, pitch, yaw float64 // degrees
	}{
		{"identity", 0, 0, 0},
		{"roll", 30, 0, 0},
		{"pitch", 0, -45, 0},
		{"yaw", 0, 0, 120},
		{"mixed", 10, 20, -30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := FromEuler(tc.roll/radToDeg, tc.pitch/radToDeg, tc.yaw/radToDeg)
			if !near(q.Norm(), 1) {
				t.Fatalf("norm = %v, want 1", q.Norm())
			}
			p := q.Pose()
			if !near(p.Roll, tc.roll) || !near(p.Pitch, tc.pitch) || !near(p.Yaw, tc.yaw) {
				t.Fatalf("pose = %+v, want roll=%v pitch=%v yaw=%v", p, tc.roll, tc.pitch, tc.yaw)
			}
		})
	}
}

func TestQuaternionMulConjugate(t *testing.T) {
	q := FromEuler(0.3, -0.2, 1.1)
	r := q.Mul(q.Conjugate())
	if !near(r.W, 1) || !near(r.X, 0) || !near(r.Y, 0) || !near(r.Z, 0) {
		t.Fatalf("q*q' = %+v, want identity", r)
	}
}

func TestComputePoseFromAccelLevel(t *testing.T) {
	p := ComputePoseFromAccel(Vec3{Z: 9.81})
	if !near(p.Roll, 0) || !near(p.Pitch, 0) || p.Yaw != 0 {
		t.Fatalf("level pose = %+v", p)
	}
}
