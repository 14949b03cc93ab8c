package session

import (
	"errors"
	"testing"
	"time"

	"github.com/relabs-tech/bno_diagnostics/internal/bno"
)

func TestRegistryEnableDisableEveryReport(t *testing.T) {
	for _, rt := range bno.AllReports {
		t.Run(rt.String(), func(t *testing.T) {
			d := newFakeDriver()
			d.keepEmitting = true
			reg := NewRegistry(d)
			fresh := NewFreshnessTracker(d, reg)

			if err := reg.Enable(rt, 50*time.Millisecond); err != nil {
				t.Fatalf("Enable: %v", err)
			}
			if err := reg.Disable(rt); err != nil {
				t.Fatalf("Disable: %v", err)
			}
			if reg.Enabled(rt) || reg.Len() != 0 {
				t.Fatalf("registry still holds %v: %+v", rt, reg.Active())
			}

			// The device keeps flagging the report fresh; nothing may be consumed.
			d.Update()
			fresh.Mark()
			if got := fresh.Collect(); len(got) != 0 {
				t.Fatalf("consumed %d samples after disable", len(got))
			}
		})
	}
}

func TestRegistryEnableIsUpsert(t *testing.T) {
	d := newFakeDriver()
	reg := NewRegistry(d)

	if err := reg.Enable(bno.Rotation, 200*time.Millisecond); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := reg.Enable(bno.Rotation, 10*time.Millisecond); err != nil {
		t.Fatalf("re-Enable: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("want one subscription, got %+v", reg.Active())
	}
	if iv, _ := reg.Interval(bno.Rotation); iv != 10*time.Millisecond {
		t.Fatalf("interval = %v, want 10ms", iv)
	}
	if d.enabled[bno.Rotation] != 10*time.Millisecond {
		t.Fatalf("driver interval = %v", d.enabled[bno.Rotation])
	}
}

func TestRegistryPropagatesDriverRefusal(t *testing.T) {
	d := newFakeDriver()
	d.rejectEnable[bno.TapDetector] = true
	reg := NewRegistry(d)

	err := reg.Enable(bno.TapDetector, 10*time.Millisecond)
	if !errors.Is(err, ErrReportRejected) {
		t.Fatalf("err = %v, want ErrReportRejected", err)
	}
	if reg.Enabled(bno.TapDetector) {
		t.Fatal("rejected report must not be recorded")
	}

	if err := reg.Enable(bno.Rotation, 10*time.Millisecond); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	d.rejectDisable = true
	if err := reg.Disable(bno.Rotation); !errors.Is(err, ErrDisableRejected) {
		t.Fatalf("err = %v, want ErrDisableRejected", err)
	}
	if reg.Enabled(bno.Rotation) {
		t.Fatal("report must stop being consumed even when disable is refused")
	}
}

func TestRegistryRejectsBadArguments(t *testing.T) {
	reg := NewRegistry(newFakeDriver())
	if err := reg.Enable(bno.Rotation, 0); err == nil {
		t.Fatal("expected error for zero interval")
	}
	if err := reg.Enable(bno.ReportType(99), time.Second); err == nil {
		t.Fatal("expected error for unknown report")
	}
}

func TestRegistryActiveIsOrdered(t *testing.T) {
	reg := NewRegistry(newFakeDriver())
	for _, rt := range []bno.ReportType{bno.StabilityClassifier, bno.Rotation, bno.TotalAcceleration} {
		if err := reg.Enable(rt, time.Second); err != nil {
			t.Fatal(err)
		}
	}
	got := reg.Active()
	want := []bno.ReportType{bno.Rotation, bno.TotalAcceleration, bno.StabilityClassifier}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i].Type != want[i] {
			t.Fatalf("Active()[%d] = %v, want %v", i, got[i].Type, want[i])
		}
	}
}
