package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/relabs-tech/bno_diagnostics/internal/bno"
	"github.com/relabs-tech/bno_diagnostics/internal/publish"
)

func envelopeJSON(t *testing.T, report *bno.ReportType, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(publish.Envelope{RunID: "run-1", Test: "tare", Tick: 3, Report: report, Data: raw})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestLiveViewServesLatestReport(t *testing.T) {
	reg := prometheus.NewRegistry()
	v := newLiveView("bno", reg)
	srv := httptest.NewServer(v.router(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/reports/tap_detector")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("before data: status %d", resp.StatusCode)
	}

	rt := bno.TapDetector
	v.handleMessage("bno/report/tap_detector", envelopeJSON(t, &rt, bno.TapSample{Detected: true}))
	v.handleMessage("other/report/tap_detector", envelopeJSON(t, &rt, bno.TapSample{}))

	resp, err = http.Get(srv.URL + "/api/reports/tap_detector")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var env publish.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	if env.RunID != "run-1" || env.Report == nil || *env.Report != bno.TapDetector {
		t.Fatalf("envelope = %+v", env)
	}
	if got := testutil.ToFloat64(v.received.WithLabelValues("report")); got != 1 {
		t.Fatalf("received reports = %v", got)
	}

	resp2, err := http.Get(srv.URL + "/api/reports/bogus")
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown report: status %d", resp2.StatusCode)
	}
}

func TestLiveViewIgnoresBadPayloads(t *testing.T) {
	reg := prometheus.NewRegistry()
	v := newLiveView("bno", reg)
	v.handleMessage("bno/calibration", []byte("{not json"))
	if v.calibration != nil {
		t.Fatal("bad payload stored")
	}
	v.handleMessage("bno/calibration", envelopeJSON(t, nil, publish.CalibrationEvent{}))
	if v.calibration == nil {
		t.Fatal("calibration not stored")
	}
}

func TestLiveViewStreamsToWebsocket(t *testing.T) {
	reg := prometheus.NewRegistry()
	v := newLiveView("bno", reg)
	srv := httptest.NewServer(v.router(reg))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first liveMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatal(err)
	}
	if first.Topic != "snapshot" {
		t.Fatalf("first message topic = %q", first.Topic)
	}

	rt := bno.StabilityClassifier
	v.handleMessage("bno/report/stability_classifier", envelopeJSON(t, &rt, bno.StabilitySample{State: bno.StabilityStable, Code: 3}))

	var next liveMessage
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatal(err)
	}
	if next.Topic != "report/stability_classifier" {
		t.Fatalf("topic = %q", next.Topic)
	}
	var env publish.Envelope
	if err := json.Unmarshal(next.Payload, &env); err != nil {
		t.Fatal(err)
	}
	var s bno.StabilitySample
	if err := json.Unmarshal(env.Data, &s); err != nil {
		t.Fatal(err)
	}
	if s.State != bno.StabilityStable {
		t.Fatalf("state = %v", s.State)
	}
}
