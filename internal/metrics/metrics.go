// Package metrics exports polling loop and calibration metrics to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/bno_diagnostics/internal/bno"
	"github.com/relabs-tech/bno_diagnostics/internal/session"
)

// Metrics counts session events for one diagnostic test.
// It satisfies publish.Sink.
type Metrics struct {
	test string

	ticks            *prometheus.CounterVec
	notReady         *prometheus.CounterVec
	samples          *prometheus.CounterVec
	reportStatus     *prometheus.GaugeVec
	commands         *prometheus.CounterVec
	persistRequests  *prometheus.CounterVec
	calibrationState *prometheus.GaugeVec
	axisStatus       *prometheus.GaugeVec
}

func New(test string) *Metrics {
	return &Metrics{
		test: test,
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bno_loop_ticks_total",
			Help: "Polling loop iterations.",
		}, []string{"test"}),
		notReady: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bno_loop_not_ready_total",
			Help: "Ticks where the driver had no packet.",
		}, []string{"test"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bno_samples_total",
			Help: "Fresh samples consumed, per report.",
		}, []string{"test", "report"}),
		reportStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bno_report_status",
			Help: "Accuracy status (0-3) of the last sample, per report.",
		}, []string{"test", "report"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bno_commands_total",
			Help: "Time-gated commands fired.",
		}, []string{"test", "command", "result"}),
		persistRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bno_calibration_persist_requests_total",
			Help: "External save requests, by outcome.",
		}, []string{"test", "result"}),
		calibrationState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bno_calibration_state",
			Help: "Calibration workflow state (0=not started .. 4=persisted, 5=failed).",
		}, []string{"test"}),
		axisStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bno_calibration_axis_status",
			Help: "Last device accuracy code per calibrated axis.",
		}, []string{"test", "axis"}),
	}
}

// MustRegister registers every collector with r.
func (m *Metrics) MustRegister(r prometheus.Registerer) {
	r.MustRegister(m.ticks, m.notReady, m.samples, m.reportStatus, m.commands,
		m.persistRequests, m.calibrationState, m.axisStatus)
}

func (m *Metrics) Tick(session.Tick) {
	m.ticks.With(prometheus.Labels{"test": m.test}).Inc()
}

func (m *Metrics) Sample(_ session.Tick, s bno.Sample) {
	labels := prometheus.Labels{"test": m.test, "report": s.Report().String()}
	m.samples.With(labels).Inc()
	if st, ok := bno.StatusOf(s); ok {
		m.reportStatus.With(labels).Set(float64(st))
	}
}

func (m *Metrics) NotReady(session.Tick) {
	m.notReady.With(prometheus.Labels{"test": m.test}).Inc()
}

func (m *Metrics) Command(_ session.Tick, f session.Fired) {
	result := "ok"
	if f.Err != nil {
		result = "error"
	}
	m.commands.With(prometheus.Labels{"test": m.test, "command": f.Name, "result": result}).Inc()
}

func (m *Metrics) Calibration(_, to session.CalibrationState, st session.AxisStatus) {
	m.calibrationState.With(prometheus.Labels{"test": m.test}).Set(float64(to))
	m.axisStatus.With(prometheus.Labels{"test": m.test, "axis": "accel"}).Set(float64(st.Accel))
	m.axisStatus.With(prometheus.Labels{"test": m.test, "axis": "gyro"}).Set(float64(st.Gyro))
	m.axisStatus.With(prometheus.Labels{"test": m.test, "axis": "mag"}).Set(float64(st.Mag))
}

func (m *Metrics) Persist(_ session.Tick, err error) {
	result := "saved"
	switch {
	case errors.Is(err, session.ErrNotReadyToPersist):
		result = "not_converged"
	case err != nil:
		result = "rejected"
	}
	m.persistRequests.With(prometheus.Labels{"test": m.test, "result": result}).Inc()
}

// NewRouter serves /metrics from g and a trivial /health.
func NewRouter(g prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{})).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	}).Methods("GET")
	return r
}

// Serve runs the metrics endpoint on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	srv := &http.Server{Addr: addr, Handler: NewRouter(g)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	log.Printf("metrics: listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
