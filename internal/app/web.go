package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/bno_diagnostics/internal/bno"
	"github.com/relabs-tech/bno_diagnostics/internal/config"
	"github.com/relabs-tech/bno_diagnostics/internal/publish"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// liveMessage is what browsers receive on /ws.
type liveMessage struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// liveView keeps the latest published envelope per topic and fans
// messages out to websocket clients.
type liveView struct {
	prefix string

	mu          sync.RWMutex
	reports     map[string]publish.Envelope
	calibration *publish.Envelope
	status      *publish.Envelope

	hub *hub

	received  *prometheus.CounterVec
	wsClients prometheus.Gauge
}

func newLiveView(prefix string, reg prometheus.Registerer) *liveView {
	v := &liveView{
		prefix:  prefix,
		reports: make(map[string]publish.Envelope),
		hub:     newHub(),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bno_web_messages_total",
			Help: "MQTT messages received by the live view, per kind.",
		}, []string{"kind"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bno_web_websocket_clients",
			Help: "Connected websocket clients.",
		}),
	}
	reg.MustRegister(v.received, v.wsClients)
	return v
}

func RunWeb() error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("web: MQTT_BROKER is not configured")
	}

	reg := prometheus.NewRegistry()
	view := newLiveView(cfg.TopicPrefix, reg)

	client, err := publish.Connect(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	topic := cfg.TopicPrefix + "/#"
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		view.handleMessage(msg.Topic(), msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to MQTT topic %s", topic)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, view.router(reg))
}

func (v *liveView) handleMessage(topic string, payload []byte) {
	rest := strings.TrimPrefix(topic, v.prefix+"/")
	if rest == topic {
		return
	}
	var env publish.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		log.Printf("web: %s payload unmarshal error: %v", topic, err)
		return
	}

	kind := rest
	v.mu.Lock()
	switch {
	case strings.HasPrefix(rest, publish.TopicReport+"/"):
		kind = publish.TopicReport
		v.reports[strings.TrimPrefix(rest, publish.TopicReport+"/")] = env
	case rest == publish.TopicCalibration:
		v.calibration = &env
	case rest == publish.TopicStatus:
		v.status = &env
	case rest == publish.TopicCommand:
	default:
		kind = "other"
	}
	v.mu.Unlock()
	v.received.WithLabelValues(kind).Inc()

	msg, err := json.Marshal(liveMessage{Topic: rest, Payload: payload})
	if err != nil {
		log.Printf("web: marshal error: %v", err)
		return
	}
	v.hub.broadcast(msg)
}

func (v *liveView) router(g prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/reports", v.handleReports).Methods("GET")
	api.HandleFunc("/reports/{name}", v.handleReport).Methods("GET")
	api.HandleFunc("/calibration", v.handleSingle(func() *publish.Envelope { return v.calibration })).Methods("GET")
	api.HandleFunc("/status", v.handleSingle(func() *publish.Envelope { return v.status })).Methods("GET")
	r.HandleFunc("/ws", v.handleWS)
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{})).Methods("GET")
	return r
}

func (v *liveView) handleReports(w http.ResponseWriter, _ *http.Request) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	writeJSON(w, v.reports)
}

func (v *liveView) handleReport(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, err := bno.ParseReportType(name); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	v.mu.RLock()
	env, ok := v.reports[name]
	v.mu.RUnlock()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, env)
}

func (v *liveView) handleSingle(get func() *publish.Envelope) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		v.mu.RLock()
		env := get()
		v.mu.RUnlock()
		if env == nil {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, env)
	}
}

// handleWS sends a snapshot of the latest reports, then every message as
// it arrives.
func (v *liveView) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	send := v.hub.add(conn)
	v.wsClients.Inc()
	defer func() {
		v.hub.remove(conn)
		v.wsClients.Dec()
	}()

	v.mu.RLock()
	snapshot, err := json.Marshal(v.reports)
	v.mu.RUnlock()
	if err != nil {
		log.Printf("web: snapshot marshal error: %v", err)
		return
	}
	if err := conn.WriteJSON(liveMessage{Topic: "snapshot", Payload: snapshot}); err != nil {
		return
	}

	// Drain client frames so close is noticed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				v.hub.remove(conn)
				return
			}
		}
	}()

	for msg := range send {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("web: websocket write error: %v", err)
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

// hub holds one outgoing queue per websocket client. Slow clients drop
// messages instead of stalling the MQTT callback.
type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) add(c *websocket.Conn) <-chan []byte {
	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[c] = ch
	h.mu.Unlock()
	return ch
}

// remove is idempotent.
func (h *hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(ch)
	}
}

func (h *hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}
