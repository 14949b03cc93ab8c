// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package publish

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/bno_diagnostics/internal/bno"
	"github.com/relabs-tech/bno_diagnostics/internal/session"
)

// Topic suffixes below the configured prefix. Samples go to
// <prefix>/report/<report name>.
const (
	TopicReport      = "report"
	TopicCalibration = "calibration"
	TopicCommand     = "command"
	TopicStatus      = "status"
)

// ReportTopic is the topic a report's samples are published on.
func ReportTopic(prefix string, t bno.ReportType) string {
	return prefix + "/" + TopicReport + "/" + t.String()
}

// Publisher is the subset of mqtt.Client used by MQTTSink.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Envelope wraps every published payload.
type Envelope struct {
	RunID     string          `json:"run_id"`
	Test      string          `json:"test"`
	Tick      int             `json:"tick,omitempty"`
	ElapsedMS int64           `json:"elapsed_ms"`
	Report    *bno.ReportType `json:"report,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// CalibrationEvent is the data of a calibration transition.
type CalibrationEvent struct {
	From   session.CalibrationState `json:"from"`
	To     session.CalibrationState `json:"to"`
	Status session.AxisStatus       `json:"status"`
}

// CommandEvent is the data of a fired one-shot command.
type CommandEvent struct {
	Name        string `json:"name"`
	ThresholdMS int64  `json:"threshold_ms"`
	Error       string `json:"error,omitempty"`
}

// MQTTSink publishes session events as JSON.
type MQTTSink struct {
	client  Publisher
	prefix  string
	runID   string
	test    string
	timeout time.Duration

	lastElapsed time.Duration
}

func NewMQTTSink(client Publisher, prefix, runID, test string) *MQTTSink {
	return &MQTTSink{
		client:  client,
		prefix:  prefix,
		runID:   runID,
		test:    test,
		timeout: 2 * time.Second,
	}
}

func (m *MQTTSink) Sample(tick session.Tick, s bno.Sample) {
	rt := s.Report()
	m.lastElapsed = tick.Elapsed
	m.publish(ReportTopic(m.prefix, rt), false, tick, &rt, s)
}

// NotReady publishes nothing; dropped packets only show up in metrics.
func (m *MQTTSink) NotReady(tick session.Tick) {
	m.lastElapsed = tick.Elapsed
}

func (m *MQTTSink) Command(tick session.Tick, f session.Fired) {
	ev := CommandEvent{Name: f.Name, ThresholdMS: f.Threshold.Milliseconds()}
	if f.Err != nil {
		ev.Error = f.Err.Error()
	}
	m.publish(m.prefix+"/"+TopicCommand, false, tick, nil, ev)
}

// Calibration is retained so late subscribers see the current state.
func (m *MQTTSink) Calibration(from, to session.CalibrationState, st session.AxisStatus) {
	m.publish(m.prefix+"/"+TopicCalibration, true, session.Tick{Elapsed: m.lastElapsed}, nil,
		CalibrationEvent{From: from, To: to, Status: st})
}

// Persist publishes a save request as a command event.
func (m *MQTTSink) Persist(tick session.Tick, err error) {
	ev := CommandEvent{Name: "save calibration"}
	if err != nil {
		ev.Error = err.Error()
	}
	m.publish(m.prefix+"/"+TopicCommand, false, tick, nil, ev)
}

// Status publishes a retained free-form session status (start/stop).
func (m *MQTTSink) Status(v interface{}) {
	m.publish(m.prefix+"/"+TopicStatus, true, session.Tick{Elapsed: m.lastElapsed}, nil, v)
}

func (m *MQTTSink) publish(topic string, retained bool, tick session.Tick, rt *bno.ReportType, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("mqtt: marshal error (%s): %v", topic, err)
		return
	}
	payload, err := json.Marshal(Envelope{
		RunID:     m.runID,
		Test:      m.test,
		Tick:      tick.Index,
		ElapsedMS: tick.Elapsed.Milliseconds(),
		Report:    rt,
		Data:      data,
	})
	if err != nil {
		log.Printf("mqtt: envelope marshal error (%s): %v", topic, err)
		return
	}
	token := m.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(m.timeout) {
		log.Printf("mqtt: publish timeout (%s)", topic)
		return
	}
	if token.Error() != nil {
		log.Printf("mqtt: publish error (%s): %v", topic, token.Error())
	}
}

// Connect opens an MQTT client to broker.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return client, nil
}
