package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/bno_diagnostics/internal/bno"
	"github.com/relabs-tech/bno_diagnostics/internal/config"
	"github.com/relabs-tech/bno_diagnostics/internal/publish"
)

// RunConsoleMQTT prints the events of sessions published on the broker.
func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("console: MQTT_BROKER is not configured")
	}

	client, err := publish.Connect(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	topic := cfg.TopicPrefix + "/#"
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		line, err := formatLiveLine(strings.TrimPrefix(msg.Topic(), cfg.TopicPrefix+"/"), msg.Payload())
		if err != nil {
			log.Printf("console: %s: %v", msg.Topic(), err)
			return
		}
		fmt.Println(line)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", topic)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

// formatLiveLine renders one published message; topic is relative to the prefix.
func formatLiveLine(topic string, payload []byte) (string, error) {
	var env publish.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", fmt.Errorf("envelope: %w", err)
	}
	head := fmt.Sprintf("%8.3fs", float64(env.ElapsedMS)/1000)

	switch {
	case strings.HasPrefix(topic, publish.TopicReport+"/"):
		if env.Report == nil {
			return "", fmt.Errorf("report envelope without report type")
		}
		body, err := formatSample(*env.Report, env.Data)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("[%-6s] %s %s", "REPORT", head, body), nil

	case topic == publish.TopicCalibration:
		var ev publish.CalibrationEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return "", err
		}
		return fmt.Sprintf("[%-6s] %s %v -> %v  accel=%d gyro=%d mag=%d",
			"CAL", head, ev.From, ev.To, ev.Status.Accel, ev.Status.Gyro, ev.Status.Mag), nil

	case topic == publish.TopicCommand:
		var ev publish.CommandEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return "", err
		}
		if ev.Error != "" {
			return fmt.Sprintf("[%-6s] %s %s failed: %s", "CMD", head, ev.Name, ev.Error), nil
		}
		return fmt.Sprintf("[%-6s] %s %s", "CMD", head, ev.Name), nil

	case topic == publish.TopicStatus:
		return fmt.Sprintf("[%-6s] run=%s test=%s %s", "STATUS", env.RunID, env.Test, env.Data), nil
	}
	return "", fmt.Errorf("unexpected topic %q", topic)
}

func formatSample(rt bno.ReportType, data json.RawMessage) (string, error) {
	switch rt {
	case bno.Rotation, bno.GameRotation:
		var s bno.OrientationSample
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		p := s.Pose()
		return fmt.Sprintf("%s ROLL=%6.2f PITCH=%6.2f YAW=%6.2f status=%s",
			rt, p.Roll, p.Pitch, p.Yaw, bno.StatusString(s.Status)), nil
	case bno.LinearAcceleration, bno.TotalAcceleration, bno.MagneticField:
		var s bno.MotionSample
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s x=%8.3f y=%8.3f z=%8.3f status=%d", rt, s.Vector.X, s.Vector.Y, s.Vector.Z, s.Status), nil
	case bno.MagneticFieldUncalibrated:
		var s bno.UncalibratedMagSample
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s x=%8.3f y=%8.3f z=%8.3f offset=(%.3f, %.3f, %.3f)", rt,
			s.Field.X, s.Field.Y, s.Field.Z, s.HardIronOffset.X, s.HardIronOffset.Y, s.HardIronOffset.Z), nil
	case bno.TapDetector:
		var s bno.TapSample
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s detected=%t", rt, s.Detected), nil
	case bno.StabilityClassifier:
		var s bno.StabilitySample
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s", rt, s.State), nil
	}
	return "", fmt.Errorf("unknown report %v", rt)
}
