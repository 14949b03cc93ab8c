package app

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/bno_diagnostics/internal/bno"
	"github.com/relabs-tech/bno_diagnostics/internal/config"
	"github.com/relabs-tech/bno_diagnostics/internal/orientation"
	"github.com/relabs-tech/bno_diagnostics/internal/publish"
	"github.com/relabs-tech/bno_diagnostics/internal/session"
)

// DisplayData holds the latest published values for the OLED.
type DisplayData struct {
	mu sync.RWMutex

	test string

	pose     orientation.Pose
	havePose bool

	// tilt is roll/pitch from gravity, for tests without a rotation report.
	tilt     orientation.Pose
	haveTilt bool

	stability     bno.StabilityState
	haveStability bool

	calibration     session.CalibrationState
	axisStatus      session.AxisStatus
	haveCalibration bool
}

// displaySnapshot is a lock-free copy of DisplayData.
type displaySnapshot struct {
	test            string
	pose            orientation.Pose
	havePose        bool
	tilt            orientation.Pose
	haveTilt        bool
	stability       bno.StabilityState
	haveStability   bool
	calibration     session.CalibrationState
	axisStatus      session.AxisStatus
	haveCalibration bool
}

func (d *DisplayData) snapshot() displaySnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return displaySnapshot{
		test:            d.test,
		pose:            d.pose,
		havePose:        d.havePose,
		tilt:            d.tilt,
		haveTilt:        d.haveTilt,
		stability:       d.stability,
		haveStability:   d.haveStability,
		calibration:     d.calibration,
		axisStatus:      d.axisStatus,
		haveCalibration: d.haveCalibration,
	}
}

func RunDisplay() error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("display: MQTT_BROKER is not configured")
	}

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, cfg.DisplayI2CAddr, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	client, err := publish.Connect(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeDisplay(client, cfg.TopicPrefix, data); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for {
		select {
		case <-ctx.Done():
			return dev.Halt()
		case <-ticker.C:
		}
		if err := dev.Draw(dev.Bounds(), renderStatus(data.snapshot()), image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}
}

func subscribeDisplay(client mqtt.Client, prefix string, data *DisplayData) error {
	topics := map[string]mqtt.MessageHandler{
		publish.ReportTopic(prefix, bno.Rotation):            displayHandler(data.handleOrientation),
		publish.ReportTopic(prefix, bno.GameRotation):        displayHandler(data.handleOrientation),
		publish.ReportTopic(prefix, bno.TotalAcceleration):   displayHandler(data.handleAcceleration),
		publish.ReportTopic(prefix, bno.StabilityClassifier): displayHandler(data.handleStability),
		prefix + "/" + publish.TopicCalibration:               displayHandler(data.handleCalibration),
	}
	for topic, handler := range topics {
		token := client.Subscribe(topic, 0, handler)
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, token.Error())
		}
		log.Printf("display: subscribed to %s", topic)
	}
	return nil
}

func displayHandler(apply func(publish.Envelope) error) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var env publish.Envelope
		if err := json.Unmarshal(msg.Payload(), &env); err != nil {
			log.Printf("display: %s unmarshal error: %v", msg.Topic(), err)
			return
		}
		if err := apply(env); err != nil {
			log.Printf("display: %s: %v", msg.Topic(), err)
		}
	}
}

func (d *DisplayData) handleOrientation(env publish.Envelope) error {
	var s bno.OrientationSample
	if err := json.Unmarshal(env.Data, &s); err != nil {
		return err
	}
	d.mu.Lock()
	d.test = env.Test
	d.pose = s.Pose()
	d.havePose = true
	d.mu.Unlock()
	return nil
}

func (d *DisplayData) handleAcceleration(env publish.Envelope) error {
	var s bno.MotionSample
	if err := json.Unmarshal(env.Data, &s); err != nil {
		return err
	}
	d.mu.Lock()
	d.test = env.Test
	d.tilt = orientation.ComputePoseFromAccel(s.Vector)
	d.haveTilt = true
	d.mu.Unlock()
	return nil
}

func (d *DisplayData) handleStability(env publish.Envelope) error {
	var s bno.StabilitySample
	if err := json.Unmarshal(env.Data, &s); err != nil {
		return err
	}
	d.mu.Lock()
	d.test = env.Test
	d.stability = s.State
	d.haveStability = true
	d.mu.Unlock()
	return nil
}

func (d *DisplayData) handleCalibration(env publish.Envelope) error {
	var ev publish.CalibrationEvent
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		return err
	}
	d.mu.Lock()
	d.test = env.Test
	d.calibration = ev.To
	d.axisStatus = ev.Status
	d.haveCalibration = true
	d.mu.Unlock()
	return nil
}

func newFrame() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLine(d *font.Drawer, row int, text string) {
	d.Dot = fixed.P(0, 13*(row+1))
	d.DrawBytes([]byte(text))
}

func renderStatus(s displaySnapshot) *image1bit.VerticalLSB {
	img, drawer := newFrame()

	if !s.havePose && !s.haveTilt && !s.haveStability && !s.haveCalibration {
		drawLine(drawer, 1, "BNO Diagnostics")
		drawLine(drawer, 2, "Waiting...")
		return img
	}

	drawLine(drawer, 0, s.test)
	line2 := ""
	switch {
	case s.havePose:
		drawLine(drawer, 1, fmt.Sprintf("R%6.1f P%6.1f", s.pose.Roll, s.pose.Pitch))
		line2 = fmt.Sprintf("Y%6.1f ", s.pose.Yaw)
	case s.haveTilt:
		drawLine(drawer, 1, fmt.Sprintf("r%6.1f p%6.1f", s.tilt.Roll, s.tilt.Pitch))
	}
	if s.haveStability {
		line2 += s.stability.String()
	}
	drawLine(drawer, 2, line2)
	if s.haveCalibration {
		drawLine(drawer, 3, fmt.Sprintf("%s A%dG%dM%d", shortState(s.calibration),
			s.axisStatus.Accel, s.axisStatus.Gyro, s.axisStatus.Mag))
	}
	return img
}

func shortState(s session.CalibrationState) string {
	switch s {
	case session.CalibrationEnabled:
		return "enabled"
	case session.Monitoring:
		return "monitor"
	case session.ReadyToPersist:
		return "READY"
	case session.Persisted:
		return "saved"
	case session.Failed:
		return "FAILED"
	default:
		return "-"
	}
}

func renderSplash() *image1bit.VerticalLSB {
	img, drawer := newFrame()

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("BNO Bench"))

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawBytes([]byte("Waiting for"))

	drawer.Dot = fixed.P(25, 56)
	drawer.DrawBytes([]byte("session"))

	return img
}
