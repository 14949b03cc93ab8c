// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/relabs-tech/bno_diagnostics/internal/bno"
	"github.com/relabs-tech/bno_diagnostics/internal/config"
	"github.com/relabs-tech/bno_diagnostics/internal/metrics"
	"github.com/relabs-tech/bno_diagnostics/internal/publish"
	"github.com/relabs-tech/bno_diagnostics/internal/session"
	"github.com/relabs-tech/bno_diagnostics/internal/simdriver"
	"github.com/relabs-tech/bno_diagnostics/internal/suite"
	"github.com/relabs-tech/bno_diagnostics/internal/trigger"
)

// SuiteOptions come from the command line.
type SuiteOptions struct {
	// Test is the menu entry to run; 0 prompts on stdin.
	Test int
	// Ticks bounds streaming tests; 0 runs until interrupted.
	Ticks int
	// Mock forces the simulated driver regardless of DRIVER.
	Mock bool
}

// sessionStatus is published retained on <prefix>/status.
type sessionStatus struct {
	State  string          `json:"state"`
	Test   int             `json:"test"`
	Title  string          `json:"title"`
	Device bno.ProductInfo `json:"device"`
	Result *session.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func RunSuite(opts SuiteOptions) error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver, err := newDriver(cfg, opts.Mock)
	if err != nil {
		return err
	}

	fmt.Println("============================================================")
	attempts, err := session.Connect(ctx, driver, nil, time.Duration(cfg.ConnectRetryDelay)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to connect to IMU: %w", err)
	}
	log.Printf("suite: IMU connected after %d attempt(s)", attempts)

	stdin := bufio.NewReader(os.Stdin)
	n := opts.Test
	if n == 0 {
		suite.PrintMenu(os.Stdout)
		if n, err = suite.ReadSelection(stdin); err != nil {
			fmt.Println("Invalid test number. Please run again.")
			return err
		}
	}
	test, err := suite.Lookup(n)
	if err != nil {
		fmt.Println("Invalid test number. Please run again.")
		return err
	}

	env := &suite.Env{
		Driver:       driver,
		Out:          os.Stdout,
		CommandDelay: time.Duration(cfg.CommandDelay) * time.Millisecond,
		MaxTicks:     opts.Ticks,
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		m := metrics.New(test.Slug)
		m.MustRegister(reg)
		env.Sinks = append(env.Sinks, m)
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, reg); err != nil {
				log.Printf("suite: metrics server error: %v", err)
			}
		}()
	}

	var status *publish.MQTTSink
	if cfg.MQTTBroker != "" {
		client, err := publish.Connect(cfg.MQTTBroker, cfg.MQTTClientIDSuite)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		log.Printf("suite: connected to MQTT broker at %s", cfg.MQTTBroker)

		runID := uuid.NewString()
		status = publish.NewMQTTSink(client, cfg.TopicPrefix, runID, test.Slug)
		env.Sinks = append(env.Sinks, status)
		status.Status(sessionStatus{State: "running", Test: test.Number, Title: test.Title, Device: driver.Info()})
		log.Printf("suite: publishing run %s under %s/", runID, cfg.TopicPrefix)
	}

	if test.Calibration != nil && test.Calibration.Mode == session.InteractiveSave {
		triggers, err := openTriggers(ctx, cfg, stdin)
		if err != nil {
			return err
		}
		env.Triggers = triggers
	}

	res, runErr := suite.Run(ctx, n, env)
	if test.Streaming() {
		suite.PrintSummary(os.Stdout, res)
	}
	if status != nil {
		st := sessionStatus{State: "done", Test: test.Number, Title: test.Title, Device: driver.Info(), Result: &res}
		if runErr != nil {
			st.State = "failed"
			st.Error = runErr.Error()
		}
		status.Status(st)
	}
	if runErr != nil {
		return runErr
	}
	fmt.Println("Done!")
	return nil
}

func newDriver(cfg *config.Config, mock bool) (bno.Driver, error) {
	if !mock && cfg.Driver != "sim" {
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	return simdriver.New(simdriver.Options{
		Seed:      cfg.SimSeed,
		DropEvery: cfg.SimDropEvery,
	}), nil
}

// openTriggers watches the configured serial port, or stdin when none is set.
func openTriggers(ctx context.Context, cfg *config.Config, stdin io.Reader) (<-chan struct{}, error) {
	if cfg.TriggerSerialPort == "" {
		log.Println("suite: reading save requests from stdin")
		return trigger.Watch(ctx, stdin), nil
	}
	port, err := trigger.OpenSerial(cfg.TriggerSerialPort, cfg.TriggerBaudRate)
	if err != nil {
		return nil, err
	}
	log.Printf("suite: reading save requests from %s", cfg.TriggerSerialPort)
	return trigger.Watch(ctx, port), nil
}
