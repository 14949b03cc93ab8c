// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/bno_diagnostics/internal/app"
	"github.com/relabs-tech/bno_diagnostics/internal/config"
)

func main() {
	configPath := flag.String("config", "", "configuration file (KEY=VALUE); defaults apply when empty")
	test := flag.Int("test", 0, "test number to run; 0 shows the menu")
	ticks := flag.Int("ticks", 0, "stop streaming tests after this many loop ticks; 0 runs until interrupted")
	mock := flag.Bool("mock", false, "use the simulated sensor")
	flag.Parse()

	log.Println("starting BNO diagnostic suite")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	opts := app.SuiteOptions{Test: *test, Ticks: *ticks, Mock: *mock}
	if err := app.RunSuite(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
