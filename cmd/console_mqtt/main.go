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
	flag.Parse()

	log.Println("starting BNO console (MQTT subscriber)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleMQTT(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
