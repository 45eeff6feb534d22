// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/gps_tracker/internal/app"
	"github.com/relabs-tech/gps_tracker/internal/config"
)

const banner = "starting gps tracker (NMEA to HTTP)"

func main() {
	configPath := flag.String("config", config.DefaultPath, "KEY=VALUE configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	missing := errors.Is(err, config.ErrNoConfigFile)
	if err != nil && !missing {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := app.SetupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}
	if missing {
		log.Warn().Str("path", *configPath).Msg("config file not found, using defaults")
	}

	log.Info().Msg(banner)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunTracker(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
