// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/relabs-tech/gps_tracker/internal/config"
	"github.com/relabs-tech/gps_tracker/internal/gps"
)

// RunMockConsole runs the simulated receiver through the reader and prints
// every store update to out. No hardware, broker or network is needed.
func RunMockConsole(ctx context.Context, cfg *config.Config, out io.Writer) error {
	src := gps.NewMockSource(cfg.GPSMockLat, cfg.GPSMockLng, time.Second)
	store := gps.NewStore()

	reader := NewGPSReader(src, store, gps.Parser{VerifyChecksum: cfg.GPSVerifyChecksum}, cfg.GPSPollInterval)
	reader.OnUpdate(func(f gps.Fix) {
		fmt.Fprintln(out, formatFix(f))
	})
	return reader.Run(ctx)
}
