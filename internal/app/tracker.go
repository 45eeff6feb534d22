// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/gps_tracker/internal/config"
	"github.com/relabs-tech/gps_tracker/internal/gps"
	"github.com/relabs-tech/gps_tracker/internal/netcheck"
	"github.com/relabs-tech/gps_tracker/internal/serialport"
)

// mockPeriod matches the 1 Hz output of common receivers.
const mockPeriod = time.Second

// RunTracker wires the receiver, the store and the web server together and
// runs until ctx is cancelled or a component fails. Startup failures
// (no network, serial port, bind) are returned before anything is served.
func RunTracker(ctx context.Context, cfg *config.Config) error {
	logger := log.With().Str("module", "tracker").Logger()

	if cfg.NetworkRequired {
		addr, err := netcheck.LocalIPv4()
		if err != nil {
			return fmt.Errorf("network not ready: %w", err)
		}
		logger.Info().Str("interface", addr.Interface).Msgf("connected, map at %s", pageURL(addr.IP, cfg.WebServerPort))
	}

	page, err := LoadPage(cfg.WebPagePath)
	if err != nil {
		return err
	}

	src, closeSrc, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	store := gps.NewStore()
	reader := NewGPSReader(src, store, gps.Parser{VerifyChecksum: cfg.GPSVerifyChecksum}, cfg.GPSPollInterval)

	// Open everything that can fail before the first goroutine starts.
	var pub *FixPublisher
	if cfg.MQTTBroker != "" {
		client, err := ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDGPS)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		pub = NewFixPublisher(client, cfg.TopicGPS)
		reader.OnUpdate(pub.Offer)
	}

	if cfg.LEDGPIOPin != "" {
		led, err := OpenLockIndicator(cfg.LEDGPIOPin)
		if err != nil {
			return err
		}
		defer led.Off()
		reader.OnUpdate(led.Update)
	}

	var disp *Display
	if cfg.DisplayEnabled {
		dev, closeBus, err := OpenDisplay(cfg.DisplayI2CBus, cfg.DisplayI2CAddr)
		if err != nil {
			return err
		}
		defer closeBus()
		disp = NewDisplay(dev, store, cfg.DisplayUpdateInterval)
	}

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("bind %s: %w", cfg.Addr(), err)
	}
	srv := NewWebServer(cfg, NewWebHandler(store, page))

	g, ctx := errgroup.WithContext(ctx)
	if pub != nil {
		g.Go(func() error { return pub.Run(ctx) })
	}
	if disp != nil {
		g.Go(func() error { return disp.Run(ctx) })
	}
	g.Go(func() error { return reader.Run(ctx) })
	g.Go(func() error { return RunWeb(ctx, srv, ln) })

	err = g.Wait()
	logger.Info().Msg("tracker stopped")
	return err
}

func openSource(cfg *config.Config) (io.Reader, func() error, error) {
	if cfg.GPSMock {
		log.Info().Str("module", "tracker").Float64("lat", cfg.GPSMockLat).Float64("lng", cfg.GPSMockLng).Msg("using simulated receiver")
		return gps.NewMockSource(cfg.GPSMockLat, cfg.GPSMockLng, mockPeriod), func() error { return nil }, nil
	}
	port, err := serialport.Open(cfg.GPSSerialPort, cfg.GPSBaudRate)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("module", "tracker").Str("port", cfg.GPSSerialPort).Int("baud", cfg.GPSBaudRate).Msg("serial port opened")
	return port, port.Close, nil
}

func pageURL(ip net.IP, port int) string {
	if port == 80 {
		return "http://" + ip.String()
	}
	return "http://" + net.JoinHostPort(ip.String(), fmt.Sprint(port))
}
