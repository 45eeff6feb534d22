package app

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/gps_tracker/internal/gps"
)

const (
	displayW = 128
	displayH = 64

	// ssd1306.NewI2C always talks to this address.
	ssd1306DefaultAddr = 0x3C
)

// drawer is the part of ssd1306.Dev the display loop uses.
type drawer interface {
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Bounds() image.Rectangle
}

// readdressedBus sends transactions for the driver's fixed address to addr,
// for modules strapped to 0x3D.
type readdressedBus struct {
	i2c.Bus
	addr uint16
}

func (b *readdressedBus) Tx(addr uint16, w, r []byte) error {
	if addr == ssd1306DefaultAddr {
		addr = b.addr
	}
	return b.Bus.Tx(addr, w, r)
}

// OpenDisplay initializes periph and the SSD1306 on busName at addr. The
// returned close func releases the bus.
func OpenDisplay(busName string, addr uint16) (*ssd1306.Dev, func() error, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}

	dev, err := ssd1306.NewI2C(&readdressedBus{Bus: bus, addr: addr}, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("failed to initialize display at 0x%02X: %w", addr, err)
	}
	return dev, bus.Close, nil
}

// Display redraws the current fix on a 128x64 OLED every interval.
type Display struct {
	dev      drawer
	fixes    FixReader
	interval time.Duration
	logger   zerolog.Logger
}

func NewDisplay(dev drawer, fixes FixReader, interval time.Duration) *Display {
	return &Display{
		dev:      dev,
		fixes:    fixes,
		interval: interval,
		logger:   log.With().Str("module", "display").Logger(),
	}
}

func (d *Display) Run(ctx context.Context) error {
	if err := d.dev.Draw(d.dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		d.logger.Warn().Err(err).Msg("error showing splash")
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info().Dur("interval", d.interval).Msg("starting update loop")

	var last gps.Fix
	drawn := false
	for {
		select {
		case <-ctx.Done():
			if err := d.dev.Draw(d.dev.Bounds(), blank(), image.Point{}); err != nil {
				d.logger.Warn().Err(err).Msg("error clearing display")
			}
			return nil
		case <-ticker.C:
		}

		f := d.fixes.Read()
		if drawn && f == last {
			continue
		}
		if err := d.dev.Draw(d.dev.Bounds(), renderFix(f), image.Point{}); err != nil {
			d.logger.Warn().Err(err).Msg("error updating display")
			continue
		}
		last, drawn = f, true
	}
}

func blank() *image1bit.VerticalLSB {
	return image1bit.NewVerticalLSB(image.Rect(0, 0, displayW, displayH))
}

func textDrawer(img *image1bit.VerticalLSB) *font.Drawer {
	return &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
}

func renderSplash() *image1bit.VerticalLSB {
	img := blank()
	drawer := textDrawer(img)

	drawer.Dot = fixed.P(15, 26)
	drawer.DrawString("GPS Tracker")

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawString("Looking for")

	drawer.Dot = fixed.P(25, 56)
	drawer.DrawString("sats")
	return img
}

// renderFix lays out status, position and speed on four 13px rows.
func renderFix(f gps.Fix) *image1bit.VerticalLSB {
	img := blank()
	drawer := textDrawer(img)

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawString("GPS " + f.Status.String())

	if !f.Locked() && f.Latitude == 0 && f.Longitude == 0 {
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawString("Waiting for fix")
		return img
	}

	drawer.Dot = fixed.P(0, 26)
	drawer.DrawString(fmt.Sprintf("Lat %10.5f", f.Latitude))

	drawer.Dot = fixed.P(0, 39)
	drawer.DrawString(fmt.Sprintf("Lng %10.5f", f.Longitude))

	drawer.Dot = fixed.P(0, 52)
	if f.Time != "" {
		drawer.DrawString(fmt.Sprintf("%.1fkn %s", f.SpeedKnots, shortTime(f.Time)))
	} else {
		drawer.DrawString(fmt.Sprintf("%.1fkn", f.SpeedKnots))
	}
	return img
}

// shortTime trims "hh:mm:ss.ffff" to "hh:mm:ss".
func shortTime(t string) string {
	if len(t) > 8 {
		return t[:8]
	}
	return t
}
