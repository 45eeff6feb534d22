package app

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/gps_tracker/internal/gps"
)

// LockIndicator drives an LED that is lit while the receiver reports a lock.
type LockIndicator struct {
	mu     sync.Mutex
	pin    gpio.PinOut
	lit    bool
	logger zerolog.Logger
}

// OpenLockIndicator initializes periph and looks up the pin by name
// (e.g. "GPIO17").
func OpenLockIndicator(name string) (*LockIndicator, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	return NewLockIndicator(pin)
}

// NewLockIndicator drives pin low and returns the indicator.
func NewLockIndicator(pin gpio.PinOut) (*LockIndicator, error) {
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("set %s low: %w", pin, err)
	}
	return &LockIndicator{
		pin:    pin,
		logger: log.With().Str("module", "led").Logger(),
	}, nil
}

// Update lights the LED for a locked fix. The pin is only written on change.
func (l *LockIndicator) Update(f gps.Fix) {
	l.set(f.Locked())
}

// Off turns the LED off.
func (l *LockIndicator) Off() {
	l.set(false)
}

func (l *LockIndicator) set(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if on == l.lit {
		return
	}
	if err := l.pin.Out(gpio.Level(on)); err != nil {
		l.logger.Warn().Err(err).Str("pin", l.pin.Name()).Msg("gpio write failed")
		return
	}
	l.lit = on
}
