// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package serialport opens the GPS UART in poll mode: a Read with nothing
// pending returns io.EOF after a short timeout instead of blocking, so the
// reader can sleep and check again.
package serialport

import (
	"fmt"
	"io"

	serial "github.com/jacobsa/go-serial/serial"
)

// pollTimeoutMS is the inter-character timeout. go-serial rounds it to
// tenths of a second (termios VTIME).
const pollTimeoutMS = 100

// Options returns the 8N1 settings used for the receiver.
func Options(portName string, baud int) serial.OpenOptions {
	return serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: pollTimeoutMS,
	}
}

// Open opens portName at baud.
func Open(portName string, baud int) (io.ReadWriteCloser, error) {
	opts := Options(portName, baud)
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	return port, nil
}
