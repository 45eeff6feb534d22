// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"fmt"
	"time"
)

// Status is the binary lock state reported by the receiver.
type Status int

const (
	NoLock Status = iota
	Locked
)

func (s Status) String() string {
	if s == Locked {
		return "Locked"
	}
	return "No Lock"
}

// MarshalText keeps the human-readable form on the wire ("Locked" / "No Lock").
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Locked":
		*s = Locked
	case "No Lock":
		*s = NoLock
	default:
		return fmt.Errorf("unknown gps status %q", b)
	}
	return nil
}

// Motion holds the extra RMC fields decoded alongside a position.
type Motion struct {
	Time       string  // e.g. "12:35:19.0000"
	Date       string  // e.g. "23/03/94"
	SpeedKnots float64 // speed over ground
	CourseDeg  float64 // course over ground
}

// Fix is the latest known position and lock status.
// Coordinates survive a NoLock transition: they are the last fix seen.
type Fix struct {
	Latitude   float64   `json:"lat"`         // decimal degrees
	Longitude  float64   `json:"lng"`         // decimal degrees
	Status     Status    `json:"status"`      // "Locked" / "No Lock"
	Time       string    `json:"time"`        // UTC time of fix, from RMC
	Date       string    `json:"date"`        // date of fix, from RMC
	SpeedKnots float64   `json:"speed_knots"` // speed over ground
	CourseDeg  float64   `json:"course_deg"`  // course over ground
	UpdatedAt  time.Time `json:"updated_at"`  // last store mutation
}

// Locked reports whether the fix is currently valid.
func (f Fix) Locked() bool { return f.Status == Locked }
