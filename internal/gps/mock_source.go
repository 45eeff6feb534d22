// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"fmt"
	"io"
	"math"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// mockRadiusDeg is how far the mock position wanders from its centre.
const mockRadiusDeg = 0.001

type mockSource struct {
	lat, lng float64
	period   time.Duration
	start    time.Time
	last     time.Time
	pending  []byte
	now      func() time.Time
}

// NewMockSource creates a serial-like reader that emits one RMC sentence
// (followed by a GGA sentence, which the parser ignores) per period, slowly
// circling around lat/lng. Between sentences Read reports io.EOF, the same
// way an idle serial port in poll mode does.
func NewMockSource(lat, lng float64, period time.Duration) io.Reader {
	return newMockSource(lat, lng, period, time.Now)
}

func newMockSource(lat, lng float64, period time.Duration, now func() time.Time) *mockSource {
	return &mockSource{lat: lat, lng: lng, period: period, start: now(), now: now}
}

func (m *mockSource) Read(p []byte) (int, error) {
	if len(m.pending) == 0 {
		t := m.now()
		if !m.last.IsZero() && t.Sub(m.last) < m.period {
			return 0, io.EOF
		}
		m.last = t
		m.pending = m.sentences(t)
	}
	n := copy(p, m.pending)
	m.pending = m.pending[n:]
	return n, nil
}

func (m *mockSource) sentences(t time.Time) []byte {
	elapsed := t.Sub(m.start).Seconds()
	lat := m.lat + mockRadiusDeg*math.Sin(elapsed/30)
	lng := m.lng + mockRadiusDeg*math.Cos(elapsed/30)

	latField, latHemi := nmeaCoord(lat, 2, "N", "S")
	lngField, lngHemi := nmeaCoord(lng, 3, "E", "W")
	utc := t.UTC()
	hms := utc.Format("150405.00")

	rmc := fmt.Sprintf("GPRMC,%s,A,%s,%s,%s,%s,000.5,054.7,%s,,",
		hms, latField, latHemi, lngField, lngHemi, utc.Format("020106"))
	gga := fmt.Sprintf("GPGGA,%s,%s,%s,%s,%s,1,08,0.9,545.4,M,46.9,M,,",
		hms, latField, latHemi, lngField, lngHemi)

	return []byte(frame(rmc) + frame(gga))
}

func frame(payload string) string {
	return "$" + payload + "*" + nmea.Checksum(payload) + "\r\n"
}

// nmeaCoord formats decimal degrees as DDMM.MMMM (or DDDMM.MMMM) plus a
// hemisphere letter.
func nmeaCoord(v float64, degDigits int, pos, neg string) (string, string) {
	hemi := pos
	if v < 0 {
		hemi = neg
		v = -v
	}
	deg := math.Floor(v)
	mins := (v - deg) * 60
	return fmt.Sprintf("%0*d%07.4f", degDigits, int(deg), mins), hemi
}
