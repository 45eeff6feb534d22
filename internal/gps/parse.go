// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"strconv"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// Kind tags the outcome of parsing one line.
type Kind int

const (
	Ignored Kind = iota // not an RMC sentence, or malformed
	NoFix               // RMC with validity other than "A"
	Position            // RMC with a decoded position
)

func (k Kind) String() string {
	switch k {
	case NoFix:
		return "no-fix"
	case Position:
		return "position"
	default:
		return "ignored"
	}
}

// Result is the tagged outcome of Parse. Lat/Lng are only meaningful for
// Position. Motion is set when the full sentence also decodes through
// go-nmea (checksum present and correct).
type Result struct {
	Kind   Kind
	Lat    float64
	Lng    float64
	Motion *Motion
}

// RMC field indices, counting the sentence identifier as field 0.
const (
	fieldValidity = 2
	fieldLat      = 3
	fieldLatHemi  = 4
	fieldLng      = 5
	fieldLngHemi  = 6
)

// Parser decodes RMC sentences. The zero value accepts sentences with or
// without a checksum and does not verify it.
type Parser struct {
	// VerifyChecksum rejects sentences whose "*hh" suffix does not match
	// the payload. Sentences without a checksum are still accepted.
	VerifyChecksum bool
}

// Parse decodes line with the default Parser.
func Parse(line string) Result {
	return Parser{}.Parse(line)
}

// Parse never panics and never returns an error: anything it cannot use is
// reported as Ignored. Coordinates are not range checked.
func (p Parser) Parse(line string) Result {
	line = strings.TrimRight(line, "\r\n")
	if !isRMC(line) {
		return Result{Kind: Ignored}
	}

	payload := line[1:]
	if star := strings.LastIndexByte(payload, '*'); star >= 0 {
		sum := payload[star+1:]
		payload = payload[:star]
		if p.VerifyChecksum && !strings.EqualFold(strings.TrimSpace(sum), nmea.Checksum(payload)) {
			return Result{Kind: Ignored}
		}
	}

	fields := strings.Split(payload, ",")
	// payload dropped the leading '$' but kept the identifier, so the
	// indices still line up with the sentence layout.
	if len(fields) <= fieldValidity {
		return Result{Kind: Ignored}
	}
	if fields[fieldValidity] != "A" {
		return Result{Kind: NoFix}
	}
	if len(fields) <= fieldLngHemi {
		return Result{Kind: Ignored}
	}

	lat, ok := decodeCoord(fields[fieldLat], 2)
	if !ok {
		return Result{Kind: Ignored}
	}
	if fields[fieldLatHemi] == "S" {
		lat = -lat
	}
	lng, ok := decodeCoord(fields[fieldLng], 3)
	if !ok {
		return Result{Kind: Ignored}
	}
	if fields[fieldLngHemi] == "W" {
		lng = -lng
	}

	return Result{Kind: Position, Lat: lat, Lng: lng, Motion: decodeMotion(line)}
}

// isRMC matches "$GPRMC" and the other talkers ("$GNRMC", "$GLRMC", ...).
func isRMC(line string) bool {
	if len(line) < 6 || line[0] != '$' {
		return false
	}
	if line[3:6] != "RMC" || !isUpper(line[1]) || !isUpper(line[2]) {
		return false
	}
	return len(line) == 6 || line[6] == ',' || line[6] == '*'
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }

// decodeCoord turns a fixed-point "DDMM.MMMM" (degDigits=2) or
// "DDDMM.MMMM" (degDigits=3) field into decimal degrees.
func decodeCoord(raw string, degDigits int) (float64, bool) {
	if len(raw) <= degDigits {
		return 0, false
	}
	degPart, minPart := raw[:degDigits], raw[degDigits:]
	if !isDigits(degPart) || !isDecimal(minPart) {
		return 0, false
	}
	deg, err := strconv.ParseFloat(degPart, 64)
	if err != nil {
		return 0, false
	}
	mins, err := strconv.ParseFloat(minPart, 64)
	if err != nil {
		return 0, false
	}
	return deg + mins/60, true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// isDecimal accepts digits with at most one '.', and at least one digit.
func isDecimal(s string) bool {
	digits, dots := 0, 0
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] >= '0' && s[i] <= '9':
			digits++
		case s[i] == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

func decodeMotion(line string) *Motion {
	sentence, err := nmea.Parse(line)
	if err != nil {
		return nil
	}
	m, ok := sentence.(nmea.RMC)
	if !ok {
		return nil
	}
	return &Motion{
		Time:       m.Time.String(),
		Date:       m.Date.String(),
		SpeedKnots: m.Speed,
		CourseDeg:  m.Course,
	}
}
