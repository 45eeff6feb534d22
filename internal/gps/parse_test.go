package gps

import (
	"math"
	"testing"
)

const eps = 1e-4

func TestParse_ScenarioA(t *testing.T) {
	r := Parse("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A")
	if r.Kind != Position {
		t.Fatalf("expected position, got %v", r.Kind)
	}
	if math.Abs(r.Lat-48.1173) > eps {
		t.Fatalf("lat=%f", r.Lat)
	}
	if math.Abs(r.Lng-11.5167) > eps {
		t.Fatalf("lng=%f", r.Lng)
	}
}

func TestParse_DegreesPlusMinutes(t *testing.T) {
	cases := []struct {
		name     string
		line     string
		lat, lng float64
	}{
		{"north east", "$GPRMC,000000,A,1051.000,N,07616.200,E,,,,,", 10 + 51.0/60, 76 + 16.2/60},
		{"south west", "$GPRMC,000000,A,3351.500,S,15112.000,W,,,,,", -(33 + 51.5/60), -(151 + 12.0/60)},
		{"no fraction", "$GPRMC,000000,A,0000,N,00030,E,,,,,", 0, 0.5},
		{"180 degrees", "$GPRMC,000000,A,8959.999,N,18000.000,W,,,,,", 89 + 59.999/60, -180},
		{"unknown hemisphere stays positive", "$GPRMC,000000,A,4500.000,X,01000.000,,,,,,", 45, 10},
		{"gnss talker", "$GNRMC,000000,A,4807.038,N,01131.000,E,,,,,", 48 + 7.038/60, 11 + 31.0/60},
		{"carriage return", "$GPRMC,000000,A,4807.038,N,01131.000,E,,,,,\r\n", 48 + 7.038/60, 11 + 31.0/60},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Parse(tc.line)
			if r.Kind != Position {
				t.Fatalf("expected position, got %v", r.Kind)
			}
			if math.Abs(r.Lat-tc.lat) > 1e-9 || math.Abs(r.Lng-tc.lng) > 1e-9 {
				t.Fatalf("got (%f,%f), want (%f,%f)", r.Lat, r.Lng, tc.lat, tc.lng)
			}
		})
	}
}

func TestParse_OutOfRangeIsPassedThrough(t *testing.T) {
	r := Parse("$GPRMC,000000,A,9930.000,N,99900.000,E,,,,,")
	if r.Kind != Position {
		t.Fatalf("expected position, got %v", r.Kind)
	}
	if r.Lat != 99.5 || r.Lng != 999 {
		t.Fatalf("got (%f,%f)", r.Lat, r.Lng)
	}
}

func TestParse_NoFix(t *testing.T) {
	lines := []string{
		"$GPRMC,123519,V,...",
		"$GPRMC,123519,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*7D",
		"$GPRMC,123519,V,garbage,?,,",
		"$GPRMC,123519,,",
		"$GPRMC,123519,a,4807.038,N,01131.000,E",
		"$GPRMC,123519,V*00",
	}
	for _, l := range lines {
		if r := Parse(l); r.Kind != NoFix {
			t.Fatalf("%q: expected no-fix, got %v", l, r.Kind)
		}
	}
}

func TestParse_Ignored(t *testing.T) {
	lines := []string{
		"",
		"$",
		"$GPRMC",
		"$GPRMC,123519",
		"$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47",
		"GPRMC,123519,A,4807.038,N,01131.000,E",
		"$GPRMCX,123519,A,4807.038,N,01131.000,E",
		"$gprmc,123519,A,4807.038,N,01131.000,E",
		"\x00\xff\xfe$GPRMC",
		"$GPRMC,123519,A,4807.038,N",
		"$GPRMC,123519,A,,N,01131.000,E,,,,,",
		"$GPRMC,123519,A,48,N,01131.000,E,,,,,",
		"$GPRMC,123519,A,4807.038,N,011,E,,,,,",
		"$GPRMC,123519,A,4x07.038,N,01131.000,E,,,,,",
		"$GPRMC,123519,A,4807.0.38,N,01131.000,E,,,,,",
		"$GPRMC,123519,A,48nan,N,01131.000,E,,,,,",
		"$GPRMC,123519,A,4807.038,N,011-1.000,E,,,,,",
		"$GPRMC,123519,A,48.,N,01131.000,E,,,,,",
	}
	for _, l := range lines {
		if r := Parse(l); r.Kind != Ignored {
			t.Fatalf("%q: expected ignored, got %v", l, r.Kind)
		}
	}
}

func TestParser_VerifyChecksum(t *testing.T) {
	good := frameNoCRLF("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W")
	bad := good[:len(good)-2] + "00"

	strict := Parser{VerifyChecksum: true}
	if r := strict.Parse(good); r.Kind != Position {
		t.Fatalf("good checksum: expected position, got %v", r.Kind)
	}
	if r := strict.Parse(bad); r.Kind != Ignored {
		t.Fatalf("bad checksum: expected ignored, got %v", r.Kind)
	}
	if r := strict.Parse("$GPRMC,123519,A,4807.038,N,01131.000,E,,,,,"); r.Kind != Position {
		t.Fatalf("no checksum: expected position, got %v", r.Kind)
	}
	if r := Parse(bad); r.Kind != Position {
		t.Fatalf("lenient parser: expected position, got %v", r.Kind)
	}
}

func TestParse_Motion(t *testing.T) {
	r := Parse(frameNoCRLF("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"))
	if r.Kind != Position {
		t.Fatalf("expected position, got %v", r.Kind)
	}
	if r.Motion == nil {
		t.Fatalf("expected motion")
	}
	if math.Abs(r.Motion.SpeedKnots-22.4) > 1e-9 || math.Abs(r.Motion.CourseDeg-84.4) > 1e-9 {
		t.Fatalf("unexpected motion %+v", *r.Motion)
	}
	if r.Motion.Time == "" || r.Motion.Date == "" {
		t.Fatalf("expected time and date, got %+v", *r.Motion)
	}

	// Without a checksum go-nmea refuses the sentence; the position still stands.
	r = Parse("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W")
	if r.Kind != Position || r.Motion != nil {
		t.Fatalf("expected position without motion, got %+v", r)
	}
}

func frameNoCRLF(payload string) string {
	f := frame(payload)
	return f[:len(f)-2]
}
