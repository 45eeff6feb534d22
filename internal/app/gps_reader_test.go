package app

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/gps_tracker/internal/gps"
)

const scenarioA = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"

// scriptedSource hands out one step per Read; once the script is exhausted
// it behaves like an idle port.
type scriptedSource struct {
	mu    sync.Mutex
	steps []step
	reads int
}

type step struct {
	data string
	err  error
}

func (s *scriptedSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if len(s.steps) == 0 {
		return 0, io.EOF
	}
	st := s.steps[0]
	n := copy(p, st.data)
	if n < len(st.data) {
		s.steps[0].data = st.data[n:]
		return n, nil
	}
	s.steps = s.steps[1:]
	return n, st.err
}

func (s *scriptedSource) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func drain(r *GPSReader, src *scriptedSource) {
	for i := 0; i < 100; i++ {
		r.readOnce()
		src.mu.Lock()
		empty := len(src.steps) == 0
		src.mu.Unlock()
		if empty {
			return
		}
	}
}

func TestGPSReader_LineSplitAcrossReads(t *testing.T) {
	store := gps.NewStore()
	src := &scriptedSource{steps: []step{
		{data: scenarioA[:20]},
		{data: scenarioA[20:] + "\r"},
		{data: "\n"},
	}}
	r := NewGPSReader(src, store, gps.Parser{}, time.Millisecond)
	drain(r, src)

	f := store.Read()
	if f.Status != gps.Locked {
		t.Fatalf("expected locked, got %v", f.Status)
	}
	if math.Abs(f.Latitude-48.1173) > 1e-4 || math.Abs(f.Longitude-11.5167) > 1e-4 {
		t.Fatalf("unexpected position %f,%f", f.Latitude, f.Longitude)
	}
}

func TestGPSReader_ScenarioB_NoFixKeepsPosition(t *testing.T) {
	store := gps.NewStore()
	src := &scriptedSource{steps: []step{
		{data: scenarioA + "\r\n"},
		{data: "$GPRMC,123520,V,,,,,,,230394,,*00\r\n"},
	}}
	var updates []gps.Fix
	r := NewGPSReader(src, store, gps.Parser{}, time.Millisecond)
	r.OnUpdate(func(f gps.Fix) { updates = append(updates, f) })
	drain(r, src)

	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[0].Status != gps.Locked || updates[1].Status != gps.NoLock {
		t.Fatalf("unexpected statuses %v %v", updates[0].Status, updates[1].Status)
	}
	if updates[1].Latitude != updates[0].Latitude || updates[1].Longitude != updates[0].Longitude {
		t.Fatalf("coordinates changed on no-fix")
	}
}

func TestGPSReader_ScenarioE_OtherSentencesIgnored(t *testing.T) {
	store := gps.NewStore()
	before := store.Read()
	src := &scriptedSource{steps: []step{
		{data: "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47\r\n"},
		{data: "$GPGSA,A,3,04,05,,09,12,,,24,,,,,2.5,1.3,2.1*39\r\n"},
		{data: "hello\r\n\r\n"},
	}}
	called := false
	r := NewGPSReader(src, store, gps.Parser{}, time.Millisecond)
	r.OnUpdate(func(gps.Fix) { called = true })
	drain(r, src)

	if called {
		t.Fatalf("unexpected update")
	}
	if after := store.Read(); after != before {
		t.Fatalf("store changed: %+v -> %+v", before, after)
	}
}

func TestGPSReader_SkipsInvalidUTF8(t *testing.T) {
	store := gps.NewStore()
	src := &scriptedSource{steps: []step{
		{data: "$GPRMC,000000,A,1000.000,S,02000.000,W,\xff\xfe\r\n"},
		{data: scenarioA + "\r\n"},
	}}
	var n int
	r := NewGPSReader(src, store, gps.Parser{}, time.Millisecond)
	r.OnUpdate(func(gps.Fix) { n++ })
	drain(r, src)

	if n != 1 {
		t.Fatalf("expected 1 update, got %d", n)
	}
	if f := store.Read(); f.Status != gps.Locked || f.Latitude < 0 {
		t.Fatalf("expected only the valid sentence to land, got %+v", f)
	}
}

func TestGPSReader_DiscardsOverlongLine(t *testing.T) {
	store := gps.NewStore()
	src := &scriptedSource{steps: []step{
		{data: "$GPRMC," + strings.Repeat("9", maxLineLen+10)},
		{data: "\r\n" + scenarioA + "\r\n"},
	}}
	r := NewGPSReader(src, store, gps.Parser{}, time.Millisecond)
	drain(r, src)

	if store.Read().Status != gps.Locked {
		t.Fatalf("expected the sentence after the overlong line to be parsed")
	}
	if len(r.pending) != 0 {
		t.Fatalf("expected empty buffer, got %d bytes", len(r.pending))
	}
}

func TestGPSReader_OverlongLineDroppedToNewline(t *testing.T) {
	store := gps.NewStore()
	src := &scriptedSource{steps: []step{
		{data: strings.Repeat("x", 1280)},
		// Tail of the same line: must not be taken for a new sentence.
		{data: scenarioA + "\r\n"},
	}}
	r := NewGPSReader(src, store, gps.Parser{}, time.Millisecond)
	drain(r, src)

	if f := store.Read(); f.Status != gps.NoLock || f.Latitude != 0 {
		t.Fatalf("tail of overlong line was parsed: %+v", f)
	}
	if r.discarding {
		t.Fatalf("expected discarding to stop at the newline")
	}

	src.mu.Lock()
	src.steps = append(src.steps, step{data: scenarioA + "\r\n"})
	src.mu.Unlock()
	drain(r, src)
	if store.Read().Status != gps.Locked {
		t.Fatalf("expected the next line to be parsed")
	}
}

func TestGPSReader_ReadErrorsAreNotFatal(t *testing.T) {
	store := gps.NewStore()
	boom := errors.New("input/output error")
	src := &scriptedSource{steps: []step{
		{err: boom},
		{err: boom},
		{data: scenarioA + "\r\n"},
	}}
	r := NewGPSReader(src, store, gps.Parser{}, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for store.Read().Status != gps.Locked {
		if time.Now().After(deadline) {
			t.Fatalf("reader never recovered from read errors")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("reader did not stop on cancel")
	}
}

func TestGPSReader_SleepsWhenIdle(t *testing.T) {
	src := &scriptedSource{}
	r := NewGPSReader(src, gps.NewStore(), gps.Parser{}, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 110ms at one poll per 20ms: a busy loop would read thousands of times.
	if n := src.readCount(); n < 2 || n > 10 {
		t.Fatalf("expected poll-and-sleep, got %d reads", n)
	}
}

func TestGPSReader_MockSource(t *testing.T) {
	store := gps.NewStore()
	src := gps.NewMockSource(-33.8568, 151.2153, 10*time.Millisecond)
	r := NewGPSReader(src, store, gps.Parser{VerifyChecksum: true}, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for {
		f := store.Read()
		if f.Status == gps.Locked {
			if f.Latitude > -33 || f.Longitude < 151 {
				t.Fatalf("unexpected mock position %+v", f)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("no fix from mock source")
		}
		time.Sleep(time.Millisecond)
	}
}
