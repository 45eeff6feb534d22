// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"sync/atomic"
	"time"
)

// Store holds the latest Fix. Readers load an immutable snapshot through an
// atomic pointer and never wait on the writer; writers publish a modified
// copy with compare-and-swap, so a reader sees either the old Fix or the new
// one, never a mix.
type Store struct {
	cur atomic.Pointer[Fix]
	now func() time.Time
}

// NewStore returns a store holding (0, 0, NoLock).
func NewStore() *Store {
	s := &Store{now: time.Now}
	s.cur.Store(&Fix{Status: NoLock})
	return s
}

// Read returns a consistent copy of the current fix.
func (s *Store) Read() Fix {
	return *s.cur.Load()
}

// SetPosition records a new position and marks the fix Locked. Motion
// fields are replaced by m, or cleared when m is nil, so they always belong
// to the current position.
func (s *Store) SetPosition(lat, lng float64, m *Motion) {
	s.update(func(f *Fix) {
		f.Latitude = lat
		f.Longitude = lng
		f.Status = Locked
		var mo Motion
		if m != nil {
			mo = *m
		}
		f.Time = mo.Time
		f.Date = mo.Date
		f.SpeedKnots = mo.SpeedKnots
		f.CourseDeg = mo.CourseDeg
	})
}

// SetNoLock marks the fix NoLock and keeps the last known coordinates.
func (s *Store) SetNoLock() {
	s.update(func(f *Fix) {
		f.Status = NoLock
	})
}

// Apply writes a parse result into the store. It reports whether the store
// was mutated; Ignored results leave it untouched.
func (s *Store) Apply(r Result) bool {
	switch r.Kind {
	case Position:
		s.SetPosition(r.Lat, r.Lng, r.Motion)
		return true
	case NoFix:
		s.SetNoLock()
		return true
	default:
		return false
	}
}

func (s *Store) update(mutate func(*Fix)) {
	for {
		old := s.cur.Load()
		next := *old
		mutate(&next)
		next.UpdatedAt = s.now()
		if s.cur.CompareAndSwap(old, &next) {
			return
		}
	}
}
