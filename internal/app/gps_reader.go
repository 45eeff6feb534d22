// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/gps_tracker/internal/gps"
)

const (
	// readChunk is how much is pulled from the serial source per poll.
	readChunk = 256
	// maxLineLen bounds a partial line; NMEA sentences are at most 82 bytes.
	maxLineLen = 1024
)

// GPSReader polls the serial source, splits it into lines, parses them and
// writes accepted results into the store. When no data is pending it
// sleeps for the poll interval. It only stops when its context is done.
type GPSReader struct {
	src      io.Reader
	store    *gps.Store
	parser   gps.Parser
	poll     time.Duration
	onUpdate []func(gps.Fix)
	logger   zerolog.Logger

	chunk      []byte
	pending    []byte
	discarding bool
	lastErr string
	status  gps.Status
}

func NewGPSReader(src io.Reader, store *gps.Store, parser gps.Parser, poll time.Duration) *GPSReader {
	return &GPSReader{
		src:    src,
		store:  store,
		parser: parser,
		poll:   poll,
		logger: log.With().Str("module", "gps").Logger(),
		chunk:  make([]byte, readChunk),
		status: store.Read().Status,
	}
}

// OnUpdate registers fn to receive the new snapshot after every store
// mutation. fn runs on the reader goroutine and must not block.
// Register before Run.
func (r *GPSReader) OnUpdate(fn func(gps.Fix)) {
	r.onUpdate = append(r.onUpdate, fn)
}

func (r *GPSReader) Run(ctx context.Context) error {
	r.logger.Info().Dur("poll", r.poll).Msg("gps reader started")
	timer := time.NewTimer(r.poll)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			r.logger.Info().Msg("gps reader stopped")
			return nil
		}
		if r.readOnce() {
			continue
		}
		timer.Reset(r.poll)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
}

// readOnce pulls whatever the source has and reports whether it had any.
// io.EOF means "nothing pending"; any other error is logged and also
// treated as idle so a flaky port never ends the task.
func (r *GPSReader) readOnce() bool {
	n, err := r.src.Read(r.chunk)
	if n > 0 {
		r.feed(r.chunk[:n])
	}
	if err != nil && !errors.Is(err, io.EOF) {
		if msg := err.Error(); msg != r.lastErr {
			r.logger.Warn().Err(err).Msg("gps read error")
			r.lastErr = msg
		}
		return false
	}
	if n > 0 {
		r.lastErr = ""
	}
	return n > 0 && err == nil
}

// feed splits b into lines. Once a partial line grows past maxLineLen it is
// dropped along with everything up to the next newline.
func (r *GPSReader) feed(b []byte) {
	for len(b) > 0 {
		i := bytes.IndexByte(b, '\n')
		if r.discarding {
			if i < 0 {
				return
			}
			r.discarding = false
			b = b[i+1:]
			continue
		}
		if i < 0 {
			r.pending = append(r.pending, b...)
			if len(r.pending) > maxLineLen {
				r.logger.Debug().Int("bytes", len(r.pending)).Msg("discarding overlong line")
				r.pending = r.pending[:0]
				r.discarding = true
			}
			return
		}

		r.pending = append(r.pending, b[:i]...)
		if len(r.pending) > maxLineLen {
			r.logger.Debug().Int("bytes", len(r.pending)).Msg("discarding overlong line")
		} else {
			r.handleLine(bytes.TrimRight(r.pending, "\r"))
		}
		r.pending = r.pending[:0]
		b = b[i+1:]
	}
}

func (r *GPSReader) handleLine(line []byte) {
	if len(line) == 0 {
		return
	}
	if !utf8.Valid(line) {
		r.logger.Debug().Int("bytes", len(line)).Msg("skipping non-text line")
		return
	}

	res := r.parser.Parse(string(line))
	if !r.store.Apply(res) {
		return
	}
	fix := r.store.Read()

	if fix.Status != r.status {
		if fix.Status == gps.Locked {
			r.logger.Info().Float64("lat", fix.Latitude).Float64("lng", fix.Longitude).Msg("gps lock acquired")
		} else {
			r.logger.Warn().Msg("gps lock lost")
		}
		r.status = fix.Status
	}
	if res.Kind == gps.Position {
		r.logger.Debug().Float64("lat", fix.Latitude).Float64("lng", fix.Longitude).Msg("gps fix")
	}

	for _, fn := range r.onUpdate {
		fn(fix)
	}
}
