// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/gps_tracker/internal/gps"
)

//go:embed web/index.html
var defaultPage []byte

// FixReader is the read side of gps.Store.
type FixReader interface {
	Read() gps.Fix
}

// dataResponse is the body of GET /data.
type dataResponse struct {
	Lat    float64    `json:"lat"`
	Lng    float64    `json:"lng"`
	Status gps.Status `json:"status"`
}

type webHandler struct {
	fixes  FixReader
	page   []byte
	logger zerolog.Logger
}

// LoadPage returns the map page served on "/": the file at path, or the
// embedded default when path is empty.
func LoadPage(path string) ([]byte, error) {
	if path == "" {
		return defaultPage, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read web page: %w", err)
	}
	return b, nil
}

// NewWebHandler routes on the parsed request line, exact path only:
//
//	GET /data  latest fix as JSON, readable from any origin
//	GET /      map page
//	anything else  404 with an empty body
//
// Every response carries "Connection: close".
func NewWebHandler(fixes FixReader, page []byte) http.Handler {
	h := &webHandler{
		fixes:  fixes,
		page:   page,
		logger: log.With().Str("module", "web").Logger(),
	}

	r := chi.NewRouter()
	r.Use(closeConnection)
	r.Use(h.logRequests)
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Group(func(r chi.Router) {
		// Adds the CORS headers for the companion app. Preflights pass
		// through, so OPTIONS still ends in notFound.
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:     []string{"*"},
			AllowedMethods:     []string{http.MethodGet},
			OptionsPassthrough: true,
		}))
		r.Get("/data", h.data)
		r.Options("/data", notFound)
	})
	r.Get("/", h.index)

	return r
}

func (h *webHandler) data(w http.ResponseWriter, r *http.Request) {
	f := h.fixes.Read()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(dataResponse{Lat: f.Latitude, Lng: f.Longitude, Status: f.Status}); err != nil {
		h.logger.Debug().Err(err).Msg("json encode error")
	}
}

func (h *webHandler) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(h.page); err != nil {
		h.logger.Debug().Err(err).Msg("write page")
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
}

func closeConnection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "close")
		next.ServeHTTP(w, r)
	})
}

func (h *webHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("remote", r.RemoteAddr).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}
