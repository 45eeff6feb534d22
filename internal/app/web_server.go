// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/gps_tracker/internal/config"
)

const (
	// lingerTimeout bounds how long unread request bytes are drained after
	// the response, so closing does not reset the connection under the client.
	lingerTimeout = 500 * time.Millisecond
	lingerBytes   = 64 << 10

	maxAcceptDelay = time.Second
)

// WebServer answers exactly one request per connection. It reads at most
// maxRequest bytes, routes on the request line alone and always replies
// with one of the handler's responses; it never produces a protocol error
// of its own.
type WebServer struct {
	handler     http.Handler
	maxRequest  int
	readTimeout time.Duration
	logger      zerolog.Logger

	wg sync.WaitGroup
}

func NewWebServer(cfg *config.Config, handler http.Handler) *WebServer {
	return &WebServer{
		handler:     handler,
		maxRequest:  cfg.WebMaxRequestBytes,
		readTimeout: cfg.WebReadHeaderTimeout,
		logger:      log.With().Str("module", "web").Logger(),
	}
}

// RunWeb serves on ln until ctx is done. Accept and connection errors are
// logged and retried; only a listener closed by someone else ends the loop.
func RunWeb(ctx context.Context, srv *WebServer, ln net.Listener) error {
	srv.logger.Info().Str("addr", ln.Addr().String()).Msg("web server listening")

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()
	defer close(stop)

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				srv.wg.Wait()
				srv.logger.Info().Msg("web server stopped")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				srv.wg.Wait()
				return fmt.Errorf("web server: %w", err)
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			srv.logger.Warn().Err(err).Dur("retry_in", delay).Msg("accept error")
			time.Sleep(delay)
			continue
		}
		delay = 0

		srv.wg.Add(1)
		go func() {
			defer srv.wg.Done()
			srv.serveConn(ctx, conn)
		}()
	}
}

func (s *WebServer) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	buf, err := readRequest(conn, s.maxRequest)
	if err != nil && len(buf) == 0 {
		s.logger.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("no request")
		return
	}

	rw := newBufferedResponse()
	req := parseRequest(ctx, buf, conn.RemoteAddr().String())
	if req == nil {
		notFound(rw, nil)
	} else {
		s.handler.ServeHTTP(rw, req)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(s.readTimeout))
	if _, err := rw.WriteTo(conn); err != nil {
		s.logger.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("write response")
		return
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
		_ = conn.SetReadDeadline(time.Now().Add(lingerTimeout))
		_, _ = io.Copy(io.Discard, io.LimitReader(conn, lingerBytes))
	}
}

// readRequest reads until the request line is complete, limit bytes have
// arrived or the peer stops sending. Headers are only kept if they came in
// with the request line.
func readRequest(r io.Reader, limit int) ([]byte, error) {
	buf := make([]byte, limit)
	n := 0
	for n < limit {
		m, err := r.Read(buf[n:])
		n += m
		if bytes.IndexByte(buf[:n], '\n') >= 0 {
			return buf[:n], nil
		}
		if err != nil {
			return buf[:n], err
		}
	}
	return buf[:n], nil
}

// parseRequest builds a request from the request line ("METHOD TARGET
// [VERSION]"). The version is ignored. It returns nil when the line has no
// method and target or the target is not a path.
func parseRequest(ctx context.Context, buf []byte, remote string) *http.Request {
	line, rest := buf, []byte(nil)
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		line, rest = buf[:i], buf[i+1:]
	}
	fields := strings.Fields(string(bytes.TrimRight(line, "\r")))
	if len(fields) < 2 || !strings.HasPrefix(fields[1], "/") {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, fields[0], fields[1], nil)
	if err != nil {
		return nil
	}
	req.RequestURI = fields[1]
	req.RemoteAddr = remote
	req.Close = true

	// Best effort: a truncated or malformed block still yields the fields
	// parsed before the error.
	hdr, _ := textproto.NewReader(bufio.NewReader(bytes.NewReader(rest))).ReadMIMEHeader()
	req.Header = http.Header(hdr)
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	req.Host = req.Header.Get("Host")
	return req
}

// bufferedResponse collects a handler's response so it can be written in
// one piece with an exact Content-Length.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) WriteTo(w io.Writer) (int64, error) {
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	b.header.Set("Connection", "close")
	b.header.Set("Content-Length", strconv.Itoa(b.body.Len()))

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	if err := b.header.Write(bw); err != nil {
		return 0, err
	}
	bw.WriteString("\r\n")
	bw.Write(b.body.Bytes())
	return int64(bw.Buffered()), bw.Flush()
}
