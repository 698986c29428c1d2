// Package server implements the HTTP file server the mount client
// consumes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/remotefs/remotefs/internal/logging"
	"github.com/remotefs/remotefs/internal/metrics"
	"github.com/remotefs/remotefs/internal/remote"
	"github.com/remotefs/remotefs/internal/server/storage"
)

// Server serves directory listings and file content from a storage
// backend.
type Server struct {
	backend storage.Backend
}

// New creates a server over backend.
func New(backend storage.Backend) *Server {
	return &Server{backend: backend}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/list/", s.handleList)
	mux.HandleFunc("/stat/", s.handleStat)
	mux.HandleFunc("/files/", s.handleFiles)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	return logging.Middleware(mux)
}

// Run serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func requestPath(r *http.Request, route string) string {
	return strings.Trim(strings.TrimPrefix(r.URL.Path, route), "/")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, path string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found"})
		return
	}
	logging.Error("backend failure", zap.String("path", path), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Internal error"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	path := requestPath(r, "/list/")
	entries, err := s.backend.List(r.Context(), path)
	if err != nil {
		writeError(w, path, err)
		return
	}
	if entries == nil {
		entries = []remote.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleStat(w http.ResponseWriter, r *http.Request) {
	path := requestPath(r, "/stat/")
	entry, err := s.backend.Stat(r.Context(), path)
	if err != nil {
		writeError(w, path, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	path := requestPath(r, "/files/")

	offset, length, ranged, err := parseRange(r.Header.Get("Range"))
	if err != nil {
		writeJSON(w, http.StatusRequestedRangeNotSatisfiable,
			map[string]string{"detail": "Invalid range"})
		return
	}

	body, totalSize, err := s.backend.Read(r.Context(), path, offset, length)
	if err != nil {
		writeError(w, path, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Accept-Ranges", "bytes")

	if ranged {
		if offset >= totalSize {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", totalSize))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		end := totalSize - 1
		if length >= 0 && offset+length-1 < end {
			end = offset + length - 1
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, end, totalSize))
		w.Header().Set("Content-Length", strconv.FormatInt(end-offset+1, 10))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(totalSize, 10))
	}

	io.Copy(w, body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseRange interprets a single-range "bytes=start-end" header.
// length is -1 for an open-ended range; ranged reports whether a Range
// header was present at all.
func parseRange(header string) (offset, length int64, ranged bool, err error) {
	if header == "" {
		return 0, -1, false, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, true, fmt.Errorf("unsupported range %q", header)
	}

	start, end, found := strings.Cut(spec, "-")
	if !found || start == "" {
		return 0, 0, true, fmt.Errorf("unsupported range %q", header)
	}

	offset, err = strconv.ParseInt(start, 10, 64)
	if err != nil || offset < 0 {
		return 0, 0, true, fmt.Errorf("bad range start %q", header)
	}

	if end == "" {
		return offset, -1, true, nil
	}
	last, err := strconv.ParseInt(end, 10, 64)
	if err != nil || last < offset {
		return 0, 0, true, fmt.Errorf("bad range end %q", header)
	}
	return offset, last - offset + 1, true, nil
}
