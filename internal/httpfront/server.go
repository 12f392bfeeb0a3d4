// Package httpfront is the concrete (but still "external collaborator" per
// spec.md §6) HTTP front-end demo: it maps a request path onto a build
// target, calls the engine, and serves the resulting file with
// conditional-GET support, broadcasting a live-reload notification over a
// websocket hub after each successful build whose response is not a 304.
package httpfront

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"kake/internal/kerr"
	"kake/internal/stale"
	"kake/pkg/kake"
)

// Server serves generated files on demand, building them fresh via an
// Engine before responding.
type Server struct {
	Engine      *kake.Engine
	ProjectRoot string
	Hub         *NotifyHub
	Logger      *slog.Logger
}

// New constructs a Server. A nil hub disables live-reload broadcasts; a
// nil logger falls back to slog.Default().
func New(engine *kake.Engine, projectRoot string, hub *NotifyHub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{Engine: engine, ProjectRoot: projectRoot, Hub: hub, Logger: logger}
}

// ServeHTTP implements http.Handler: GET and HEAD build the target named
// by the request path (relative to the project root) and serve it,
// honoring If-None-Match / If-Modified-Since.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := uuid.NewString()
	target := strings.TrimPrefix(r.URL.Path, "/")
	logger := s.Logger.With("request_id", requestID, "target", target)

	if err := s.Engine.Build(r.Context(), target, kake.BuildContext{}); err != nil {
		s.writeError(w, logger, target, err)
		return
	}

	full := filepath.Join(s.ProjectRoot, target)
	sidecar, _ := stale.ReadSidecar(full)

	info, statErr := os.Stat(full)
	var modTime time.Time
	if statErr == nil {
		modTime = info.ModTime()
	}

	etag := ""
	if data, err := os.ReadFile(full); err == nil {
		sum := sha256.Sum256(data)
		etag = `"` + hex.EncodeToString(sum[:]) + `"`
	}
	notModified := false
	if match := r.Header.Get("If-None-Match"); match != "" {
		notModified = match == etag
	} else if since := r.Header.Get("If-Modified-Since"); since != "" && statErr == nil {
		if t, err := http.ParseTime(since); err == nil {
			notModified = !modTime.Truncate(time.Second).After(t)
		}
	}
	if notModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	if statErr == nil {
		w.Header().Set("Last-Modified", modTime.UTC().Format(http.TimeFormat))
	}
	if ct := mime.TypeByExtension(filepath.Ext(full)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}

	if s.Hub != nil {
		s.Hub.Broadcast(BuildNotification{Target: target, Version: sidecar.VersionTag})
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	http.ServeFile(w, r, full)
}

func (s *Server) writeError(w http.ResponseWriter, logger *slog.Logger, target string, err error) {
	var buildFailed *kerr.BuildFailedError
	switch {
	case errors.Is(err, kerr.ErrUnknownTarget):
		logger.Info("unknown target", "err", err)
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, kerr.ErrBadRequest):
		logger.Info("bad request", "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &buildFailed):
		logger.Error("build failed", "err", err, "stderr", buildFailed.Stderr)
		http.Error(w, buildFailed.Stderr, http.StatusInternalServerError)
	default:
		logger.Error("build error", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
