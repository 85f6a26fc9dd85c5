// Package mirror serves a local build directory over HTTP so release
// downloads and checksums can be tried before publishing.
package mirror

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/distkit/internal/checksum"
	"github.com/vango-dev/distkit/internal/config"
	"github.com/vango-dev/distkit/internal/errors"
	"github.com/vango-dev/distkit/internal/telemetry"
)

// Artifact describes one manifest entry in the index.
type Artifact struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256,omitempty"`
	URL    string `json:"url"`
}

// Index is the JSON body of GET /.
type Index struct {
	Binary    string     `json:"binary"`
	Artifacts []Artifact `json:"artifacts"`
	Checksums string     `json:"checksums,omitempty"`
}

// Server serves the manifest, the SHA256 file and the listed artifacts.
type Server struct {
	config  *config.Config
	metrics *telemetry.Metrics
	logger  *slog.Logger
	router  chi.Router
}

// New creates a mirror for cfg's build directory. The manifest is re-read on
// every request, so rebuilds show up without a restart.
func New(cfg *config.Config, metrics *telemetry.Metrics, logger *slog.Logger) *Server {
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config:  cfg,
		metrics: metrics,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Get("/"+checksum.FileName, s.handleChecksums)
	r.Get("/artifacts/{name}", s.handleArtifact)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled. onListen, if set, is
// called with the bound address.
func (s *Server) ListenAndServe(ctx context.Context, addr string, onListen func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.New("D707").Wrap(err)
	}
	if onListen != nil {
		onListen(ln.Addr())
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return errors.New("D707").Wrap(err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	names, err := checksum.ReadManifest(s.config.ManifestPath())
	if err != nil {
		writeError(w, http.StatusNotFound, "no release built yet; run distkit dist-all")
		return
	}

	sums := make(map[string]string)
	sumsPath := filepath.Join(s.config.BuildPath(), checksum.FileName)
	entries, sumsErr := checksum.ReadFile(sumsPath)
	if sumsErr == nil {
		for _, e := range entries {
			sums[e.Name] = e.Digest.Encoded()
		}
	}

	idx := Index{
		Binary:    s.config.Binary,
		Artifacts: make([]Artifact, 0, len(names)),
	}
	if sumsErr == nil {
		idx.Checksums = "/" + checksum.FileName
	}
	for _, name := range names {
		a := Artifact{
			Name:   name,
			SHA256: sums[name],
			URL:    "/artifacts/" + name,
		}
		if info, err := os.Stat(filepath.Join(s.config.BuildPath(), name)); err == nil {
			a.Size = info.Size()
		}
		idx.Artifacts = append(idx.Artifacts, a)
	}

	writeJSON(w, http.StatusOK, idx)
}

func (s *Server) handleChecksums(w http.ResponseWriter, r *http.Request) {
	s.serveFile(w, r, checksum.FileName, "text/plain; charset=utf-8")
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	names, err := checksum.ReadManifest(s.config.ManifestPath())
	if err != nil || !slices.Contains(names, name) {
		writeError(w, http.StatusNotFound, "artifact not in manifest")
		return
	}
	s.serveFile(w, r, name, "application/octet-stream")
}

// serveFile serves name from the build directory. name has already been
// checked against a fixed list, so it cannot escape the directory.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, name, contentType string) {
	f, err := os.Open(filepath.Join(s.config.BuildPath(), name))
	if err != nil {
		writeError(w, http.StatusNotFound, name+" not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, name+" not found")
		return
	}
	w.Header().Set("Content-Type", contentType)
	if contentType == "application/octet-stream" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("mirror request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
