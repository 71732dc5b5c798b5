package main

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/archtree/tartree/tarfs"
)

func (s *server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/stat", s.handleStat)
	mux.HandleFunc("/ls", s.handleLs)
	mux.HandleFunc("/cat", s.handleCat)
	mux.Handle("/metrics", promhttp.Handler())
}

func pathParam(r *http.Request) string {
	p := r.URL.Query().Get("path")
	if p == "" {
		return "."
	}
	return p
}

func (s *server) report(kind string, err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, fs.ErrNotExist):
		return "not_found"
	case errors.Is(err, fs.ErrInvalid):
		return "invalid"
	default:
		sentry.CaptureException(err)
		return "error"
	}
}

func statusFor(outcome string) int {
	switch outcome {
	case "ok":
		return http.StatusOK
	case "not_found":
		return http.StatusNotFound
	case "invalid":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) handleStat(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r)
	fi, err := s.fsys.Stat(path)
	outcome := s.report("stat", err)
	s.metrics.observe("stat", outcome)
	if err != nil {
		http.Error(w, err.Error(), statusFor(outcome))
		return
	}
	json.NewEncoder(w).Encode(struct {
		Path  string `json:"path"`
		IsDir bool   `json:"is_dir"`
		Size  int64  `json:"size"`
	}{Path: path, IsDir: fi.IsDir(), Size: fi.Size()})
}

func (s *server) handleLs(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r)
	entries, err := s.fsys.ReadDir(path)
	outcome := s.report("ls", err)
	s.metrics.observe("ls", outcome)
	if err != nil {
		http.Error(w, err.Error(), statusFor(outcome))
		return
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	json.NewEncoder(w).Encode(names)
}

func (s *server) handleCat(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r)
	f, err := s.fsys.Open(path)
	outcome := s.report("cat", err)
	if err != nil {
		s.metrics.observe("cat", outcome)
		http.Error(w, err.Error(), statusFor(outcome))
		return
	}
	defer f.Close()

	if _, ok := f.(fs.ReadDirFile); ok {
		s.metrics.observe("cat", "invalid")
		http.Error(w, tarfs.ErrDir.Error(), http.StatusBadRequest)
		return
	}
	s.metrics.observe("cat", outcome)
	io.Copy(w, f)
}
