// Package pprof exposes net/http/pprof under a configurable prefix so it can
// be mounted on the API router instead of a separate listener.
package pprof

import (
	"net/http"
	hpprof "net/http/pprof"
	"runtime"
	"strings"
)

const DefaultPrefix = "/debug/pprof/"

// Rates tunes runtime profiling. Zero keeps the Go default.
type Rates struct {
	MutexProfileFraction int
	BlockProfileRate     int
}

func (r Rates) Apply() {
	if r.MutexProfileFraction > 0 {
		runtime.SetMutexProfileFraction(r.MutexProfileFraction)
	}
	if r.BlockProfileRate > 0 {
		runtime.SetBlockProfileRate(r.BlockProfileRate)
	}
}

// Handler serves the profile index and the named profiles below prefix.
func Handler(prefix string) http.Handler {
	prefix = normalizePrefix(prefix)
	base := strings.TrimSuffix(prefix, "/")

	mux := http.NewServeMux()
	mux.HandleFunc(prefix, indexAt(prefix))
	mux.HandleFunc(base+"/cmdline", hpprof.Cmdline)
	mux.HandleFunc(base+"/profile", hpprof.Profile)
	mux.HandleFunc(base+"/symbol", hpprof.Symbol)
	mux.HandleFunc(base+"/trace", hpprof.Trace)
	mux.HandleFunc(base, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, prefix, http.StatusMovedPermanently)
	})
	return mux
}

func normalizePrefix(prefix string) string {
	p := strings.TrimSpace(prefix)
	if p == "" {
		return DefaultPrefix
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// indexAt lets hpprof.Index resolve profile names under a custom prefix.
// hpprof.Index only recognises "/debug/pprof/", so the path is rewritten.
func indexAt(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, prefix)
		r2 := r.Clone(r.Context())
		r2.URL.Path = DefaultPrefix + name
		hpprof.Index(w, r2)
	}
}
