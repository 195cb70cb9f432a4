package pprof

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, DefaultPrefix, normalizePrefix(""))
	assert.Equal(t, "/ops/pprof/", normalizePrefix("ops/pprof"))
	assert.Equal(t, "/ops/pprof/", normalizePrefix("/ops/pprof/"))
}

func TestHandlerServesIndexAndProfiles(t *testing.T) {
	h := Handler("/ops/pprof")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ops/pprof/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goroutine")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ops/pprof/goroutine?debug=1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goroutine profile")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ops/pprof", nil))
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
}
