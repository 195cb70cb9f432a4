package classroom

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeGoogle serves the token endpoint and the Classroom API paths the
// fetcher uses. Page tokens are the string index of the next page.
type fakeGoogle struct {
	t   *testing.T
	srv *httptest.Server

	mu          sync.Mutex
	calls       []string
	tokenStatus int
	tokenBody   string
	accessToken string

	courses     []map[string]any
	courseWork  map[string][]map[string]any
	submissions map[string][][]map[string]any // pages
	failWork    map[string]int
	failSubs    map[string]int
	failCourses int
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	f := &fakeGoogle{
		t:           t,
		tokenStatus: http.StatusOK,
		accessToken: "access-1",
		courseWork:  map[string][]map[string]any{},
		submissions: map[string][][]map[string]any{},
		failWork:    map[string]int{},
		failSubs:    map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", f.token)
	mux.HandleFunc("GET /v1/courses", f.listCourses)
	mux.HandleFunc("GET /v1/courses/{course}/courseWork", f.listCourseWork)
	mux.HandleFunc("GET /v1/courses/{course}/courseWork/{work}/studentSubmissions", f.listSubmissions)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGoogle) record(r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path+"?"+r.URL.Query().Get("pageToken"))
	f.mu.Unlock()
}

func (f *fakeGoogle) callsMatching(sub string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if strings.Contains(c, sub) {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeGoogle) token(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	if err := r.ParseForm(); err != nil {
		f.t.Errorf("parse form: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	f.mu.Lock()
	status, body := f.tokenStatus, f.tokenBody
	f.mu.Unlock()
	if body == "" {
		resp := map[string]any{"access_token": f.accessToken, "token_type": "Bearer", "expires_in": 3599}
		if r.Form.Get("grant_type") == "authorization_code" {
			resp["refresh_token"] = "refresh-1"
		}
		b, _ := json.Marshal(resp)
		body = string(b)
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeGoogle) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer "+f.accessToken {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Request had invalid authentication credentials."}}`))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"failure"}}`, status)
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func (f *fakeGoogle) listCourses(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	if !f.authorized(w, r) {
		return
	}
	if f.failCourses != 0 {
		fail(w, f.failCourses)
		return
	}
	if r.URL.Query().Get("studentId") != "me" || r.URL.Query().Get("courseStates") != "ACTIVE" {
		f.t.Errorf("unexpected course query: %s", r.URL.RawQuery)
	}
	writeJSON(w, map[string]any{"courses": f.courses})
}

func (f *fakeGoogle) listCourseWork(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	if !f.authorized(w, r) {
		return
	}
	id := r.PathValue("course")
	if code := f.failWork[id]; code != 0 {
		fail(w, code)
		return
	}
	writeJSON(w, map[string]any{"courseWork": f.courseWork[id]})
}

func (f *fakeGoogle) listSubmissions(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	if !f.authorized(w, r) {
		return
	}
	id := r.PathValue("course")
	if r.PathValue("work") != "-" {
		f.t.Errorf("submissions listed per course work: %s", r.URL.Path)
	}
	if code := f.failSubs[id]; code != 0 {
		fail(w, code)
		return
	}
	pages := f.submissions[id]
	idx := 0
	if tok := r.URL.Query().Get("pageToken"); tok != "" {
		_ = json.Unmarshal([]byte(tok), &idx)
	}
	resp := map[string]any{}
	if idx < len(pages) {
		resp["studentSubmissions"] = pages[idx]
	}
	if idx+1 < len(pages) {
		resp["nextPageToken"] = itoa(idx + 1)
	}
	writeJSON(w, resp)
}
