package classroom

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow/internal/domain"
	"workflow/pkg/logx"
)

var fetchNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func newTestFetcher(f *fakeGoogle) *Fetcher {
	fe := NewFetcher(FetcherConfig{Endpoint: f.srv.URL, Timeout: 5 * time.Second, Location: time.UTC}, f.srv.Client().Transport, logx.Nop())
	fe.now = func() time.Time { return fetchNow }
	return fe
}

func due(y, m, d int) map[string]any { return map[string]any{"year": y, "month": m, "day": d} }

func seedTwoCourses(f *fakeGoogle) {
	f.courses = []map[string]any{
		{"id": "c1", "name": "Math"},
		{"id": "c2", "name": "History"},
	}
	f.courseWork["c1"] = []map[string]any{
		{"id": "w1", "title": "Algebra", "dueDate": due(2026, 10, 18), "alternateLink": "https://classroom.google.com/c/c1/a/w1", "maxPoints": 10},
		{"id": "w2", "title": "Geometry", "dueDate": due(2026, 10, 10)},
		{"id": "w3", "title": "Calculus", "dueDate": due(2026, 10, 1)},
		{"id": "w4", "title": "No Submission"},
		{"id": "w5", "title": "Ancient", "dueDate": due(2025, 9, 1)},
	}
	// Two pages of submissions for c1.
	f.submissions["c1"] = [][]map[string]any{
		{
			{"courseWorkId": "w1", "state": "CREATED"},
			{"courseWorkId": "w2", "state": "CREATED", "late": true},
		},
		{
			{"courseWorkId": "w3", "state": "TURNED_IN", "late": true, "updateTime": "2026-10-02T10:00:00Z"},
			{"courseWorkId": "w5", "state": "CREATED", "late": true},
		},
	}
	f.courseWork["c2"] = []map[string]any{
		{"id": "h1", "title": "Essay", "dueDate": due(2026, 10, 20)},
	}
	f.submissions["c2"] = [][]map[string]any{{{"courseWorkId": "h1", "state": "RETURNED"}}}
}

func byTitle(as []domain.Assignment) map[string]domain.Assignment {
	m := map[string]domain.Assignment{}
	for _, a := range as {
		m[a.Title] = a
	}
	return m
}

func TestFetchJoinsWorkAndSubmissions(t *testing.T) {
	f := newFakeGoogle(t)
	seedTwoCourses(f)

	got, err := newTestFetcher(f).Fetch(context.Background(), "access-1")
	require.NoError(t, err)
	m := byTitle(got)
	require.Len(t, m, 5, "Ancient is past the cutoff")

	alg := m["Algebra"]
	assert.Equal(t, domain.StatusPending, alg.Status)
	assert.Equal(t, "Math", alg.CourseName)
	assert.Equal(t, &domain.Date{Year: 2026, Month: 10, Day: 18}, alg.DueDate)
	assert.Equal(t, "https://classroom.google.com/c/c1/a/w1", alg.Link)
	require.NotNil(t, alg.MaxPoints)
	assert.Equal(t, 10.0, *alg.MaxPoints)
	assert.Equal(t, "google", alg.Source)

	assert.Equal(t, domain.StatusLate, m["Geometry"].Status)
	assert.Equal(t, domain.StatusSubmitted, m["Calculus"].Status, "turned in beats late")
	assert.Equal(t, "2026-10-02T10:00:00Z", m["Calculus"].CompletionTime)
	assert.Equal(t, domain.StatusPending, m["No Submission"].Status)
	assert.Nil(t, m["No Submission"].DueDate)
	assert.Equal(t, domain.StatusSubmitted, m["Essay"].Status)
	assert.Equal(t, "History", m["Essay"].CourseName)

	// One submissions listing per course, paginated to the end.
	assert.Equal(t, []string{
		"GET /v1/courses/c1/courseWork/-/studentSubmissions?",
		"GET /v1/courses/c1/courseWork/-/studentSubmissions?1",
		"GET /v1/courses/c2/courseWork/-/studentSubmissions?",
	}, f.callsMatching("studentSubmissions"))
}

func TestFetchSkipsFailingCourse(t *testing.T) {
	f := newFakeGoogle(t)
	seedTwoCourses(f)
	f.failWork["c1"] = http.StatusForbidden

	got, err := newTestFetcher(f).Fetch(context.Background(), "access-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Essay", got[0].Title)
}

func TestFetchSkipsCourseWhenSubmissionsFail(t *testing.T) {
	f := newFakeGoogle(t)
	seedTwoCourses(f)
	f.failSubs["c2"] = http.StatusInternalServerError

	got, err := newTestFetcher(f).Fetch(context.Background(), "access-1")
	require.NoError(t, err)
	m := byTitle(got)
	assert.NotContains(t, m, "Essay")
	assert.Contains(t, m, "Algebra")
}

func TestFetchCourseListFailure(t *testing.T) {
	f := newFakeGoogle(t)
	f.failCourses = http.StatusServiceUnavailable
	_, err := newTestFetcher(f).Fetch(context.Background(), "access-1")
	require.ErrorIs(t, err, ErrTransient)
}

func TestFetchRejectedToken(t *testing.T) {
	f := newFakeGoogle(t)
	_, err := newTestFetcher(f).Fetch(context.Background(), "stale")
	require.ErrorIs(t, err, ErrAuthExpired)
}

func TestSubmissionStatus(t *testing.T) {
	status, _ := submissionStatus(nil)
	assert.Equal(t, domain.StatusPending, status)
}
