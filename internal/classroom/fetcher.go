package classroom

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	classroom "google.golang.org/api/classroom/v1"
	"google.golang.org/api/option"

	"workflow/internal/domain"
	"workflow/pkg/logx"
)

// DefaultOverdueCutoff drops course work that has been past due for this long.
const DefaultOverdueCutoff = 365 * 24 * time.Hour

const (
	sourceGoogle = "google"
	pageSize     = 100
)

type FetcherConfig struct {
	// Endpoint overrides the Classroom API base URL.
	Endpoint string
	// Timeout bounds each HTTP request.
	Timeout       time.Duration
	OverdueCutoff time.Duration
	// Location is used to turn due dates into instants for the cutoff.
	Location *time.Location
}

// Fetcher lists a student's assignments across their active courses.
type Fetcher struct {
	cfg       FetcherConfig
	transport http.RoundTripper
	log       logx.Logger
	now       func() time.Time
}

// NewFetcher builds a Fetcher. transport carries retries and rate limiting;
// nil uses http.DefaultTransport.
func NewFetcher(cfg FetcherConfig, transport http.RoundTripper, log logx.Logger) *Fetcher {
	if cfg.OverdueCutoff <= 0 {
		cfg.OverdueCutoff = DefaultOverdueCutoff
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Endpoint != "" && !strings.HasSuffix(cfg.Endpoint, "/") {
		cfg.Endpoint += "/"
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Fetcher{cfg: cfg, transport: transport, log: log, now: time.Now}
}

func (f *Fetcher) service(ctx context.Context, accessToken string) (*classroom.Service, error) {
	hc := &http.Client{
		Timeout: f.cfg.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   f.transport,
		},
	}
	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if f.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(f.cfg.Endpoint))
	}
	return classroom.NewService(ctx, opts...)
}

// Fetch lists active courses, then for each course (one at a time) its
// course work and all of the student's submissions. A course whose calls fail
// is skipped; only a failing course listing fails the whole fetch.
func (f *Fetcher) Fetch(ctx context.Context, accessToken string) ([]domain.Assignment, error) {
	svc, err := f.service(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("classroom client: %w", err)
	}

	var courses []*classroom.Course
	err = svc.Courses.List().
		StudentId("me").
		CourseStates("ACTIVE").
		PageSize(pageSize).
		Pages(ctx, func(resp *classroom.ListCoursesResponse) error {
			courses = append(courses, resp.Courses...)
			return nil
		})
	if err != nil {
		return nil, classifyAPIError("list courses", err)
	}

	now := f.now()
	out := make([]domain.Assignment, 0, len(courses)*8)
	for _, c := range courses {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		items, err := f.courseAssignments(ctx, svc, c, now)
		if err != nil {
			f.log.Warn("skipping course", logx.String("course_id", c.Id), logx.Err(err))
			continue
		}
		out = append(out, items...)
	}
	return out, nil
}

func (f *Fetcher) courseAssignments(ctx context.Context, svc *classroom.Service, c *classroom.Course, now time.Time) ([]domain.Assignment, error) {
	var works []*classroom.CourseWork
	err := svc.Courses.CourseWork.List(c.Id).
		PageSize(pageSize).
		Pages(ctx, func(resp *classroom.ListCourseWorkResponse) error {
			works = append(works, resp.CourseWork...)
			return nil
		})
	if err != nil {
		return nil, classifyAPIError("list course work", err)
	}
	if len(works) == 0 {
		return nil, nil
	}

	// "-" lists submissions for every course work item in one paginated call.
	subs := map[string]*classroom.StudentSubmission{}
	err = svc.Courses.CourseWork.StudentSubmissions.List(c.Id, "-").
		PageSize(pageSize).
		Pages(ctx, func(resp *classroom.ListStudentSubmissionsResponse) error {
			for _, s := range resp.StudentSubmissions {
				if _, seen := subs[s.CourseWorkId]; !seen {
					subs[s.CourseWorkId] = s
				}
			}
			return nil
		})
	if err != nil {
		// Without submissions every item would look pending, and turned-in
		// work would get reminders. Drop the course for this cycle instead.
		return nil, classifyAPIError("list submissions", err)
	}

	out := make([]domain.Assignment, 0, len(works))
	for _, w := range works {
		a := toAssignment(c, w, subs[w.Id])
		if f.pastCutoff(a, now) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *Fetcher) pastCutoff(a domain.Assignment, now time.Time) bool {
	if !a.DueDate.Valid() {
		return false
	}
	return now.Sub(a.DueDate.Midnight(f.cfg.Location)) >= f.cfg.OverdueCutoff
}

func toAssignment(c *classroom.Course, w *classroom.CourseWork, s *classroom.StudentSubmission) domain.Assignment {
	status, completed := submissionStatus(s)
	a := domain.Assignment{
		Title:          w.Title,
		CourseName:     c.Name,
		Status:         status,
		Link:           w.AlternateLink,
		Description:    w.Description,
		CompletionTime: completed,
		Source:         sourceGoogle,
	}
	if w.DueDate != nil {
		a.DueDate = &domain.Date{Year: int(w.DueDate.Year), Month: int(w.DueDate.Month), Day: int(w.DueDate.Day)}
	}
	if w.DueTime != nil {
		a.DueTime = &domain.TimeOfDay{Hours: int(w.DueTime.Hours), Minutes: int(w.DueTime.Minutes)}
	}
	if w.MaxPoints > 0 {
		p := w.MaxPoints
		a.MaxPoints = &p
	}
	return a
}

// submissionStatus maps a submission onto an assignment status. No
// submission at all means the work is still pending.
func submissionStatus(s *classroom.StudentSubmission) (domain.Status, string) {
	if s == nil {
		return domain.StatusPending, ""
	}
	switch s.State {
	case "TURNED_IN", "RETURNED":
		return domain.StatusSubmitted, s.UpdateTime
	}
	if s.Late {
		return domain.StatusLate, ""
	}
	return domain.StatusPending, ""
}
