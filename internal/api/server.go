package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"workflow/internal/chat"
	"workflow/internal/classroom"
	"workflow/internal/notifier"
	"workflow/internal/observability/pprof"
	"workflow/internal/registry"
	"workflow/internal/task/scheduler"
	logx "workflow/pkg/logx"
)

const defaultBodyLimit = "1M"

// KeyProvider exposes the VAPID public key.
type KeyProvider interface {
	PublicKey() string
}

// CodeExchanger trades a Google authorization code for tokens.
type CodeExchanger interface {
	Configured() bool
	Exchange(ctx context.Context, code string) (classroom.Grant, error)
}

// ChatRelay forwards chat completions upstream.
type ChatRelay interface {
	Configured() bool
	Forward(ctx context.Context, body []byte) (chat.Response, error)
}

// Health is the /healthz body.
type Health struct {
	Status          string                   `json:"status"`
	Recipients      int                      `json:"recipients"`
	PersistFailures uint64                   `json:"persistFailures"`
	Schedules       []scheduler.ScheduleInfo `json:"schedules"`
	Notifier        *notifier.Stats          `json:"notifier,omitempty"`
}

type Options struct {
	Addr         string
	StaticDir    string
	Pprof        bool
	BodyLimit    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Registry *registry.Registry
	Keys     KeyProvider
	Google   CodeExchanger
	Chat     ChatRelay

	// Schedules and Stats feed /healthz; both are optional.
	Schedules func() []scheduler.ScheduleInfo
	Stats     func() notifier.Stats

	Logger logx.Logger
}

type Server interface {
	http.Handler
	// Start blocks until the listener fails or Stop is called.
	Start() error
	Stop(ctx context.Context) error
}

type server struct {
	opts     Options
	app      *echo.Echo
	log      logx.Logger
	validate *validator.Validate
	trans    ut.Translator
}

var _ Server = (*server)(nil)

func NewServer(opts Options) Server {
	if opts.Logger.IsZero() {
		opts.Logger = logx.Nop()
	}
	if opts.BodyLimit == "" {
		opts.BodyLimit = defaultBodyLimit
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
		log:  opts.Logger,
	}
	s.validate, s.trans = newValidator()
	s.setup()
	return s
}

func (s *server) setup() {
	e := s.app
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = s.opts.ReadTimeout
	e.Server.WriteTimeout = s.opts.WriteTimeout
	e.HTTPErrorHandler = newHTTPErrorHandler(s.log, s.trans)

	e.Pre(middleware.RemoveTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		// the pprof index lives at /debug/pprof/
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, "/debug/pprof")
		},
	}))
	e.Use(requestID())
	e.Use(requestLogger(s.log))
	e.Use(recoverer(s.log))
	e.Use(middleware.BodyLimit(s.opts.BodyLimit))

	e.GET("/healthz", s.healthz)

	g := e.Group("/api")
	g.GET("/vapidPublicKey", s.vapidPublicKey)
	g.POST("/subscribe", s.subscribe)
	g.POST("/unsubscribe", s.unsubscribe)
	g.POST("/auth/google/callback", s.googleCallback)
	g.POST("/chat", s.chat)

	if s.opts.Pprof {
		h := echo.WrapHandler(pprof.Handler(pprof.DefaultPrefix))
		e.Any("/debug/pprof", h)
		e.Any("/debug/pprof/*", h)
	}
	if s.opts.StaticDir != "" {
		e.Static("/", s.opts.StaticDir)
	}
}

func (s *server) Start() error {
	s.log.Info("http listening", logx.String("addr", s.opts.Addr))
	err := s.app.Start(s.opts.Addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}
