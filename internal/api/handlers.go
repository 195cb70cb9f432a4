package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	pkgerrors "github.com/pkg/errors"

	"workflow/internal/classroom"
	"workflow/internal/domain"
	"workflow/internal/registry"
	"workflow/internal/task/scheduler"
	logx "workflow/pkg/logx"
)

type SubscribeRequest struct {
	ClientID     string               `json:"clientId" validate:"notblank,max=512"`
	Subscription *domain.Subscription `json:"subscription" validate:"required"`
	Assignments  *[]domain.Assignment `json:"assignments,omitempty"`
	RefreshToken string               `json:"refreshToken,omitempty"`
	UserID       string               `json:"userId,omitempty" validate:"max=256"`
}

type UnsubscribeRequest struct {
	ClientID string `json:"clientId" validate:"notblank"`
}

type CallbackRequest struct {
	Code string `json:"code" validate:"notblank"`
}

// bindValid binds the JSON body into dst and runs struct validation.
func (s *server) bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return pkgerrors.Wrap(err, "binding request")
	}
	return s.validate.Struct(dst)
}

func (s *server) vapidPublicKey(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"publicKey": s.opts.Keys.PublicKey()})
}

func (s *server) subscribe(c echo.Context) error {
	var req SubscribeRequest
	if err := s.bindValid(c, &req); err != nil {
		return err
	}
	for i, a := range derefAssignments(req.Assignments) {
		if strings.TrimSpace(a.Title) == "" {
			return &ValidationError{Fields: []FieldError{{Field: "assignments." + strconv.Itoa(i) + ".title", Error: "title cannot be blank"}}}
		}
	}

	res, err := s.opts.Registry.Upsert(c.Request().Context(), strings.TrimSpace(req.ClientID), registry.Upsert{
		Subscription: req.Subscription,
		Assignments:  req.Assignments,
		RefreshToken: req.RefreshToken,
		UserID:       req.UserID,
	})
	if err != nil {
		return pkgerrors.Wrap(err, "upserting registration")
	}
	s.log.Debug("subscribed",
		logx.String("client_id", res.Registration.ClientID),
		logx.Bool("created", res.Created),
		logx.Bool("owner_switched", res.OwnerSwitched),
		logx.Int("assignments", len(res.Registration.Assignments)),
	)
	return c.JSON(http.StatusCreated, echo.Map{"status": "subscribed"})
}

func (s *server) unsubscribe(c echo.Context) error {
	var req UnsubscribeRequest
	if err := s.bindValid(c, &req); err != nil {
		return err
	}
	s.opts.Registry.Delete(c.Request().Context(), strings.TrimSpace(req.ClientID), "unsubscribed")
	return c.NoContent(http.StatusNoContent)
}

func (s *server) googleCallback(c echo.Context) error {
	var req CallbackRequest
	if err := s.bindValid(c, &req); err != nil {
		return err
	}
	if s.opts.Google == nil || !s.opts.Google.Configured() {
		return errGoogleDisabled
	}
	grant, err := s.opts.Google.Exchange(c.Request().Context(), req.Code)
	if err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, classroom.ErrAuthExpired) {
			// rejected or already used code
			code = http.StatusBadRequest
		}
		return echo.NewHTTPError(code, "authorization code exchange failed").SetInternal(err)
	}
	return c.JSON(http.StatusOK, grant)
}

func (s *server) chat(c echo.Context) error {
	if s.opts.Chat == nil || !s.opts.Chat.Configured() {
		return errChatDisabled
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return pkgerrors.Wrap(err, "reading chat body")
	}
	resp, err := s.opts.Chat.Forward(c.Request().Context(), body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "chat upstream unavailable").SetInternal(err)
	}
	return c.Blob(resp.Status, resp.ContentType, resp.Body)
}

func (s *server) healthz(c echo.Context) error {
	h := Health{Status: "ok"}
	if s.opts.Registry != nil {
		h.Recipients = s.opts.Registry.Len()
		h.PersistFailures = s.opts.Registry.PersistFailures()
	}
	if s.opts.Schedules != nil {
		h.Schedules = s.opts.Schedules()
	}
	if h.Schedules == nil {
		h.Schedules = []scheduler.ScheduleInfo{}
	}
	if s.opts.Stats != nil {
		st := s.opts.Stats()
		h.Notifier = &st
	}
	return c.JSON(http.StatusOK, h)
}

func derefAssignments(p *[]domain.Assignment) []domain.Assignment {
	if p == nil {
		return nil
	}
	return *p
}
