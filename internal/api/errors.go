package api

import (
	"errors"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	pkgerrors "github.com/pkg/errors"

	logx "workflow/pkg/logx"
)

var (
	errChatDisabled   = echo.NewHTTPError(http.StatusServiceUnavailable, "chat relay not configured")
	errGoogleDisabled = echo.NewHTTPError(http.StatusServiceUnavailable, "google sign-in not configured")
)

// FieldError is one invalid input field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError carries request problems found outside struct tags.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	return e.Fields[0].Field + ": " + e.Fields[0].Error
}

// newHTTPErrorHandler maps handler errors to JSON responses. Unknown errors
// are logged and answered with a bare 500.
func newHTTPErrorHandler(log logx.Logger, trans ut.Translator) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var code int
		var message any

		var verrs validator.ValidationErrors
		var vErr *ValidationError
		var herr *echo.HTTPError
		cause := pkgerrors.Cause(err)

		switch {
		case errors.As(cause, &verrs):
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fieldPath(fe)] = fe.Translate(trans)
			}
			code = http.StatusBadRequest
			message = echo.Map{"error": "validation failed", "fields": fields}
		case errors.As(cause, &vErr):
			fields := make(map[string]string, len(vErr.Fields))
			for _, f := range vErr.Fields {
				fields[f.Field] = f.Error
			}
			code = http.StatusBadRequest
			message = echo.Map{"error": "validation failed", "fields": fields}
		case errors.As(cause, &herr):
			if herr.Internal != nil {
				if inner, ok := herr.Internal.(*echo.HTTPError); ok {
					herr = inner
				}
			}
			code = herr.Code
			message = herr.Message
			if code >= http.StatusInternalServerError {
				log.Warn("request failed", requestFields(c, logx.Int("status", code), logx.Err(err))...)
			}
		default:
			code = http.StatusInternalServerError
			message = http.StatusText(code)
			log.Error("request failed", requestFields(c, logx.Err(err))...)
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, message)
		}
		if err != nil {
			log.Warn("write error response", logx.Err(err))
		}
	}
}

func requestFields(c echo.Context, extra ...logx.Field) []logx.Field {
	fields := []logx.Field{
		logx.String("method", c.Request().Method),
		logx.String("path", c.Path()),
		logx.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
	}
	return append(fields, extra...)
}
