package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	logx "workflow/pkg/logx"
)

func requestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	})
}

// requestLogger writes one line per request. Health probes log at trace.
func requestLogger(log logx.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURIPath:   true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logx.Field{
				logx.String("method", v.Method),
				logx.String("path", v.URIPath),
				logx.Int("status", v.Status),
				logx.Duration("latency", v.Latency.Round(time.Microsecond)),
				logx.String("request_id", v.RequestID),
				logx.String("remote_ip", v.RemoteIP),
			}
			switch {
			case v.URIPath == "/healthz":
				log.Trace("request", fields...)
			case v.Status >= 500:
				log.Warn("request", append(fields, logx.Err(v.Error))...)
			default:
				log.Debug("request", fields...)
			}
			return nil
		},
	})
}

func recoverer(log logx.Logger) echo.MiddlewareFunc {
	return middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error("handler panic", requestFields(c, logx.Err(err), logx.Stack(string(stack)))...)
			return err
		},
	})
}
