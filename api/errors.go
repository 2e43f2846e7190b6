package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// ErrorHandler renders every error that reaches echo, including unknown
// routes and recovered panics, as an error envelope.
func ErrorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := http.StatusText(status)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = fmt.Sprint(he.Message)
			}
			if he.Internal != nil {
				logger.WithError(he.Internal).WithField("status", status).Debug(message)
			}
		}
		if status >= http.StatusInternalServerError {
			logger.WithError(err).WithField("route", c.Path()).Error("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = respondError(c, status, message)
		}
		if err != nil {
			logger.WithError(err).Warn("write error response")
		}
	}
}
