package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"
)

// HeaderCorrelationID carries the id that ties a request to the log
// lines and broker messages it causes.
const HeaderCorrelationID = "Correlation-ID"

const (
	ctxCorrelationID = "correlation_id"
	ctxLogger        = "logger"
)

// Correlation reads the Correlation-ID header, generating one when it
// is absent, echoes it on the response and stores a request logger
// carrying it.  Each request is logged once it completes.
func Correlation(base *logrus.Entry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderCorrelationID)
			if id == "" {
				id = "gen_" + shortuuid.New()
			}
			c.Response().Header().Set(HeaderCorrelationID, id)
			log := base.WithField("correlation_id", id)
			c.Set(ctxCorrelationID, id)
			c.Set(ctxLogger, log)

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			log.WithFields(logrus.Fields{
				"method": c.Request().Method,
				"path":   c.Path(),
				"status": c.Response().Status,
			}).Debug("request handled")
			return nil
		}
	}
}

// CorrelationID returns the id stored by Correlation, or "" outside it.
func CorrelationID(c echo.Context) string {
	id, _ := c.Get(ctxCorrelationID).(string)
	return id
}

// Logger returns the request logger stored by Correlation, or the
// standard logger outside it.
func Logger(c echo.Context) *logrus.Entry {
	if log, ok := c.Get(ctxLogger).(*logrus.Entry); ok {
		return log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
