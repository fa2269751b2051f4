package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/kakaku/internal/logger"
)

// LoggerKey is the context key for the request-scoped logger.
const LoggerKey = "logger"

// Logger stores a request-scoped logger in the context and logs one line per
// request once the handler chain finishes. The level follows the status.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestLogger := log.WithRequestID(GetRequestID(c))
		c.Set(LoggerKey, requestLogger)

		c.Next()

		status := c.Writer.Status()
		fields := logger.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		}
		if fields["path"] == "" {
			fields["path"] = c.Request.URL.Path
		}
		if c.Request.URL.RawQuery != "" {
			fields["query"] = c.Request.URL.RawQuery
		}
		var err error
		if last := c.Errors.Last(); last != nil {
			err = last.Err
			fields["errors"] = c.Errors.String()
		}

		switch {
		case status >= 500:
			requestLogger.Error("Request failed", err, fields)
		case status >= 400:
			requestLogger.Warn("Request rejected", fields)
		default:
			requestLogger.Debug("Request completed", fields)
		}
	}
}

// GetLogger returns the request-scoped logger, or nil outside the Logger
// middleware.
func GetLogger(c *gin.Context) *logger.Logger {
	if v, ok := c.Get(LoggerKey); ok {
		if l, ok := v.(*logger.Logger); ok {
			return l
		}
	}
	return nil
}
