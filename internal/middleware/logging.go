package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type loggingMiddleware struct {
	logger *logrus.Logger
}

func newLoggingMiddleware(logger *logrus.Logger) *loggingMiddleware {
	return &loggingMiddleware{
		logger: logger,
	}
}

func (m *loggingMiddleware) handle(c *fiber.Ctx) error {
	start := time.Now()

	requestID, ok := c.Locals(RequestIDKey).(string)
	if !ok || requestID == "" {
		requestID = "unknown"
	}

	err := c.Next()

	// image polling and websocket upgrades would drown the log
	if isQuietPath(c.Path()) && err == nil {
		return nil
	}

	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else {
			status = fiber.StatusInternalServerError
		}
	}

	fields := logrus.Fields{
		"request_id":    requestID,
		"method":        c.Method(),
		"path":          c.Path(),
		"status":        status,
		"latency_ms":    time.Since(start).Milliseconds(),
		"ip":            c.IP(),
		"user_agent":    c.Get(fiber.HeaderUserAgent),
		"response_size": len(c.Response().Body()),
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	entry := m.logger.WithFields(fields)
	switch {
	case status >= 500:
		entry.Error("Server error")
	case status >= 400:
		entry.Warn("Client error")
	default:
		entry.Info("Success")
	}

	return err
}

func isQuietPath(path string) bool {
	return strings.HasSuffix(path, ".png") ||
		strings.HasSuffix(path, ".jpg") ||
		strings.HasSuffix(path, "/ws")
}
