package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-Id"

// RequestLogger tags each request with an id and logs its outcome.
func RequestLogger(log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		id := c.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals("requestId", id)
		c.Set(requestIDHeader, id)

		err := c.Next()
		if err != nil {
			// let the app error handler write the response before reading the status
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		entry := log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"user_id":    GetUserID(c),
		})
		switch {
		case status >= fiber.StatusInternalServerError:
			entry.Error("Request failed")
		case status >= fiber.StatusBadRequest:
			entry.Info("Request rejected")
		default:
			entry.Debug("Request served")
		}
		return nil
	}
}

// GetRequestID returns the id RequestLogger assigned
func GetRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestId").(string); ok {
		return id
	}
	return ""
}
