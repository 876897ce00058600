package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	// ViewerHeader names the admin on whose behalf a request is made.
	ViewerHeader = "X-Admin-ID"

	requestIDKey    = "request_id"
	maxRequestIDLen = 128
)

// RequestID tags each request with an id, reusing a well-formed incoming one.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(RequestIDHeader)
		if rid == "" || len(rid) > maxRequestIDLen {
			rid = uuid.New().String()
		}
		c.Set(RequestIDHeader, rid)
		c.Locals(requestIDKey, rid)
		return c.Next()
	}
}

// Viewer returns the admin id the request was made for, empty when none was sent.
func Viewer(c *fiber.Ctx) string {
	return c.Get(ViewerHeader)
}
