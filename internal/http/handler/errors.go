package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerInvite/internal/app/repository"
	"github.com/sifan077/PowerInvite/internal/app/service"
	"github.com/sifan077/PowerInvite/internal/engine/screen"
	"github.com/sifan077/PowerInvite/internal/transport"
	"go.uber.org/zap"
)

var statusByError = []struct {
	err    error
	status int
}{
	{repository.ErrLinkNotFound, fiber.StatusNotFound},
	{screen.ErrLinkNotFound, fiber.StatusNotFound},
	{service.ErrInvalidInput, fiber.StatusBadRequest},
	{transport.ErrNoViewer, fiber.StatusBadRequest},
	{service.ErrLinkRevoked, fiber.StatusConflict},
	{service.ErrLinkNotRevoked, fiber.StatusConflict},
	{service.ErrPermanentLink, fiber.StatusConflict},
	{repository.ErrLinkChanged, fiber.StatusConflict},
	{screen.ErrNoPermanentLink, fiber.StatusConflict},
	{screen.ErrPublicLink, fiber.StatusForbidden},
	{screen.ErrReadOnly, fiber.StatusForbidden},
	{service.ErrLinkUnusable, fiber.StatusGone},
	{screen.ErrClosed, fiber.StatusGone},
	{screen.ErrInconsistentResponse, fiber.StatusBadGateway},
}

func statusFor(err error) int {
	for _, e := range statusByError {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return fiber.StatusInternalServerError
}

// writeError maps err onto a JSON error response. Unexpected errors are logged and hidden.
func writeError(c *fiber.Ctx, logger *zap.Logger, msg string, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		logger.Error(msg, zap.Error(err))
		return c.Status(status).JSON(fiber.Map{
			"error": msg,
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}
