package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerInvite/internal/app/model"
	"github.com/sifan077/PowerInvite/internal/app/service"
	httpUtil "github.com/sifan077/PowerInvite/internal/http/util"
	"github.com/sifan077/PowerInvite/internal/http/view"
	"go.uber.org/zap"
)

const defaultConfirmTTL = 5 * time.Minute

// JoinDeps groups dependencies required by join handlers.
type JoinDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	Secret      []byte
	ConfirmTTL  time.Duration
}

// JoinHandler implements the two step join flow: a landing page that shows what the link offers,
// and an accept endpoint guarded by a short lived token issued with the page.
type JoinHandler struct {
	logger *zap.Logger
	links  service.LinkService
	tokens *httpUtil.TokenSigner
}

// NewJoinHandler creates a join handler with the provided dependencies.
func NewJoinHandler(deps JoinDeps) *JoinHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := deps.ConfirmTTL
	if ttl <= 0 {
		ttl = defaultConfirmTTL
	}
	return &JoinHandler{
		logger: logger,
		links:  deps.LinkService,
		tokens: httpUtil.NewTokenSigner(deps.Secret, ttl),
	}
}

// Register wires join routes onto the provided router.
func (h *JoinHandler) Register(router fiber.Router) {
	router.Get("/join/:token", h.Landing)
	router.Post("/join/:token/accept/:confirm", h.Accept)
}

// Landing handles GET /join/:token
func (h *JoinHandler) Landing(c *fiber.Ctx) error {
	token := c.Params("token")
	link, err := h.links.GetLink(c.UserContext(), h.links.LinkID(token))
	if err != nil {
		if statusFor(err) == fiber.StatusNotFound {
			return h.page(c, fiber.StatusNotFound, view.JoinPageData{Message: "This invite link does not exist."})
		}
		return writeError(c, h.logger, "failed to load link", err)
	}
	if msg := unusableReason(link, time.Now()); msg != "" {
		return h.page(c, fiber.StatusGone, view.JoinPageData{LinkTitle: link.Title, Message: msg})
	}

	confirm, err := h.tokens.Issue(token)
	if err != nil {
		h.logger.Error("failed to issue join token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to prepare join",
		})
	}

	spots := -1
	if link.UsageLimit != nil && *link.UsageLimit > 0 {
		spots = *link.UsageLimit - link.UsageCount
	}
	return h.page(c, fiber.StatusOK, view.JoinPageData{
		LinkTitle:     link.Title,
		ResourceID:    link.ResourceID,
		AcceptURL:     "/join/" + token + "/accept/" + confirm,
		RequestNeeded: link.RequestNeeded,
		ExpiresAt:     link.ExpiresAt,
		SpotsLeft:     spots,
	})
}

// Accept handles POST /join/:token/accept/:confirm
func (h *JoinHandler) Accept(c *fiber.Ctx) error {
	token := c.Params("token")
	if err := h.tokens.Validate(token, c.Params("confirm")); err != nil {
		if errors.Is(err, httpUtil.ErrInvalidToken) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		h.logger.Error("failed to validate join token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to validate token",
		})
	}

	link, err := h.links.JoinLink(c.UserContext(), token)
	if err != nil {
		return writeError(c, h.logger, "failed to join", err)
	}

	status := "joined"
	if link.RequestNeeded {
		status = "requested"
	}
	h.logger.Debug("link used", zap.String("link_id", link.ID), zap.String("status", status))
	return c.JSON(fiber.Map{
		"status":      status,
		"resource_id": link.ResourceID,
	})
}

func (h *JoinHandler) page(c *fiber.Ctx, status int, data view.JoinPageData) error {
	html, err := view.RenderJoinPage(data)
	if err != nil {
		h.logger.Error("failed to render join page", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to render page",
		})
	}
	return c.Status(status).
		Type("html", "utf-8").
		SendString(html)
}

func unusableReason(link *model.Link, now time.Time) string {
	switch {
	case link.IsRevoked:
		return "This invite link was revoked."
	case link.ExpiredAt(now):
		return "This invite link has expired."
	case link.LimitReached():
		return "This invite link has reached its usage limit."
	default:
		return ""
	}
}
