package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerInvite/internal/app/model"
	"github.com/sifan077/PowerInvite/internal/app/service"
	"github.com/sifan077/PowerInvite/internal/http/middleware"
	"go.uber.org/zap"
)

const maxPageSize = 100

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
}

// APIHandler implements the link management API. Links are addressed by their token, the last
// path segment of the link.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		links := api.Group("/links")
		{
			links.Post("/", h.CreateLink)
			links.Get("/", h.ListLinks)
			links.Post("/permanent", h.EnsurePermanentLink)
			links.Delete("/revoked", h.DeleteRevokedLinks)
			links.Get("/:token", h.GetLink)
			links.Patch("/:token", h.UpdateLink)
			links.Post("/:token/revoke", h.RevokeLink)
			links.Delete("/:token", h.DeleteLink)
		}
		api.Get("/admins", h.ListAdmins)
	}
}

// CreateLinkRequest represents the request body for creating a link.
type CreateLinkRequest struct {
	ResourceID    string     `json:"resource_id"`
	Title         string     `json:"title,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	UsageLimit    *int       `json:"usage_limit,omitempty"`
	RequestNeeded bool       `json:"request_needed,omitempty"`
}

// UpdateLinkRequest represents the request body for editing a link. Absent fields stay unchanged;
// a zero usage limit or a zero expiry removes it.
type UpdateLinkRequest struct {
	Title         *string    `json:"title,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	UsageLimit    *int       `json:"usage_limit,omitempty"`
	RequestNeeded *bool      `json:"request_needed,omitempty"`
}

// RevokeLinkResponse is the answer to a revocation. Replacement is set for permanent links.
type RevokeLinkResponse struct {
	Link        *model.Link `json:"link"`
	Replacement *model.Link `json:"replacement,omitempty"`
}

// CreateLink handles POST /api/links
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	viewer := middleware.Viewer(c)
	if req.ResourceID == "" || viewer == "" {
		return badRequest(c, "resource_id and "+middleware.ViewerHeader+" are required")
	}

	link, err := h.linkService.CreateLink(c.UserContext(), service.CreateLinkInput{
		ResourceID:    req.ResourceID,
		AdminID:       viewer,
		Title:         req.Title,
		ExpiresAt:     req.ExpiresAt,
		UsageLimit:    req.UsageLimit,
		RequestNeeded: req.RequestNeeded,
	})
	if err != nil {
		return writeError(c, h.logger, "failed to create link", err)
	}
	return c.Status(fiber.StatusCreated).JSON(link)
}

// EnsurePermanentLink handles POST /api/links/permanent?resource_id=
func (h *APIHandler) EnsurePermanentLink(c *fiber.Ctx) error {
	resourceID := c.Query("resource_id")
	viewer := middleware.Viewer(c)
	if resourceID == "" || viewer == "" {
		return badRequest(c, "resource_id and "+middleware.ViewerHeader+" are required")
	}

	link, err := h.linkService.EnsurePermanentLink(c.UserContext(), resourceID, viewer)
	if err != nil {
		return writeError(c, h.logger, "failed to load permanent link", err)
	}
	return c.JSON(link)
}

// ListLinks handles GET /api/links?resource_id=&admin_id=&revoked=&after_key=&after_date=&limit=
// The after_date is the created_at of the last link of the previous page in RFC 3339.
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	resourceID := c.Query("resource_id")
	adminID := c.Query("admin_id", middleware.Viewer(c))
	if resourceID == "" || adminID == "" {
		return badRequest(c, "resource_id and admin_id are required")
	}

	input := service.ListLinksInput{
		ResourceID: resourceID,
		AdminID:    adminID,
		Revoked:    c.QueryBool("revoked"),
		Limit:      pageLimit(c),
	}
	if raw := c.Query("after_date"); raw != "" {
		after, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return badRequest(c, "after_date must be RFC 3339")
		}
		input.AfterDate = &after
		input.AfterKey = c.Query("after_key")
	}

	links, err := h.linkService.ListLinks(c.UserContext(), input)
	if err != nil {
		return writeError(c, h.logger, "failed to list links", err)
	}
	return c.JSON(fiber.Map{
		"links": links,
		"count": len(links),
	})
}

// ListAdmins handles GET /api/admins?resource_id=&after_id=&limit=
func (h *APIHandler) ListAdmins(c *fiber.Ctx) error {
	resourceID := c.Query("resource_id")
	if resourceID == "" {
		return badRequest(c, "resource_id is required")
	}

	admins, err := h.linkService.ListAdmins(c.UserContext(), service.ListAdminsInput{
		ResourceID: resourceID,
		ViewerID:   middleware.Viewer(c),
		AfterID:    c.Query("after_id"),
		Limit:      pageLimit(c),
	})
	if err != nil {
		return writeError(c, h.logger, "failed to list admins", err)
	}
	return c.JSON(fiber.Map{
		"admins": admins,
		"count":  len(admins),
	})
}

// GetLink handles GET /api/links/:token
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	link, err := h.linkService.GetLink(c.UserContext(), h.linkService.LinkID(c.Params("token")))
	if err != nil {
		return writeError(c, h.logger, "failed to get link", err)
	}
	return c.JSON(link)
}

// UpdateLink handles PATCH /api/links/:token
func (h *APIHandler) UpdateLink(c *fiber.Ctx) error {
	var req UpdateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	link, err := h.linkService.UpdateLink(c.UserContext(), h.linkService.LinkID(c.Params("token")), service.UpdateLinkInput{
		Title:         req.Title,
		ExpiresAt:     req.ExpiresAt,
		UsageLimit:    req.UsageLimit,
		RequestNeeded: req.RequestNeeded,
	})
	if err != nil {
		return writeError(c, h.logger, "failed to update link", err)
	}
	return c.JSON(link)
}

// RevokeLink handles POST /api/links/:token/revoke
func (h *APIHandler) RevokeLink(c *fiber.Ctx) error {
	out, err := h.linkService.RevokeLink(c.UserContext(), h.linkService.LinkID(c.Params("token")))
	if err != nil {
		return writeError(c, h.logger, "failed to revoke link", err)
	}
	return c.JSON(RevokeLinkResponse{Link: out.Link, Replacement: out.Replacement})
}

// DeleteLink handles DELETE /api/links/:token
func (h *APIHandler) DeleteLink(c *fiber.Ctx) error {
	if err := h.linkService.DeleteLink(c.UserContext(), h.linkService.LinkID(c.Params("token"))); err != nil {
		return writeError(c, h.logger, "failed to delete link", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteRevokedLinks handles DELETE /api/links/revoked?resource_id=&admin_id=
func (h *APIHandler) DeleteRevokedLinks(c *fiber.Ctx) error {
	resourceID := c.Query("resource_id")
	adminID := c.Query("admin_id", middleware.Viewer(c))
	if resourceID == "" || adminID == "" {
		return badRequest(c, "resource_id and admin_id are required")
	}

	n, err := h.linkService.DeleteRevokedLinks(c.UserContext(), resourceID, adminID)
	if err != nil {
		return writeError(c, h.logger, "failed to delete revoked links", err)
	}
	return c.JSON(fiber.Map{
		"deleted": n,
	})
}

func pageLimit(c *fiber.Ctx) int {
	if parsed := c.QueryInt("limit"); parsed > 0 && parsed <= maxPageSize {
		return parsed
	}
	return 0
}
