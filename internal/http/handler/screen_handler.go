package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerInvite/internal/app/model"
	"github.com/sifan077/PowerInvite/internal/app/service"
	"github.com/sifan077/PowerInvite/internal/engine/diff"
	"github.com/sifan077/PowerInvite/internal/engine/screen"
	"github.com/sifan077/PowerInvite/internal/http/middleware"
	"github.com/sifan077/PowerInvite/internal/transport"
	"go.uber.org/zap"
)

// ScreenDeps groups dependencies required by the screen handlers.
type ScreenDeps struct {
	Logger       *zap.Logger
	LinkService  service.LinkService
	Metrics      screen.Metrics
	PageSize     int
	PrefetchRows int
	SessionTTL   time.Duration
}

// ScreenHandler exposes link list screens to remote renderers. A renderer opens a session, pulls
// pages as it scrolls and applies the edit script of every answer to its list.
type ScreenHandler struct {
	logger       *zap.Logger
	links        service.LinkService
	metrics      screen.Metrics
	pageSize     int
	prefetchRows int
	sessions     *sessions
}

// NewScreenHandler creates a screen handler with the provided dependencies.
func NewScreenHandler(deps ScreenDeps) *ScreenHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScreenHandler{
		logger:       logger,
		links:        deps.LinkService,
		metrics:      deps.Metrics,
		pageSize:     deps.PageSize,
		prefetchRows: deps.PrefetchRows,
		sessions:     newSessions(deps.SessionTTL),
	}
}

// Register wires screen routes onto the provided router.
func (h *ScreenHandler) Register(router fiber.Router) {
	screens := router.Group("/api/screens")
	{
		screens.Post("/", h.Open)
		screens.Get("/:id", h.Rows)
		screens.Delete("/:id", h.Close)
		screens.Get("/:id/should-fetch", h.ShouldFetch)
		screens.Post("/:id/next", h.FetchNext)
		screens.Post("/:id/admins/:admin", h.OpenAdmin)
		screens.Post("/:id/links", h.CreateLink)
		screens.Patch("/:id/links/:token", h.EditLink)
		screens.Post("/:id/links/:token/revoke", h.RevokeLink)
		screens.Delete("/:id/links/:token", h.DeleteLink)
		screens.Post("/:id/permanent/revoke", h.RevokePermanentLink)
		screens.Delete("/:id/revoked", h.DeleteRevokedLinks)
	}
}

// Sweep closes screens idle for longer than the session TTL.
func (h *ScreenHandler) Sweep() int {
	return h.sessions.sweep()
}

// Shutdown closes every open screen.
func (h *ScreenHandler) Shutdown() {
	h.sessions.closeAll()
}

// OpenScreenRequest describes the screen to open. AdminID selects another admin's links.
type OpenScreenRequest struct {
	ResourceID string `json:"resource_id"`
	AdminID    string `json:"admin_id,omitempty"`
	CanEdit    bool   `json:"can_edit"`
	IsPublic   bool   `json:"is_public"`
	Hints      bool   `json:"hints"`
}

// RowJSON is one row of the model, with the record it shows for item rows.
type RowJSON struct {
	Kind       string       `json:"kind"`
	Role       string       `json:"role,omitempty"`
	Collection string       `json:"collection,omitempty"`
	Index      int          `json:"index"`
	ID         string       `json:"id,omitempty"`
	Rev        uint64       `json:"rev,string"`
	Link       *model.Link  `json:"link,omitempty"`
	Admin      *model.Admin `json:"admin,omitempty"`
}

// OpJSON is one edit operation.
type OpJSON struct {
	Kind  string `json:"kind"`
	Index int    `json:"index"`
	Count int    `json:"count"`
}

// UpdateJSON is the answer to every screen request.
type UpdateJSON struct {
	SessionID string    `json:"session_id,omitempty"`
	Full      bool      `json:"full"`
	Skipped   bool      `json:"skipped,omitempty"`
	Refresh   bool      `json:"refresh,omitempty"`
	Ops       []OpJSON  `json:"ops"`
	Rows      []RowJSON `json:"rows"`
	Stage     string    `json:"stage"`
	PageError string    `json:"page_error,omitempty"`
}

// render encodes upd alone. Its rows and stage were taken together with its script, so a concurrent
// request on the same session cannot mix models.
func (h *ScreenHandler) render(upd screen.Update) UpdateJSON {
	out := UpdateJSON{
		Full:    upd.Full,
		Skipped: upd.Skipped,
		Refresh: upd.Script.Refresh,
		Ops:     encodeOps(upd.Script),
		Rows:    make([]RowJSON, 0, len(upd.Views)),
		Stage:   upd.Stage.String(),
	}
	if upd.PageErr != nil {
		out.PageError = upd.PageErr.Error()
	}
	for _, v := range upd.Views {
		out.Rows = append(out.Rows, RowJSON{
			Kind:       v.Kind.String(),
			Role:       string(v.Role),
			Collection: string(v.Collection),
			Index:      v.Index,
			ID:         v.ID,
			Rev:        v.Rev,
			Link:       v.Link,
			Admin:      v.Admin,
		})
	}
	return out
}

func encodeOps(sc diff.Script) []OpJSON {
	ops := make([]OpJSON, len(sc.Ops))
	for i, op := range sc.Ops {
		ops[i] = OpJSON{Kind: op.Kind.String(), Index: op.Index, Count: op.Count}
	}
	return ops
}

func (h *ScreenHandler) options() []screen.Option {
	opts := []screen.Option{screen.WithLogger(h.logger)}
	if h.metrics != nil {
		opts = append(opts, screen.WithMetrics(h.metrics))
	}
	return opts
}

// Open handles POST /api/screens
func (h *ScreenHandler) Open(c *fiber.Ctx) error {
	var req OpenScreenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	viewer := middleware.Viewer(c)
	if req.ResourceID == "" || viewer == "" {
		return badRequest(c, "resource_id and "+middleware.ViewerHeader+" are required")
	}
	if req.AdminID == viewer {
		req.AdminID = ""
	}

	opts := screen.Options{
		ResourceID:   req.ResourceID,
		AdminID:      req.AdminID,
		CanEdit:      req.CanEdit,
		IsPublic:     req.IsPublic,
		Hints:        req.Hints,
		PageSize:     h.pageSize,
		PrefetchRows: h.prefetchRows,
	}
	if opts.AdminID == "" && opts.CanEdit {
		permanent, err := h.links.EnsurePermanentLink(c.UserContext(), req.ResourceID, viewer)
		if err != nil {
			return writeError(c, h.logger, "failed to load permanent link", err)
		}
		opts.PermanentLink = permanent
	}

	sc := screen.New(transport.NewLocal(h.links, viewer), opts, h.options()...)
	id := h.sessions.add(sc, viewer)

	out := h.render(sc.Snapshot())
	out.SessionID = id
	return c.Status(fiber.StatusCreated).JSON(out)
}

// OpenAdmin handles POST /api/screens/:id/admins/:admin and opens the links of another admin in a
// session of its own.
func (h *ScreenHandler) OpenAdmin(c *fiber.Ctx) error {
	sess, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	child, err := sess.screen.ForAdmin(c.Params("admin"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	id := h.sessions.add(child, sess.viewer)

	out := h.render(child.Snapshot())
	out.SessionID = id
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Rows handles GET /api/screens/:id and returns the whole model for a full population.
func (h *ScreenHandler) Rows(c *fiber.Ctx) error {
	sess, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	return c.JSON(h.render(sess.screen.Snapshot()))
}

// Close handles DELETE /api/screens/:id
func (h *ScreenHandler) Close(c *fiber.Ctx) error {
	if !h.sessions.remove(c.Params("id"), middleware.Viewer(c)) {
		return sessionNotFound(c)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ShouldFetch handles GET /api/screens/:id/should-fetch?last_visible=
func (h *ScreenHandler) ShouldFetch(c *fiber.Ctx) error {
	sess, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	last, convErr := strconv.Atoi(c.Query("last_visible"))
	if convErr != nil {
		return badRequest(c, "last_visible must be an integer")
	}
	return c.JSON(fiber.Map{
		"fetch": sess.screen.ShouldFetch(last),
	})
}

// FetchNext handles POST /api/screens/:id/next
func (h *ScreenHandler) FetchNext(c *fiber.Ctx) error {
	sess, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	upd, err := sess.screen.FetchNext(c.UserContext())
	if err != nil {
		return writeError(c, h.logger, "failed to fetch page", err)
	}
	return c.JSON(h.render(upd))
}

// LinkRequest carries the editable link attributes of create and edit requests.
type LinkRequest struct {
	Title         *string    `json:"title,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	UsageLimit    *int       `json:"usage_limit,omitempty"`
	RequestNeeded *bool      `json:"request_needed,omitempty"`
}

func (r LinkRequest) input() screen.LinkInput {
	return screen.LinkInput{
		Title:         r.Title,
		ExpiresAt:     r.ExpiresAt,
		UsageLimit:    r.UsageLimit,
		RequestNeeded: r.RequestNeeded,
	}
}

// CreateLink handles POST /api/screens/:id/links
func (h *ScreenHandler) CreateLink(c *fiber.Ctx) error {
	var req LinkRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.mutate(c, func(sc *screen.Screen) (screen.Update, error) {
		return sc.CreateLink(c.UserContext(), req.input())
	})
}

// EditLink handles PATCH /api/screens/:id/links/:token
func (h *ScreenHandler) EditLink(c *fiber.Ctx) error {
	var req LinkRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	id := h.links.LinkID(c.Params("token"))
	return h.mutate(c, func(sc *screen.Screen) (screen.Update, error) {
		return sc.EditLink(c.UserContext(), id, req.input())
	})
}

// RevokeLink handles POST /api/screens/:id/links/:token/revoke
func (h *ScreenHandler) RevokeLink(c *fiber.Ctx) error {
	id := h.links.LinkID(c.Params("token"))
	return h.mutate(c, func(sc *screen.Screen) (screen.Update, error) {
		return sc.RevokeLink(c.UserContext(), id)
	})
}

// RevokePermanentLink handles POST /api/screens/:id/permanent/revoke
func (h *ScreenHandler) RevokePermanentLink(c *fiber.Ctx) error {
	return h.mutate(c, func(sc *screen.Screen) (screen.Update, error) {
		return sc.RevokePermanentLink(c.UserContext())
	})
}

// DeleteLink handles DELETE /api/screens/:id/links/:token
func (h *ScreenHandler) DeleteLink(c *fiber.Ctx) error {
	id := h.links.LinkID(c.Params("token"))
	return h.mutate(c, func(sc *screen.Screen) (screen.Update, error) {
		return sc.DeleteLink(c.UserContext(), id)
	})
}

// DeleteRevokedLinks handles DELETE /api/screens/:id/revoked
func (h *ScreenHandler) DeleteRevokedLinks(c *fiber.Ctx) error {
	return h.mutate(c, func(sc *screen.Screen) (screen.Update, error) {
		return sc.DeleteRevokedLinks(c.UserContext())
	})
}

func (h *ScreenHandler) mutate(c *fiber.Ctx, fn func(sc *screen.Screen) (screen.Update, error)) error {
	sess, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	upd, err := fn(sess.screen)
	if err != nil {
		var merr *screen.MutationError
		if errors.As(err, &merr) {
			return writeError(c, h.logger, "failed to "+string(merr.Op)+" link", err)
		}
		return writeError(c, h.logger, "link mutation failed", err)
	}
	return c.JSON(h.render(upd))
}

// session resolves the :id param for the requesting viewer.
func (h *ScreenHandler) session(c *fiber.Ctx) (*session, bool) {
	return h.sessions.get(c.Params("id"), middleware.Viewer(c))
}

func sessionNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "screen session not found",
	})
}
