// Package transport adapts the link service to the request/response channel a screen talks to.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/sifan077/PowerInvite/internal/app/model"
	"github.com/sifan077/PowerInvite/internal/app/service"
	"github.com/sifan077/PowerInvite/internal/engine/screen"
)

// ErrNoViewer is returned when a request for the viewer's own links has no viewer to resolve to.
var ErrNoViewer = errors.New("transport: viewer admin id required")

// Local serves screen requests in-process for one viewer. Requests with an empty admin id act on
// the viewer's links.
type Local struct {
	links  service.LinkService
	viewer string
}

// NewLocal returns a transport for the given viewer.
func NewLocal(links service.LinkService, viewerID string) *Local {
	return &Local{links: links, viewer: viewerID}
}

var _ screen.Transport = (*Local)(nil)

func (t *Local) admin(id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if t.viewer == "" {
		return "", ErrNoViewer
	}
	return t.viewer, nil
}

func (t *Local) ListLinks(ctx context.Context, q screen.LinksQuery) ([]model.Link, error) {
	adminID, err := t.admin(q.AdminID)
	if err != nil {
		return nil, err
	}
	in := service.ListLinksInput{
		ResourceID: q.ResourceID,
		AdminID:    adminID,
		Revoked:    q.Revoked,
		Limit:      q.Limit,
	}
	if q.Cursor != nil {
		after := time.UnixMicro(q.Cursor.OffsetDate)
		in.AfterKey = q.Cursor.OffsetKey
		in.AfterDate = &after
	}
	return t.links.ListLinks(ctx, in)
}

func (t *Local) ListAdmins(ctx context.Context, q screen.AdminsQuery) ([]model.Admin, error) {
	return t.links.ListAdmins(ctx, service.ListAdminsInput{
		ResourceID: q.ResourceID,
		ViewerID:   t.viewer,
		AfterID:    q.AfterID,
		Limit:      q.Limit,
	})
}

func (t *Local) CreateLink(ctx context.Context, in screen.LinkInput) (*model.Link, error) {
	adminID, err := t.admin(in.AdminID)
	if err != nil {
		return nil, err
	}
	create := service.CreateLinkInput{
		ResourceID: in.ResourceID,
		AdminID:    adminID,
		ExpiresAt:  in.ExpiresAt,
		UsageLimit: in.UsageLimit,
	}
	if in.Title != nil {
		create.Title = *in.Title
	}
	if in.RequestNeeded != nil {
		create.RequestNeeded = *in.RequestNeeded
	}
	return t.links.CreateLink(ctx, create)
}

func (t *Local) EditLink(ctx context.Context, id string, in screen.LinkInput) (*model.Link, error) {
	return t.links.UpdateLink(ctx, id, service.UpdateLinkInput{
		Title:         in.Title,
		ExpiresAt:     in.ExpiresAt,
		UsageLimit:    in.UsageLimit,
		RequestNeeded: in.RequestNeeded,
	})
}

func (t *Local) RevokeLink(ctx context.Context, id string) (screen.RevokeResult, error) {
	out, err := t.links.RevokeLink(ctx, id)
	if err != nil {
		return screen.RevokeResult{}, err
	}
	if out.Replacement != nil {
		return screen.RevokeResult{Kind: screen.RevokeReplaced, Link: out.Link, Replacement: out.Replacement}, nil
	}
	return screen.RevokeResult{Kind: screen.RevokeEdited, Link: out.Link}, nil
}

func (t *Local) DeleteLink(ctx context.Context, id string) error {
	return t.links.DeleteLink(ctx, id)
}

func (t *Local) DeleteRevokedLinks(ctx context.Context, resourceID, adminID string) error {
	adminID, err := t.admin(adminID)
	if err != nil {
		return err
	}
	_, err = t.links.DeleteRevokedLinks(ctx, resourceID, adminID)
	return err
}
