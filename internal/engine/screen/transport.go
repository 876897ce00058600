package screen

import (
	"context"
	"time"

	"github.com/sifan077/PowerInvite/internal/app/model"
	"github.com/sifan077/PowerInvite/internal/engine/pager"
)

// Transport is the request/response channel to whatever serves the links. Calls block until the
// server answered or ctx is done.
type Transport interface {
	ListLinks(ctx context.Context, q LinksQuery) ([]model.Link, error)
	ListAdmins(ctx context.Context, q AdminsQuery) ([]model.Admin, error)
	CreateLink(ctx context.Context, in LinkInput) (*model.Link, error)
	EditLink(ctx context.Context, id string, in LinkInput) (*model.Link, error)
	RevokeLink(ctx context.Context, id string) (RevokeResult, error)
	DeleteLink(ctx context.Context, id string) error
	DeleteRevokedLinks(ctx context.Context, resourceID, adminID string) error
}

// LinksQuery asks for one page of active or revoked links. An empty AdminID means the viewer.
type LinksQuery struct {
	ResourceID string
	AdminID    string
	Revoked    bool
	Cursor     *pager.Cursor
	Limit      int
}

// AdminsQuery asks for one page of the other admins of a resource.
type AdminsQuery struct {
	ResourceID string
	AfterID    string
	Limit      int
}

// LinkInput carries the editable attributes of a link. Nil fields are left unchanged on edit.
type LinkInput struct {
	ResourceID    string
	AdminID       string
	Title         *string
	ExpiresAt     *time.Time
	UsageLimit    *int
	RequestNeeded *bool
}

// RevokeKind tells the two shapes of a revoke acknowledgement apart.
type RevokeKind int

const (
	// RevokeEdited means the link itself was revoked and Link is its new state.
	RevokeEdited RevokeKind = iota + 1
	// RevokeReplaced means Link was archived and Replacement took its place.
	RevokeReplaced
)

// RevokeResult is the server answer to a revocation.
type RevokeResult struct {
	Kind        RevokeKind
	Link        *model.Link
	Replacement *model.Link
}
