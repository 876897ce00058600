// Package rows projects a link store into the flat, ordered list of rows a screen displays.
//
// Row positions are outputs only. Each row has an Identity that names its role (for structural rows)
// or its record (for items), so the same logical row can be matched across rebuilds.
package rows

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/sifan077/PowerInvite/internal/app/model"
)

// Kind is the shape of a row.
type Kind uint8

const (
	KindHeader Kind = iota + 1
	KindDivider
	KindItem
	KindLoading
	KindAction
	KindFooter
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindDivider:
		return "divider"
	case KindItem:
		return "item"
	case KindLoading:
		return "loading"
	case KindAction:
		return "action"
	case KindFooter:
		return "footer"
	default:
		return "unknown"
	}
}

// Role names what a structural row is for. Item rows have no role.
type Role string

const (
	RoleOtherAdminHeader  Role = "other-admin-header"
	RoleOtherAdminDivider Role = "other-admin-divider"
	RoleHelp              Role = "help"
	RolePermanentHeader   Role = "permanent-link-header"
	RolePublicHeader      Role = "public-link-header"
	RolePermanentDivider  Role = "permanent-link-divider"
	RoleCreateLink        Role = "create-link"
	RoleActiveHeader      Role = "active-links-header"
	RoleCreateHelp        Role = "create-link-help"
	RoleAdminsDivider     Role = "admins-divider"
	RoleAdminsHeader      Role = "admins-header"
	RoleRevokedDivider    Role = "revoked-divider"
	RoleRevokedHeader     Role = "revoked-header"
	RoleRevokedEndDivider Role = "revoked-end-divider"
	RoleDeleteAllRevoked  Role = "delete-all-revoked"
	RoleLoading           Role = "loading"
	RoleTrailingDivider   Role = "trailing-divider"
)

// Collection tags the store collection an item row points into.
type Collection string

const (
	CollectionPermanent Collection = "permanent"
	CollectionActive    Collection = "active"
	CollectionAdmins    Collection = "admins"
	CollectionRevoked   Collection = "revoked"
)

// Identity matches rows across rebuilds.
type Identity struct {
	Role       Role
	Collection Collection
	ID         string
}

func (id Identity) String() string {
	if id.Role != "" {
		return string(id.Role)
	}
	if id.ID == "" {
		return string(id.Collection)
	}
	return string(id.Collection) + ":" + id.ID
}

// Row is one entry of a Model.
type Row struct {
	Kind Kind
	Role Role
	// Collection, Index and ID locate the record behind an item row.
	Collection Collection
	Index      int
	ID         string
	// Rev fingerprints what the row shows. Equal identities with different revisions are content
	// updates.
	Rev uint64
}

// Identity returns the row identity. The permanent link row keeps one identity whatever link it
// shows, so replacing the permanent link is a content update of that row.
func (r Row) Identity() Identity {
	if r.Kind != KindItem {
		return Identity{Role: r.Role}
	}
	if r.Collection == CollectionPermanent {
		return Identity{Collection: r.Collection}
	}
	return Identity{Collection: r.Collection, ID: r.ID}
}

// Model is an ordered row sequence.
type Model struct {
	Rows []Row
}

// Len returns the number of rows.
func (m Model) Len() int { return len(m.Rows) }

// Identities returns the identity of every row, in order.
func (m Model) Identities() []Identity {
	out := make([]Identity, len(m.Rows))
	for i, r := range m.Rows {
		out[i] = r.Identity()
	}
	return out
}

// IndexOf returns the position of the row with identity id, or -1.
func (m Model) IndexOf(id Identity) int {
	for i, r := range m.Rows {
		if r.Identity() == id {
			return i
		}
	}
	return -1
}

// Source is what the builder reads. *store.Store satisfies it.
type Source interface {
	Active() []model.Link
	Revoked() []model.Link
	Admins() []model.Admin
	Permanent() *model.Link
}

// Flags carry view state that is not part of the store.
type Flags struct {
	CanEdit        bool
	IsPublic       bool
	OtherAdminMode bool
	HasMoreAny     bool
	IsLoadingAny   bool
	// InSubFetch is set while admins or revoked links are paged.
	InSubFetch bool
	// Hints adds the help row, the empty list footer and the trailing divider.
	Hints bool
}

func linkRev(l *model.Link) uint64 {
	if l == nil {
		return 0
	}
	d := xxhash.New()
	_, _ = d.WriteString(l.ID)
	_, _ = d.WriteString("\x00" + l.Title + "\x00")
	_, _ = d.WriteString(strconv.FormatInt(l.CreatedAt.UnixNano(), 36))
	if l.ExpiresAt != nil {
		_, _ = d.WriteString("e" + strconv.FormatInt(l.ExpiresAt.UnixNano(), 36))
	}
	if l.UsageLimit != nil {
		_, _ = d.WriteString("l" + strconv.Itoa(*l.UsageLimit))
	}
	_, _ = d.WriteString("u" + strconv.Itoa(l.UsageCount))
	_, _ = d.WriteString("r" + strconv.Itoa(l.RequestedCount))
	var flags byte
	for i, b := range []bool{l.RequestNeeded, l.IsPermanent, l.IsRevoked, l.IsExpired} {
		if b {
			flags |= 1 << i
		}
	}
	_, _ = d.Write([]byte{flags})
	return d.Sum64()
}

func adminRev(a model.Admin) uint64 {
	return xxhash.Sum64String(a.AdminID + "\x00" + strconv.Itoa(a.InvitesCount) + "/" + strconv.Itoa(a.RevokedCount))
}
