// Package store keeps the local collections a link screen is assembled from.
//
// A Store is owned by exactly one screen and is not safe for concurrent use. Records in active and
// revoked keep the order in which they were delivered, newest local changes first.
package store

import "github.com/sifan077/PowerInvite/internal/app/model"

// Store holds active links, revoked links, other admins and the permanent link.
type Store struct {
	active    []model.Link
	revoked   []model.Link
	admins    []model.Admin
	permanent *model.Link
	// deleted holds ids removed for good. Pages still in flight must not bring them back.
	deleted map[string]struct{}
}

// New returns an empty store.
func New() *Store {
	return &Store{deleted: make(map[string]struct{})}
}

// Active returns the active links in display order.
func (s *Store) Active() []model.Link { return s.active }

// Revoked returns the revoked links in display order.
func (s *Store) Revoked() []model.Link { return s.revoked }

// Admins returns the other admins in delivery order.
func (s *Store) Admins() []model.Admin { return s.admins }

// Permanent returns the permanent link or nil.
func (s *Store) Permanent() *model.Link { return s.permanent }

// InsertActive adds link to the active collection, at the front when atFront is set.
// Ids already known to the store are rejected, including revoked ones: a revoked link never
// comes back.
func (s *Store) InsertActive(link model.Link, atFront bool) bool {
	if s.known(link.ID) {
		return false
	}
	if atFront {
		s.active = prepend(s.active, link)
	} else {
		s.active = append(s.active, link)
	}
	return true
}

// AppendActivePage appends a server page and returns how many records were new.
func (s *Store) AppendActivePage(links []model.Link) int {
	n := 0
	for _, l := range links {
		if s.InsertActive(l, false) {
			n++
		}
	}
	return n
}

// AppendRevokedPage appends a server page of revoked links. A record still listed as active is
// moved over instead, the server being the authority on revocation. Deleted ids and the current
// permanent link are skipped.
func (s *Store) AppendRevokedPage(links []model.Link) int {
	n := 0
	for _, l := range links {
		if indexOf(s.revoked, l.ID) >= 0 || s.IsDeleted(l.ID) {
			continue
		}
		if s.permanent != nil && s.permanent.ID == l.ID {
			continue
		}
		if i := indexOf(s.active, l.ID); i >= 0 {
			s.active = remove(s.active, i)
		}
		l.IsRevoked = true
		s.revoked = append(s.revoked, l)
		n++
	}
	return n
}

// UpdateActive replaces the content of an active link in place.
func (s *Store) UpdateActive(link model.Link) bool {
	i := indexOf(s.active, link.ID)
	if i < 0 {
		return false
	}
	s.active[i] = link
	return true
}

// UpdateRevoked replaces the content of a revoked link in place. The revoked flag is kept.
func (s *Store) UpdateRevoked(link model.Link) bool {
	i := indexOf(s.revoked, link.ID)
	if i < 0 {
		return false
	}
	link.IsRevoked = true
	s.revoked[i] = link
	return true
}

// MoveToRevoked moves the active link id to the front of revoked. It is a no-op when id is not active.
func (s *Store) MoveToRevoked(id string) bool {
	i := indexOf(s.active, id)
	if i < 0 {
		return false
	}
	link := s.active[i]
	s.active = remove(s.active, i)
	link.IsRevoked = true
	s.revoked = prepend(s.revoked, link)
	return true
}

// SetPermanent installs link as the permanent link without archiving the previous one.
func (s *Store) SetPermanent(link model.Link) {
	link.IsPermanent = true
	s.permanent = &link
}

// ReplacePermanent installs link as the permanent link. A previous permanent link with a different
// id is archived at the front of revoked.
func (s *Store) ReplacePermanent(link model.Link) {
	old := s.permanent
	s.SetPermanent(link)
	if old == nil || old.ID == link.ID {
		return
	}
	archived := *old
	archived.IsRevoked = true
	if i := indexOf(s.revoked, archived.ID); i >= 0 {
		s.revoked = remove(s.revoked, i)
	}
	s.revoked = prepend(s.revoked, archived)
}

// DeleteRevoked drops one revoked link for good.
func (s *Store) DeleteRevoked(id string) bool {
	i := indexOf(s.revoked, id)
	if i < 0 {
		return false
	}
	s.revoked = remove(s.revoked, i)
	s.deleted[id] = struct{}{}
	return true
}

// ClearRevoked drops every revoked link for good.
func (s *Store) ClearRevoked() {
	for _, l := range s.revoked {
		s.deleted[l.ID] = struct{}{}
	}
	s.revoked = nil
}

// IsDeleted reports whether id was removed by DeleteRevoked or ClearRevoked.
func (s *Store) IsDeleted(id string) bool {
	_, ok := s.deleted[id]
	return ok
}

// AppendAdminPage appends admins not seen before and returns how many were added.
func (s *Store) AppendAdminPage(admins []model.Admin) int {
	n := 0
	for _, a := range admins {
		if s.hasAdmin(a.AdminID) {
			continue
		}
		s.admins = append(s.admins, a)
		n++
	}
	return n
}

// FindActive looks up an active link.
func (s *Store) FindActive(id string) (model.Link, bool) {
	if i := indexOf(s.active, id); i >= 0 {
		return s.active[i], true
	}
	return model.Link{}, false
}

// FindRevoked looks up a revoked link.
func (s *Store) FindRevoked(id string) (model.Link, bool) {
	if i := indexOf(s.revoked, id); i >= 0 {
		return s.revoked[i], true
	}
	return model.Link{}, false
}

func (s *Store) known(id string) bool {
	if s.permanent != nil && s.permanent.ID == id {
		return true
	}
	return indexOf(s.active, id) >= 0 || indexOf(s.revoked, id) >= 0 || s.IsDeleted(id)
}

func (s *Store) hasAdmin(id string) bool {
	for _, a := range s.admins {
		if a.AdminID == id {
			return true
		}
	}
	return false
}

func indexOf(links []model.Link, id string) int {
	for i := range links {
		if links[i].ID == id {
			return i
		}
	}
	return -1
}

func prepend(links []model.Link, link model.Link) []model.Link {
	out := make([]model.Link, 0, len(links)+1)
	out = append(out, link)
	return append(out, links...)
}

func remove(links []model.Link, i int) []model.Link {
	out := make([]model.Link, 0, len(links)-1)
	out = append(out, links[:i]...)
	return append(out, links[i+1:]...)
}
