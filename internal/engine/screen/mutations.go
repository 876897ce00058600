package screen

import (
	"context"

	"github.com/sifan077/PowerInvite/internal/engine/store"
	"go.uber.org/zap"
)

// apply is the store change an acknowledged mutation makes.
type apply func(st *store.Store)

// mutate runs one mutation: check preconditions, call the server, then apply and diff. Nothing is
// touched unless call succeeds.
func (s *Screen) mutate(op Op, linkID string, check func(st *store.Store) error, call func() (apply, error)) (Update, error) {
	fail := func(err error) (Update, error) {
		s.metrics.ObserveMutation(string(op), err)
		s.logger.Warn("link mutation failed",
			zap.String("op", string(op)),
			zap.String("link_id", linkID),
			zap.Error(err))
		return Update{}, &MutationError{Op: op, LinkID: linkID, Err: err}
	}

	s.mu.Lock()
	var err error
	switch {
	case s.closed:
		err = ErrClosed
	case !s.opts.CanEdit:
		err = ErrReadOnly
	case check != nil:
		err = check(s.store)
	}
	s.mu.Unlock()
	if err != nil {
		return fail(err)
	}

	fn, err := call()
	if err != nil {
		return fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fail(ErrClosed)
	}
	fn(s.store)
	s.metrics.ObserveMutation(string(op), nil)
	s.logger.Info("link mutation applied", zap.String("op", string(op)), zap.String("link_id", linkID))
	return s.publish(), nil
}

func requireActive(id string) func(st *store.Store) error {
	return func(st *store.Store) error {
		if _, ok := st.FindActive(id); !ok {
			return ErrLinkNotFound
		}
		return nil
	}
}

func requireRevoked(id string) func(st *store.Store) error {
	return func(st *store.Store) error {
		if _, ok := st.FindRevoked(id); !ok {
			return ErrLinkNotFound
		}
		return nil
	}
}

// CreateLink creates a link for the screen's admin and puts it on top of the active links.
func (s *Screen) CreateLink(ctx context.Context, in LinkInput) (Update, error) {
	in.ResourceID = s.opts.ResourceID
	in.AdminID = s.opts.AdminID
	return s.mutate(OpCreate, "", nil, func() (apply, error) {
		link, err := s.transport.CreateLink(ctx, in)
		if err != nil {
			return nil, err
		}
		if link == nil || link.ID == "" {
			return nil, ErrInconsistentResponse
		}
		return func(st *store.Store) {
			st.InsertActive(*link, true)
		}, nil
	})
}

// EditLink changes an active link in place. When the server revoked the link as a consequence of
// the edit, for instance because the new usage limit is already reached, the link moves to revoked.
func (s *Screen) EditLink(ctx context.Context, id string, in LinkInput) (Update, error) {
	return s.mutate(OpEdit, id, requireActive(id), func() (apply, error) {
		link, err := s.transport.EditLink(ctx, id, in)
		if err != nil {
			return nil, err
		}
		if link == nil || link.ID != id {
			return nil, ErrInconsistentResponse
		}
		return func(st *store.Store) {
			if link.IsRevoked {
				st.MoveToRevoked(id)
				st.UpdateRevoked(*link)
				return
			}
			st.UpdateActive(*link)
		}, nil
	})
}

// RevokeLink revokes an active link. Use RevokePermanentLink for the permanent one.
func (s *Screen) RevokeLink(ctx context.Context, id string) (Update, error) {
	return s.mutate(OpRevoke, id, requireActive(id), func() (apply, error) {
		res, err := s.transport.RevokeLink(ctx, id)
		if err != nil {
			return nil, err
		}
		switch {
		case res.Kind == RevokeEdited:
			return func(st *store.Store) {
				st.MoveToRevoked(id)
				if res.Link != nil && res.Link.ID == id {
					st.UpdateRevoked(*res.Link)
				}
			}, nil
		case res.Kind == RevokeReplaced && res.Replacement != nil:
			return func(st *store.Store) {
				st.MoveToRevoked(id)
				st.InsertActive(*res.Replacement, true)
			}, nil
		default:
			return nil, ErrInconsistentResponse
		}
	})
}

// RevokePermanentLink revokes the permanent link. A replaced answer archives the old link and
// installs the new one in a single update.
func (s *Screen) RevokePermanentLink(ctx context.Context) (Update, error) {
	s.mu.Lock()
	var id string
	if p := s.store.Permanent(); p != nil {
		id = p.ID
	}
	s.mu.Unlock()

	check := func(st *store.Store) error {
		if s.opts.IsPublic {
			return ErrPublicLink
		}
		if p := st.Permanent(); p == nil || p.ID != id {
			return ErrNoPermanentLink
		}
		return nil
	}
	return s.mutate(OpRevokePermanent, id, check, func() (apply, error) {
		res, err := s.transport.RevokeLink(ctx, id)
		if err != nil {
			return nil, err
		}
		switch res.Kind {
		case RevokeReplaced:
			if res.Replacement == nil || res.Replacement.ID == "" || res.Replacement.ID == id {
				return nil, ErrInconsistentResponse
			}
			return func(st *store.Store) {
				st.ReplacePermanent(*res.Replacement)
				if res.Link != nil && res.Link.ID == id {
					st.UpdateRevoked(*res.Link)
				}
			}, nil
		case RevokeEdited:
			if res.Link == nil || res.Link.ID != id {
				return nil, ErrInconsistentResponse
			}
			return func(st *store.Store) {
				st.SetPermanent(*res.Link)
			}, nil
		default:
			return nil, ErrInconsistentResponse
		}
	})
}

// DeleteLink deletes a revoked link for good.
func (s *Screen) DeleteLink(ctx context.Context, id string) (Update, error) {
	return s.mutate(OpDelete, id, requireRevoked(id), func() (apply, error) {
		if err := s.transport.DeleteLink(ctx, id); err != nil {
			return nil, err
		}
		return func(st *store.Store) {
			st.DeleteRevoked(id)
		}, nil
	})
}

// DeleteRevokedLinks deletes every revoked link of the screen's admin.
func (s *Screen) DeleteRevokedLinks(ctx context.Context) (Update, error) {
	return s.mutate(OpDeleteRevoked, "", nil, func() (apply, error) {
		if err := s.transport.DeleteRevokedLinks(ctx, s.opts.ResourceID, s.opts.AdminID); err != nil {
			return nil, err
		}
		return func(st *store.Store) {
			st.ClearRevoked()
			s.pager.DiscardRevoked()
		}, nil
	})
}
