// Package screen ties the link store, pagination, row building and diffing together for one screen.
//
// A Screen serializes all engine work behind its mutex. Transport calls run outside of it and their
// results are applied when they come back, unless the screen was closed in the meantime. Mutations
// are applied only after the server acknowledged them; every applied change is returned as an
// Update carrying the new model and the edit script from the previously returned one.
package screen

import (
	"context"
	"errors"
	"sync"

	"github.com/sifan077/PowerInvite/internal/app/model"
	"github.com/sifan077/PowerInvite/internal/engine/diff"
	"github.com/sifan077/PowerInvite/internal/engine/pager"
	"github.com/sifan077/PowerInvite/internal/engine/rows"
	"github.com/sifan077/PowerInvite/internal/engine/store"
	"go.uber.org/zap"
)

// DefaultPrefetchRows is how close to the end of the known rows the renderer must scroll before
// FetchNext is worth calling.
const DefaultPrefetchRows = 10

// Options identify what the screen shows. They never change after New.
type Options struct {
	ResourceID string
	// AdminID is the admin whose links are shown. Empty means the viewer's own links.
	AdminID  string
	CanEdit  bool
	IsPublic bool
	// Hints adds help and spacing rows to the model.
	Hints bool
	// PermanentLink is the permanent link known before the first page, if any.
	PermanentLink *model.Link
	PageSize      int
	PrefetchRows  int
}

func (o Options) owner() bool {
	return o.AdminID == "" && o.CanEdit
}

// Metrics receives engine events. Implementations must be safe for concurrent use.
type Metrics interface {
	ObservePage(source string, received int, err error)
	ObserveMutation(op string, err error)
	ObserveUpdate(sc diff.Script)
}

type nopMetrics struct{}

func (nopMetrics) ObservePage(string, int, error) {}
func (nopMetrics) ObserveMutation(string, error)  {}
func (nopMetrics) ObserveUpdate(diff.Script)      {}

// Option customises a Screen.
type Option func(*Screen)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Screen) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Screen) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Update is one change of the row model.
type Update struct {
	Model  rows.Model
	Script diff.Script
	// Full is set when nothing was rendered before. The renderer populates from Model and ignores
	// Script.
	Full bool
	// Skipped is set by FetchNext when no page was requested.
	Skipped bool
	// PageErr is the error of a failed page. The source it belongs to is not paged any further.
	PageErr error
	// Views resolves the rows of Model to their records, and Stage is the pagination stage, both
	// taken together with Model.
	Views []RowView
	Stage pager.Stage
}

// Screen is the engine behind one link list.
type Screen struct {
	mu        sync.Mutex
	opts      Options
	transport Transport
	root      *zap.Logger
	logger    *zap.Logger
	metrics   Metrics

	store    *store.Store
	pager    *pager.Controller
	rendered *rows.Model
	closed   bool
}

// New builds a screen with an empty store. Nothing is fetched until FetchNext.
func New(t Transport, opts Options, options ...Option) *Screen {
	if opts.PrefetchRows <= 0 {
		opts.PrefetchRows = DefaultPrefetchRows
	}
	s := &Screen{
		opts:      opts,
		transport: t,
		logger:    zap.NewNop(),
		metrics:   nopMetrics{},
		store:     store.New(),
	}
	for _, o := range options {
		o(s)
	}

	cfg := pager.Config{PageSize: opts.PageSize, IncludeAdmins: opts.owner()}
	if opts.PermanentLink != nil {
		cfg.PermanentID = opts.PermanentLink.ID
		s.store.SetPermanent(*opts.PermanentLink)
	}
	s.pager = pager.New(cfg)
	s.root = s.logger
	s.logger = s.logger.With(zap.String("resource_id", opts.ResourceID), zap.String("admin_id", opts.AdminID))
	return s
}

// Options returns the options the screen was built with.
func (s *Screen) Options() Options {
	return s.opts
}

// Rows returns the current model for a full population and remembers it as rendered.
func (s *Screen) Rows() rows.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.build()
	s.rendered = &m
	return m
}

// Snapshot is Rows as a full Update with records resolved.
func (s *Screen) Snapshot() Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.build()
	s.rendered = &m
	return Update{Model: m, Full: true, Views: s.resolve(m), Stage: s.pager.Stage()}
}

// Stage returns the pagination stage.
func (s *Screen) Stage() pager.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pager.Stage()
}

// ShouldFetch reports whether a renderer showing rows up to lastVisible should ask for the next page.
func (s *Screen) ShouldFetch(lastVisible int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.pager.HasMore() || s.pager.Loading() {
		return false
	}
	n := 0
	if s.rendered != nil {
		n = s.rendered.Len()
	}
	return lastVisible >= n-s.opts.PrefetchRows
}

// FetchNext requests the next page of the current source. It is skipped while another page is in
// flight and once every source is exhausted. A failed page ends its source and is reported in
// Update.PageErr; the returned error is only set when the screen was closed.
func (s *Screen) FetchNext(ctx context.Context) (Update, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Update{}, ErrClosed
	}
	req, ok := s.pager.Begin()
	if !ok {
		upd := s.current()
		s.mu.Unlock()
		upd.Skipped = true
		return upd, nil
	}
	s.mu.Unlock()

	page, err := s.fetch(ctx, req)
	s.metrics.ObservePage(req.Source.String(), len(page.Links)+len(page.Admins), err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Update{}, ErrClosed
	}
	res := s.pager.Complete(s.store, req, page, err)
	if err != nil {
		s.logger.Warn("page fetch failed, source stopped",
			zap.Stringer("source", req.Source),
			zap.Error(err))
	} else {
		s.logger.Debug("page fetched",
			zap.Stringer("source", req.Source),
			zap.Int("received", res.Received),
			zap.Int("added", res.Added),
			zap.Bool("permanent_resolved", res.Permanent),
			zap.Stringer("stage", s.pager.Stage()))
	}
	upd := s.publish()
	upd.PageErr = err
	return upd, nil
}

func (s *Screen) fetch(ctx context.Context, req pager.Request) (pager.Page, error) {
	switch req.Source {
	case pager.SourceAdmins:
		q := AdminsQuery{ResourceID: s.opts.ResourceID, Limit: req.Limit}
		if req.Cursor != nil {
			q.AfterID = req.Cursor.OffsetKey
		}
		admins, err := s.transport.ListAdmins(ctx, q)
		return pager.Page{Admins: admins}, err
	default:
		links, err := s.transport.ListLinks(ctx, LinksQuery{
			ResourceID: s.opts.ResourceID,
			AdminID:    s.opts.AdminID,
			Revoked:    req.Source == pager.SourceRevoked,
			Cursor:     req.Cursor,
			Limit:      req.Limit,
		})
		return pager.Page{Links: links}, err
	}
}

// ForAdmin opens a nested screen on the links of another admin. It has a store of its own.
func (s *Screen) ForAdmin(adminID string) (*Screen, error) {
	if adminID == "" {
		return nil, errors.New("screen: admin id required")
	}
	return New(s.transport, Options{
		ResourceID:   s.opts.ResourceID,
		AdminID:      adminID,
		CanEdit:      s.opts.CanEdit,
		Hints:        s.opts.Hints,
		PageSize:     s.opts.PageSize,
		PrefetchRows: s.opts.PrefetchRows,
	}, WithLogger(s.root), WithMetrics(s.metrics)), nil
}

// Close detaches the screen. Responses still in flight are dropped.
func (s *Screen) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// RowView is a row together with a copy of the record it shows.
type RowView struct {
	rows.Row
	Link  *model.Link
	Admin *model.Admin
}

// View returns the last rendered model with its records resolved.
func (s *Screen) View() []RowView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current().Views
}

// current describes the last rendered model without changing it. It must be called with s.mu held.
func (s *Screen) current() Update {
	if s.rendered == nil {
		m := s.build()
		return Update{Model: m, Full: true, Views: s.resolve(m), Stage: s.pager.Stage()}
	}
	m := *s.rendered
	return Update{Model: m, Views: s.resolve(m), Stage: s.pager.Stage()}
}

// resolve pairs every row of m with a copy of its record. It must be called with s.mu held.
func (s *Screen) resolve(m rows.Model) []RowView {
	out := make([]RowView, len(m.Rows))
	for i, r := range m.Rows {
		out[i] = RowView{Row: r}
		if r.Kind != rows.KindItem {
			continue
		}
		switch r.Collection {
		case rows.CollectionPermanent:
			if p := s.store.Permanent(); p != nil {
				cp := *p
				out[i].Link = &cp
			}
		case rows.CollectionActive:
			if l, ok := s.store.FindActive(r.ID); ok {
				out[i].Link = &l
			}
		case rows.CollectionRevoked:
			if l, ok := s.store.FindRevoked(r.ID); ok {
				out[i].Link = &l
			}
		case rows.CollectionAdmins:
			for _, a := range s.store.Admins() {
				if a.AdminID == r.ID {
					cp := a
					out[i].Admin = &cp
					break
				}
			}
		}
	}
	return out
}

func (s *Screen) flags() rows.Flags {
	return rows.Flags{
		CanEdit:        s.opts.CanEdit,
		IsPublic:       s.opts.IsPublic,
		OtherAdminMode: s.opts.AdminID != "",
		HasMoreAny:     s.pager.HasMore(),
		IsLoadingAny:   s.pager.Loading(),
		InSubFetch:     s.pager.InSubFetch(),
		Hints:          s.opts.Hints,
	}
}

// build must be called with s.mu held.
func (s *Screen) build() rows.Model {
	return rows.Build(s.store, s.flags())
}

// publish rebuilds the model and diffs it against the last one handed out. It must be called with
// s.mu held.
func (s *Screen) publish() Update {
	m := s.build()
	upd := Update{Model: m, Views: s.resolve(m), Stage: s.pager.Stage()}
	if s.rendered == nil {
		s.rendered = &m
		upd.Full = true
		return upd
	}
	upd.Script = diff.Compute(*s.rendered, m)
	s.rendered = &m
	s.metrics.ObserveUpdate(upd.Script)
	return upd
}
