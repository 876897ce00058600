// Package pager drives the three paginated link sources of a screen to completion.
//
// Sources are fetched strictly one after another: active links, then other admins (owners only),
// then revoked links. Only one page is ever in flight.
package pager

import (
	"github.com/sifan077/PowerInvite/internal/app/model"
	"github.com/sifan077/PowerInvite/internal/engine/store"
)

// DefaultPageSize is used when Config.PageSize is not set.
const DefaultPageSize = 20

// Source names a paginated collection.
type Source int

const (
	SourceActive Source = iota
	SourceAdmins
	SourceRevoked
)

func (s Source) String() string {
	switch s {
	case SourceActive:
		return "active"
	case SourceAdmins:
		return "admins"
	case SourceRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Stage is the state of the controller. Stages only move forward.
type Stage int

const (
	FetchingActive Stage = iota
	FetchingAdmins
	FetchingRevoked
	Done
)

func (s Stage) String() string {
	switch s {
	case FetchingActive:
		return "fetching_active"
	case FetchingAdmins:
		return "fetching_admins"
	case FetchingRevoked:
		return "fetching_revoked"
	default:
		return "done"
	}
}

// Source returns the source fetched in this stage. It is meaningless for Done.
func (s Stage) Source() Source {
	return Source(s)
}

// Cursor is the position after the last item of the previous page of one source.
type Cursor struct {
	OffsetKey string
	// OffsetDate is the creation time of that item in Unix microseconds.
	OffsetDate int64
}

// Request describes the next page to fetch.
type Request struct {
	Seq    uint64
	Source Source
	// Cursor is nil for the first page.
	Cursor *Cursor
	Limit  int
}

// Page is what came back for a Request. Only the field matching the source is read.
type Page struct {
	Links  []model.Link
	Admins []model.Admin
}

// Config is fixed for the controller's lifetime.
type Config struct {
	PageSize int
	// IncludeAdmins enables the admins stage. It is only set for owners viewing their own links.
	IncludeAdmins bool
	// PermanentID is the permanent link known at construction. When empty, the first link of the
	// first active page flagged permanent is taken instead.
	PermanentID string
}

// Result reports what Complete did with a page.
type Result struct {
	Applied  bool
	Source   Source
	Received int
	Added    int
	// Permanent is set when the first active page resolved the permanent link.
	Permanent bool
}

// Controller is the pagination state machine. It is not safe for concurrent use.
type Controller struct {
	cfg     Config
	stage   Stage
	cursors [3]*Cursor
	loading bool
	seq     uint64
}

// New builds a controller positioned at the first stage.
func New(cfg Config) *Controller {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Controller{cfg: cfg}
}

func (c *Controller) Stage() Stage  { return c.stage }
func (c *Controller) Loading() bool { return c.loading }
func (c *Controller) HasMore() bool { return c.stage != Done }
func (c *Controller) PageSize() int { return c.cfg.PageSize }

// InSubFetch reports whether the active links are complete and a later source is being paged.
func (c *Controller) InSubFetch() bool {
	return c.stage == FetchingAdmins || c.stage == FetchingRevoked
}

// Cursor returns a copy of the cursor of src, nil when the source has not been fetched yet.
func (c *Controller) Cursor(src Source) *Cursor {
	cur := c.cursors[src]
	if cur == nil {
		return nil
	}
	cp := *cur
	return &cp
}

// Begin marks a page as in flight and returns its request. It returns false while another page is
// loading or when every source is exhausted.
func (c *Controller) Begin() (Request, bool) {
	if c.loading || c.stage == Done {
		return Request{}, false
	}
	c.loading = true
	c.seq++
	return Request{
		Seq:    c.seq,
		Source: c.stage.Source(),
		Cursor: c.Cursor(c.stage.Source()),
		Limit:  c.cfg.PageSize,
	}, true
}

// Complete merges the outcome of req into st. A completion for anything but the request in flight
// is dropped. On error the source is considered exhausted.
func (c *Controller) Complete(st *store.Store, req Request, page Page, err error) Result {
	res := Result{Source: req.Source}
	if !c.loading || req.Seq != c.seq {
		return res
	}
	c.loading = false
	res.Applied = true

	if err != nil {
		c.advance()
		return res
	}

	switch req.Source {
	case SourceActive:
		links := page.Links
		res.Received = len(links)
		if req.Cursor == nil {
			links, res.Permanent = c.resolvePermanent(st, links)
		}
		res.Added = st.AppendActivePage(links)
		c.moveCursor(req.Source, page.Links)
	case SourceRevoked:
		res.Received = len(page.Links)
		res.Added = st.AppendRevokedPage(page.Links)
		c.moveCursor(req.Source, page.Links)
	case SourceAdmins:
		res.Received = len(page.Admins)
		res.Added = st.AppendAdminPage(page.Admins)
		if n := len(page.Admins); n > 0 {
			c.cursors[SourceAdmins] = &Cursor{OffsetKey: page.Admins[n-1].AdminID}
		}
	}

	if res.Received < req.Limit {
		c.advance()
	}
	return res
}

// resolvePermanent strips the permanent link from the first active page and installs it. A page
// that was in flight while the permanent link got replaced carries the archived link; it is
// stripped but never installed again.
func (c *Controller) resolvePermanent(st *store.Store, links []model.Link) ([]model.Link, bool) {
	for i, l := range links {
		match := l.ID == c.cfg.PermanentID
		if c.cfg.PermanentID == "" {
			match = l.IsPermanent
		}
		if !match {
			continue
		}
		rest := make([]model.Link, 0, len(links)-1)
		rest = append(rest, links[:i]...)
		rest = append(rest, links[i+1:]...)
		if !installable(st, l.ID) {
			return rest, false
		}
		st.SetPermanent(l)
		return rest, true
	}
	return links, false
}

func installable(st *store.Store, id string) bool {
	if _, revoked := st.FindRevoked(id); revoked || st.IsDeleted(id) {
		return false
	}
	p := st.Permanent()
	return p == nil || p.ID == id
}

// DiscardRevoked drops the revoked page in flight, if any. Its completion is ignored and the next
// Begin asks for the same page again.
func (c *Controller) DiscardRevoked() bool {
	if !c.loading || c.stage != FetchingRevoked {
		return false
	}
	c.loading = false
	c.seq++
	return true
}

func (c *Controller) moveCursor(src Source, links []model.Link) {
	if len(links) == 0 {
		return
	}
	last := links[len(links)-1]
	c.cursors[src] = &Cursor{OffsetKey: last.ID, OffsetDate: last.CreatedAt.UnixMicro()}
}

func (c *Controller) advance() {
	switch c.stage {
	case FetchingActive:
		if c.cfg.IncludeAdmins {
			c.stage = FetchingAdmins
		} else {
			c.stage = FetchingRevoked
		}
	case FetchingAdmins:
		c.stage = FetchingRevoked
	case FetchingRevoked:
		c.stage = Done
	}
}
