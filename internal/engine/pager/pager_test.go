package pager

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sifan077/PowerInvite/internal/app/model"
	"github.com/sifan077/PowerInvite/internal/engine/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func links(prefix string, n int) []model.Link {
	out := make([]model.Link, n)
	for i := range out {
		out[i] = model.Link{
			ID:        fmt.Sprintf("%s%d", prefix, i),
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestStagesInOrderForOwner(t *testing.T) {
	c := New(Config{PageSize: 2, IncludeAdmins: true})
	st := store.New()

	req, ok := c.Begin()
	require.True(t, ok)
	assert.Equal(t, SourceActive, req.Source)
	assert.Nil(t, req.Cursor)
	c.Complete(st, req, Page{Links: links("a", 2)}, nil)
	assert.Equal(t, FetchingActive, c.Stage(), "a full page keeps the stage")

	req, _ = c.Begin()
	require.NotNil(t, req.Cursor)
	assert.Equal(t, "a1", req.Cursor.OffsetKey)
	assert.Equal(t, base.Add(-time.Minute).UnixMicro(), req.Cursor.OffsetDate)
	c.Complete(st, req, Page{Links: links("b", 1)}, nil)
	assert.Equal(t, FetchingAdmins, c.Stage())
	assert.True(t, c.InSubFetch())

	req, _ = c.Begin()
	assert.Equal(t, SourceAdmins, req.Source)
	c.Complete(st, req, Page{Admins: []model.Admin{{AdminID: "x"}}}, nil)
	assert.Equal(t, FetchingRevoked, c.Stage())

	req, _ = c.Begin()
	assert.Equal(t, SourceRevoked, req.Source)
	c.Complete(st, req, Page{Links: links("r", 0)}, nil)
	assert.Equal(t, Done, c.Stage())
	assert.False(t, c.HasMore())

	_, ok = c.Begin()
	assert.False(t, ok)

	assert.Len(t, st.Active(), 3)
	assert.Len(t, st.Admins(), 1)
}

func TestAdminsSkippedWhenNotOwner(t *testing.T) {
	c := New(Config{PageSize: 5})
	req, _ := c.Begin()
	c.Complete(store.New(), req, Page{}, nil)
	assert.Equal(t, FetchingRevoked, c.Stage())
}

func TestBeginIgnoredWhileLoading(t *testing.T) {
	c := New(Config{})
	first, ok := c.Begin()
	require.True(t, ok)
	assert.True(t, c.Loading())
	assert.Equal(t, DefaultPageSize, first.Limit)

	_, ok = c.Begin()
	assert.False(t, ok)
}

func TestStaleCompletionIsDropped(t *testing.T) {
	c := New(Config{PageSize: 1})
	st := store.New()

	req, _ := c.Begin()
	c.Complete(st, req, Page{Links: links("a", 1)}, nil)
	next, _ := c.Begin()

	res := c.Complete(st, req, Page{Links: links("z", 1)}, nil)
	assert.False(t, res.Applied)
	assert.True(t, c.Loading())
	assert.Equal(t, "a0", c.Cursor(SourceActive).OffsetKey)

	res = c.Complete(st, next, Page{Links: links("b", 1)}, nil)
	assert.True(t, res.Applied)
	assert.Equal(t, "b0", c.Cursor(SourceActive).OffsetKey)
}

func TestFailureStopsSource(t *testing.T) {
	c := New(Config{PageSize: 3, IncludeAdmins: true})
	st := store.New()

	req, _ := c.Begin()
	res := c.Complete(st, req, Page{}, errors.New("boom"))
	assert.True(t, res.Applied)
	assert.False(t, c.Loading())
	assert.Equal(t, FetchingAdmins, c.Stage())
	assert.Nil(t, c.Cursor(SourceActive))
	assert.Empty(t, st.Active())
}

func TestFirstPageResolvesPermanentLink(t *testing.T) {
	c := New(Config{PageSize: 3, PermanentID: "a1"})
	st := store.New()

	req, _ := c.Begin()
	page := links("a", 3)
	res := c.Complete(st, req, Page{Links: page}, nil)

	assert.True(t, res.Permanent)
	assert.Equal(t, 3, res.Received)
	assert.Equal(t, 2, res.Added)
	require.NotNil(t, st.Permanent())
	assert.Equal(t, "a1", st.Permanent().ID)
	for _, l := range st.Active() {
		assert.NotEqual(t, "a1", l.ID)
	}
	assert.Equal(t, FetchingActive, c.Stage(), "count includes the permanent link")
	assert.Equal(t, "a2", c.Cursor(SourceActive).OffsetKey)
}

func TestPermanentFlagUsedWithoutKnownID(t *testing.T) {
	c := New(Config{PageSize: 10})
	st := store.New()

	page := links("a", 2)
	page[0].IsPermanent = true
	req, _ := c.Begin()
	c.Complete(st, req, Page{Links: page}, nil)

	require.NotNil(t, st.Permanent())
	assert.Equal(t, "a0", st.Permanent().ID)
	assert.Len(t, st.Active(), 1)
}

func TestLaterPagesDoNotResolvePermanent(t *testing.T) {
	c := New(Config{PageSize: 1, PermanentID: "b0"})
	st := store.New()

	req, _ := c.Begin()
	c.Complete(st, req, Page{Links: links("a", 1)}, nil)
	req, _ = c.Begin()
	res := c.Complete(st, req, Page{Links: links("b", 1)}, nil)

	assert.False(t, res.Permanent)
	assert.Nil(t, st.Permanent())
	assert.Len(t, st.Active(), 2)
}

// Cursors only move to the last item of the page that was fetched with the previous cursor.
func TestCursorMonotonic(t *testing.T) {
	c := New(Config{PageSize: 2})
	st := store.New()
	all := links("a", 6)

	var prev int64 = 1<<63 - 1
	for i := 0; i < 3; i++ {
		req, ok := c.Begin()
		require.True(t, ok)
		if req.Cursor != nil {
			assert.Less(t, req.Cursor.OffsetDate, prev)
			prev = req.Cursor.OffsetDate
		}
		c.Complete(st, req, Page{Links: all[i*2 : i*2+2]}, nil)
	}
	assert.Equal(t, "a5", c.Cursor(SourceActive).OffsetKey)
}

func TestReplacedPermanentIsNotReinstalled(t *testing.T) {
	c := New(Config{PageSize: 3, PermanentID: "a0"})
	st := store.New()
	st.SetPermanent(links("a", 1)[0])

	req, _ := c.Begin()
	st.ReplacePermanent(model.Link{ID: "fresh"})
	res := c.Complete(st, req, Page{Links: links("a", 3)}, nil)

	assert.False(t, res.Permanent)
	require.NotNil(t, st.Permanent())
	assert.Equal(t, "fresh", st.Permanent().ID)
	assert.Equal(t, []string{"a1", "a2"}, linkIDs(st.Active()))
	_, revoked := st.FindRevoked("a0")
	assert.True(t, revoked)
}

func TestDiscardRevokedDropsPageInFlight(t *testing.T) {
	c := New(Config{PageSize: 1})
	st := store.New()
	for c.Stage() != FetchingRevoked {
		req, _ := c.Begin()
		c.Complete(st, req, Page{}, nil)
	}

	req, ok := c.Begin()
	require.True(t, ok)
	assert.True(t, c.DiscardRevoked())
	assert.False(t, c.Loading())
	assert.False(t, c.DiscardRevoked())

	res := c.Complete(st, req, Page{Links: links("r", 1)}, nil)
	assert.False(t, res.Applied)
	assert.Empty(t, st.Revoked())

	again, ok := c.Begin()
	require.True(t, ok)
	assert.Equal(t, SourceRevoked, again.Source)
	assert.Nil(t, again.Cursor)
}

func linkIDs(links []model.Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.ID
	}
	return out
}
