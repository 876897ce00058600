package handler

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerInvite/internal/engine/rows"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScreenApp(repo *memLinks) (*fiber.App, *ScreenHandler) {
	app := fiber.New()
	h := NewScreenHandler(ScreenDeps{LinkService: newTestLinkService(repo), PageSize: 20})
	h.Register(app)
	return app, h
}

func roles(upd UpdateJSON) []string {
	out := make([]string, len(upd.Rows))
	for i, r := range upd.Rows {
		if r.Kind == rows.KindItem.String() {
			out[i] = r.Collection
			continue
		}
		out[i] = r.Role
	}
	return out
}

func openScreen(t *testing.T, app *fiber.App, viewer string, req OpenScreenRequest) UpdateJSON {
	t.Helper()
	var upd UpdateJSON
	resp := doJSON(t, app, fiber.MethodPost, "/api/screens", viewer, req, &upd)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, upd.SessionID)
	return upd
}

func fetchAll(t *testing.T, app *fiber.App, viewer, id string) UpdateJSON {
	t.Helper()
	var upd UpdateJSON
	for i := 0; i < 10; i++ {
		resp := doJSON(t, app, fiber.MethodPost, "/api/screens/"+id+"/next", viewer, nil, &upd)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		if upd.Stage == "done" {
			return upd
		}
	}
	t.Fatal("screen never finished paging")
	return upd
}

func TestScreenOpenShowsPermanentLink(t *testing.T) {
	app, _ := newScreenApp(newMemLinks())

	upd := openScreen(t, app, "alice", OpenScreenRequest{ResourceID: "chat", CanEdit: true})
	assert.True(t, upd.Full)
	assert.Equal(t, "fetching_active", upd.Stage)
	assert.Equal(t, []string{
		string(rows.RolePermanentHeader),
		string(rows.CollectionPermanent),
		string(rows.RolePermanentDivider),
		string(rows.RoleCreateLink),
		string(rows.RoleLoading),
	}, roles(upd))
	require.NotNil(t, upd.Rows[1].Link)
	assert.True(t, upd.Rows[1].Link.IsPermanent)
}

func TestScreenLifecycle(t *testing.T) {
	app, _ := newScreenApp(newMemLinks())
	upd := openScreen(t, app, "alice", OpenScreenRequest{ResourceID: "chat", CanEdit: true})
	id := upd.SessionID
	oldPermanent := upd.Rows[1].ID

	title := "friends"
	resp := doJSON(t, app, fiber.MethodPost, "/api/screens/"+id+"/links", "alice", LinkRequest{Title: &title}, &upd)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.False(t, upd.Full)
	assert.Equal(t, []OpJSON{{Kind: "insert", Index: 4, Count: 1}}, upd.Ops)
	require.NotNil(t, upd.Rows[4].Link)
	assert.Equal(t, "friends", upd.Rows[4].Link.Title)

	upd = fetchAll(t, app, "alice", id)
	assert.Equal(t, []string{
		string(rows.RolePermanentHeader),
		string(rows.CollectionPermanent),
		string(rows.RolePermanentDivider),
		string(rows.RoleCreateLink),
		string(rows.CollectionActive),
	}, roles(upd))

	var fetch struct {
		Fetch bool `json:"fetch"`
	}
	doJSON(t, app, fiber.MethodGet, "/api/screens/"+id+"/should-fetch?last_visible=4", "alice", nil, &fetch)
	assert.False(t, fetch.Fetch)

	resp = doJSON(t, app, fiber.MethodPost, "/api/screens/"+id+"/permanent/revoke", "alice", nil, &upd)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []OpJSON{
		{Kind: "update", Index: 1, Count: 1},
		{Kind: "insert", Index: 5, Count: 5},
	}, upd.Ops)
	assert.NotEqual(t, oldPermanent, upd.Rows[1].ID)
	assert.Equal(t, oldPermanent, upd.Rows[7].ID)
	require.NotNil(t, upd.Rows[7].Link)
	assert.True(t, upd.Rows[7].Link.IsRevoked)

	activeToken := tokenOf(upd.Rows[4].ID)
	resp = doJSON(t, app, fiber.MethodPost, "/api/screens/"+id+"/links/"+activeToken+"/revoke", "alice", nil, &upd)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, string(rows.CollectionRevoked), upd.Rows[6].Collection)

	resp = doJSON(t, app, fiber.MethodDelete, "/api/screens/"+id+"/revoked", "alice", nil, &upd)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{
		string(rows.RolePermanentHeader),
		string(rows.CollectionPermanent),
		string(rows.RolePermanentDivider),
		string(rows.RoleCreateLink),
	}, roles(upd))

	resp = doJSON(t, app, fiber.MethodDelete, "/api/screens/"+id, "alice", nil, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, app, fiber.MethodGet, "/api/screens/"+id, "alice", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestScreenMutationErrors(t *testing.T) {
	app, _ := newScreenApp(newMemLinks())

	ro := openScreen(t, app, "alice", OpenScreenRequest{ResourceID: "chat"})
	resp := doJSON(t, app, fiber.MethodPost, "/api/screens/"+ro.SessionID+"/links", "alice", LinkRequest{}, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	pub := openScreen(t, app, "alice", OpenScreenRequest{ResourceID: "chat", CanEdit: true, IsPublic: true})
	assert.Equal(t, string(rows.RolePublicHeader), pub.Rows[0].Role)
	resp = doJSON(t, app, fiber.MethodPost, "/api/screens/"+pub.SessionID+"/permanent/revoke", "alice", nil, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodPost, "/api/screens/"+pub.SessionID+"/links/unknown/revoke", "alice", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestScreenSessionsBelongToViewer(t *testing.T) {
	app, _ := newScreenApp(newMemLinks())
	upd := openScreen(t, app, "alice", OpenScreenRequest{ResourceID: "chat", CanEdit: true})

	resp := doJSON(t, app, fiber.MethodGet, "/api/screens/"+upd.SessionID, "mallory", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp = doJSON(t, app, fiber.MethodDelete, "/api/screens/"+upd.SessionID, "mallory", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp = doJSON(t, app, fiber.MethodGet, "/api/screens/"+upd.SessionID, "alice", nil, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestScreenOtherAdmin(t *testing.T) {
	repo := newMemLinks()
	app, _ := newScreenApp(repo)
	svc := newTestLinkService(repo)
	_, err := svc.CreateLink(t.Context(), serviceInput("chat", "bob"))
	require.NoError(t, err)

	upd := openScreen(t, app, "alice", OpenScreenRequest{ResourceID: "chat", CanEdit: true})
	var child UpdateJSON
	resp := doJSON(t, app, fiber.MethodPost, "/api/screens/"+upd.SessionID+"/admins/bob", "alice", nil, &child)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.NotEqual(t, upd.SessionID, child.SessionID)
	assert.Equal(t, string(rows.RoleOtherAdminHeader), child.Rows[0].Role)

	child = fetchAll(t, app, "alice", child.SessionID)
	assert.Contains(t, roles(child), string(rows.CollectionActive))
}

func TestSessionsSweep(t *testing.T) {
	app, h := newScreenApp(newMemLinks())
	upd := openScreen(t, app, "alice", OpenScreenRequest{ResourceID: "chat", CanEdit: true})

	assert.Equal(t, 0, h.Sweep())
	h.sessions.now = func() time.Time { return time.Now().Add(2 * defaultSessionTTL) }
	assert.Equal(t, 1, h.Sweep())

	resp := doJSON(t, app, fiber.MethodGet, "/api/screens/"+upd.SessionID, "alice", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
