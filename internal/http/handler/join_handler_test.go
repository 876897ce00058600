package handler

import (
	"io"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerInvite/internal/app/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var acceptURL = regexp.MustCompile(`action="([^"]+)"`)

func newJoinApp(repo *memLinks) (*fiber.App, service.LinkService) {
	svc := newTestLinkService(repo)
	app := fiber.New()
	NewJoinHandler(JoinDeps{LinkService: svc, Secret: []byte("secret")}).Register(app)
	return app, svc
}

func landing(t *testing.T, app *fiber.App, token string) (int, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/join/"+token, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestJoinFlow(t *testing.T) {
	repo := newMemLinks()
	app, svc := newJoinApp(repo)
	limit := 1
	link, err := svc.CreateLink(t.Context(), service.CreateLinkInput{ResourceID: "chat", AdminID: "alice", Title: "friends", UsageLimit: &limit})
	require.NoError(t, err)
	token := tokenOf(link.ID)

	status, body := landing(t, app, token)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, "friends")
	assert.Contains(t, body, "1 spots left.")
	m := acceptURL.FindStringSubmatch(body)
	require.Len(t, m, 2)

	var out struct {
		Status     string `json:"status"`
		ResourceID string `json:"resource_id"`
	}
	resp := doJSON(t, app, fiber.MethodPost, m[1], "", nil, &out)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "joined", out.Status)
	assert.Equal(t, "chat", out.ResourceID)

	resp = doJSON(t, app, fiber.MethodPost, m[1], "", nil, nil)
	assert.Equal(t, fiber.StatusGone, resp.StatusCode)

	status, body = landing(t, app, token)
	assert.Equal(t, fiber.StatusGone, status)
	assert.Contains(t, body, "expired")
}

func TestJoinRequestNeeded(t *testing.T) {
	app, svc := newJoinApp(newMemLinks())
	link, err := svc.CreateLink(t.Context(), service.CreateLinkInput{ResourceID: "chat", AdminID: "alice", RequestNeeded: true})
	require.NoError(t, err)

	_, body := landing(t, app, tokenOf(link.ID))
	assert.Contains(t, body, "Request to join")
	m := acceptURL.FindStringSubmatch(body)
	require.Len(t, m, 2)

	var out struct {
		Status string `json:"status"`
	}
	resp := doJSON(t, app, fiber.MethodPost, m[1], "", nil, &out)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "requested", out.Status)
}

func TestJoinRejects(t *testing.T) {
	app, svc := newJoinApp(newMemLinks())
	link, err := svc.CreateLink(t.Context(), service.CreateLinkInput{ResourceID: "chat", AdminID: "alice"})
	require.NoError(t, err)
	token := tokenOf(link.ID)

	resp := doJSON(t, app, fiber.MethodPost, "/join/"+token+"/accept/forged.token", "", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	status, _ := landing(t, app, "missing")
	assert.Equal(t, fiber.StatusNotFound, status)

	_, err = svc.RevokeLink(t.Context(), link.ID)
	require.NoError(t, err)
	status, body := landing(t, app, token)
	assert.Equal(t, fiber.StatusGone, status)
	assert.Contains(t, body, "revoked")
}
