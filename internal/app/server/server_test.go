package server

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerInvite/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthWithoutBackends(t *testing.T) {
	s := New(Dependencies{Config: &config.Config{}})

	resp, err := s.app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestUnknownScreenSession(t *testing.T) {
	s := New(Dependencies{Config: &config.Config{}})

	req := httptest.NewRequest(fiber.MethodGet, "/api/screens/none", nil)
	req.Header.Set("X-Admin-ID", "alice")
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 0, s.SweepScreens())
}
