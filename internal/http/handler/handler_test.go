package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerInvite/internal/app/model"
	"github.com/sifan077/PowerInvite/internal/app/repository"
	"github.com/sifan077/PowerInvite/internal/app/service"
	"github.com/sifan077/PowerInvite/internal/http/middleware"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://t.example"

// memLinks is an in-memory repository.LinkRepository.
type memLinks struct {
	mu    sync.Mutex
	links []*model.Link
	clock time.Time
}

func newMemLinks() *memLinks {
	return &memLinks{clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (r *memLinks) find(id string) *model.Link {
	for _, l := range r.links {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func (r *memLinks) Create(_ context.Context, link *model.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = r.clock.Add(time.Second)
	link.CreatedAt = r.clock
	cp := *link
	r.links = append(r.links, &cp)
	return nil
}

func (r *memLinks) GetByID(_ context.Context, id string) (*model.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l := r.find(id); l != nil {
		cp := *l
		return &cp, nil
	}
	return nil, repository.ErrLinkNotFound
}

func (r *memLinks) GetPermanent(_ context.Context, resourceID, adminID string) (*model.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.links) - 1; i >= 0; i-- {
		l := r.links[i]
		if l.ResourceID == resourceID && l.AdminID == adminID && l.IsPermanent && !l.IsRevoked {
			cp := *l
			return &cp, nil
		}
	}
	return nil, repository.ErrLinkNotFound
}

func (r *memLinks) List(_ context.Context, f repository.LinkFilter) ([]model.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Link
	for _, l := range r.links {
		if l.ResourceID != f.ResourceID || l.AdminID != f.AdminID || l.IsRevoked != f.Revoked {
			continue
		}
		if !f.Revoked && l.IsPermanent {
			continue
		}
		if f.AfterDate != nil {
			if l.CreatedAt.After(*f.AfterDate) || (l.CreatedAt.Equal(*f.AfterDate) && l.ID >= f.AfterKey) {
				continue
			}
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memLinks) Update(_ context.Context, link *model.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.find(link.ID)
	if l == nil || l.IsRevoked {
		return repository.ErrLinkChanged
	}
	*l = *link
	return nil
}

func (r *memLinks) Revoke(_ context.Context, id string) (*model.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.find(id)
	if l == nil || l.IsRevoked {
		return nil, repository.ErrLinkChanged
	}
	l.IsRevoked = true
	cp := *l
	return &cp, nil
}

func (r *memLinks) ReplacePermanent(ctx context.Context, oldID string, next *model.Link) (*model.Link, error) {
	old, err := r.Revoke(ctx, oldID)
	if err != nil {
		return nil, err
	}
	return old, r.Create(ctx, next)
}

func (r *memLinks) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.links {
		if l.ID == id {
			r.links = append(r.links[:i], r.links[i+1:]...)
			return nil
		}
	}
	return repository.ErrLinkNotFound
}

func (r *memLinks) DeleteRevoked(_ context.Context, resourceID, adminID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keep []*model.Link
	var n int64
	for _, l := range r.links {
		if l.ResourceID == resourceID && l.AdminID == adminID && l.IsRevoked {
			n++
			continue
		}
		keep = append(keep, l)
	}
	r.links = keep
	return n, nil
}

func (r *memLinks) RecordJoin(_ context.Context, id string, now time.Time) (*model.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.find(id)
	if l == nil {
		return nil, repository.ErrLinkNotFound
	}
	if !l.Usable(now) {
		return nil, repository.ErrLinkChanged
	}
	if l.RequestNeeded {
		l.RequestedCount++
	} else {
		l.UsageCount++
	}
	if l.LimitReached() {
		l.IsExpired = true
	}
	cp := *l
	return &cp, nil
}

func (r *memLinks) MarkExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type memAdmins struct {
	admins []model.Admin
}

func (m *memAdmins) ListWithInvites(_ context.Context, f repository.AdminFilter) ([]model.Admin, error) {
	var out []model.Admin
	for _, a := range m.admins {
		if a.AdminID != f.ExcludeAdminID && a.AdminID > f.AfterID {
			out = append(out, a)
		}
	}
	return out, nil
}

func newTestLinkService(repo *memLinks, admins ...model.Admin) service.LinkService {
	return service.NewLinkService(service.LinkServiceDeps{
		Links:   repo,
		Admins:  &memAdmins{admins: admins},
		BaseURL: testBaseURL,
	})
}

func tokenOf(id string) string {
	return strings.TrimPrefix(id, testBaseURL+"/join/")
}

func doJSON(t *testing.T, app *fiber.App, method, path, viewer string, body any, out any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if viewer != "" {
		req.Header.Set(middleware.ViewerHeader, viewer)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	if out != nil {
		defer resp.Body.Close()
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func serviceInput(resourceID, adminID string) service.CreateLinkInput {
	return service.CreateLinkInput{ResourceID: resourceID, AdminID: adminID}
}
