package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sifan077/PowerInvite/internal/app/model"
)

// AdminFilter selects one page of admins that created links for a resource.
type AdminFilter struct {
	ResourceID string
	// ExcludeAdminID is left out of the result, normally the viewer.
	ExcludeAdminID string
	AfterID        string
	Limit          int
}

// AdminRepository aggregates link counts per admin.
type AdminRepository interface {
	ListWithInvites(ctx context.Context, filter AdminFilter) ([]model.Admin, error)
}

type adminRepository struct {
	pool *pgxpool.Pool
}

// NewAdminRepository returns a pgx-backed AdminRepository.
func NewAdminRepository(pool *pgxpool.Pool) AdminRepository {
	return &adminRepository{pool: pool}
}

const listAdminsSQL = `
SELECT admin_id,
       COUNT(*) FILTER (WHERE NOT is_revoked) AS invites_count,
       COUNT(*) FILTER (WHERE is_revoked)     AS revoked_count
FROM invite_links
WHERE resource_id = $1 AND admin_id <> $2 AND admin_id > $3
GROUP BY admin_id
ORDER BY admin_id
LIMIT $4`

func (r *adminRepository) ListWithInvites(ctx context.Context, f AdminFilter) ([]model.Admin, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	rows, err := r.pool.Query(ctx, listAdminsSQL, f.ResourceID, f.ExcludeAdminID, f.AfterID, limit)
	if err != nil {
		return nil, fmt.Errorf("query admins: %w", err)
	}
	admins, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Admin])
	if err != nil {
		return nil, fmt.Errorf("scan admins: %w", err)
	}
	return admins, nil
}
