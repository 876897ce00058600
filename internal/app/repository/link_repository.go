package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sifan077/PowerInvite/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrLinkNotFound signals that the requested invite link does not exist.
	ErrLinkNotFound = errors.New("link not found")
	// ErrLinkChanged signals that a conditional update found the link in another state.
	ErrLinkChanged = errors.New("link changed concurrently")
)

const defaultPageSize = 20

// LinkFilter selects one page of links of one admin. Pages are ordered newest first and continue
// strictly after (AfterDate, AfterKey) when AfterDate is set.
type LinkFilter struct {
	ResourceID string
	AdminID    string
	Revoked    bool
	AfterKey   string
	AfterDate  *time.Time
	Limit      int
}

// LinkRepository defines the data access contract for invite links.
type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	GetByID(ctx context.Context, id string) (*model.Link, error)
	GetPermanent(ctx context.Context, resourceID, adminID string) (*model.Link, error)
	List(ctx context.Context, filter LinkFilter) ([]model.Link, error)
	Update(ctx context.Context, link *model.Link) error
	Revoke(ctx context.Context, id string) (*model.Link, error)
	ReplacePermanent(ctx context.Context, oldID string, next *model.Link) (*model.Link, error)
	Delete(ctx context.Context, id string) error
	DeleteRevoked(ctx context.Context, resourceID, adminID string) (int64, error)
	RecordJoin(ctx context.Context, id string, now time.Time) (*model.Link, error)
	MarkExpired(ctx context.Context, before time.Time) (int64, error)
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *model.Link) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *linkRepository) GetByID(ctx context.Context, id string) (*model.Link, error) {
	return first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *linkRepository) GetPermanent(ctx context.Context, resourceID, adminID string) (*model.Link, error) {
	return first(r.db.WithContext(ctx).
		Where("resource_id = ? AND admin_id = ? AND is_permanent = ? AND is_revoked = ?", resourceID, adminID, true, false).
		Order("created_at DESC"))
}

func (r *linkRepository) List(ctx context.Context, f LinkFilter) ([]model.Link, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	q := r.db.WithContext(ctx).
		Where("resource_id = ? AND admin_id = ? AND is_revoked = ?", f.ResourceID, f.AdminID, f.Revoked)
	if !f.Revoked {
		// The permanent link is listed on its own.
		q = q.Where("is_permanent = ?", false)
	}
	if f.AfterDate != nil {
		q = q.Where("(created_at, id) < (?, ?)", *f.AfterDate, f.AfterKey)
	}

	var result []model.Link
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *linkRepository) Update(ctx context.Context, link *model.Link) error {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("id = ? AND is_revoked = ?", link.ID, false).
		Updates(map[string]interface{}{
			"title":          link.Title,
			"expires_at":     link.ExpiresAt,
			"usage_limit":    link.UsageLimit,
			"request_needed": link.RequestNeeded,
			"is_revoked":     link.IsRevoked,
			"is_expired":     link.IsExpired,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkChanged
	}
	return r.db.WithContext(ctx).Where("id = ?", link.ID).First(link).Error
}

func (r *linkRepository) Revoke(ctx context.Context, id string) (*model.Link, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("id = ? AND is_revoked = ?", id, false).
		Update("is_revoked", true)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrLinkChanged
	}
	return r.GetByID(ctx, id)
}

// ReplacePermanent revokes oldID and stores next in one transaction. It returns the revoked link.
func (r *linkRepository) ReplacePermanent(ctx context.Context, oldID string, next *model.Link) (*model.Link, error) {
	var old model.Link
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Link{}).
			Where("id = ? AND is_permanent = ? AND is_revoked = ?", oldID, true, false).
			Update("is_revoked", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrLinkChanged
		}
		if err := tx.Create(next).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", oldID).First(&old).Error
	})
	if err != nil {
		return nil, err
	}
	return &old, nil
}

func (r *linkRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Link{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (r *linkRepository) DeleteRevoked(ctx context.Context, resourceID, adminID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("resource_id = ? AND admin_id = ? AND is_revoked = ?", resourceID, adminID, true).
		Delete(&model.Link{})
	return result.RowsAffected, result.Error
}

// RecordJoin counts one use of the link, or one join request when the link needs approval. The row
// is locked so concurrent joins cannot overshoot the usage limit.
func (r *linkRepository) RecordJoin(ctx context.Context, id string, now time.Time) (*model.Link, error) {
	var link model.Link
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&link).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLinkNotFound
			}
			return err
		}
		if !link.Usable(now) {
			return ErrLinkChanged
		}
		column := "usage_count"
		if link.RequestNeeded {
			column = "requested_count"
		}
		if err := tx.Model(&link).Update(column, gorm.Expr(column+" + 1")).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).First(&link).Error; err != nil {
			return err
		}
		if link.LimitReached() && !link.IsExpired {
			link.IsExpired = true
			return tx.Model(&link).Update("is_expired", true).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) MarkExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Link{}).
		Where("is_expired = ? AND expires_at IS NOT NULL AND expires_at <= ?", false, before).
		Update("is_expired", true)
	return result.RowsAffected, result.Error
}

func first(q *gorm.DB) (*model.Link, error) {
	var link model.Link
	if err := q.First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}
