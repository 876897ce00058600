package repository

import (
	"context"
	"time"

	"github.com/sifan077/PowerInvite/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LinkEventRepository defines the data access contract for link audit events.
type LinkEventRepository interface {
	Create(ctx context.Context, event *model.LinkEvent) error
	ListByLink(ctx context.Context, linkID string, limit int) ([]model.LinkEvent, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type linkEventRepository struct {
	db *gorm.DB
}

// NewLinkEventRepository returns a GORM-backed LinkEventRepository.
func NewLinkEventRepository(db *gorm.DB) LinkEventRepository {
	return &linkEventRepository{db: db}
}

// Create ignores events that were already stored, JetStream may redeliver them.
func (r *linkEventRepository) Create(ctx context.Context, event *model.LinkEvent) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(event).Error
}

func (r *linkEventRepository) ListByLink(ctx context.Context, linkID string, limit int) ([]model.LinkEvent, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	var events []model.LinkEvent
	err := r.db.WithContext(ctx).
		Where("link_id = ?", linkID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *linkEventRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("timestamp < ?", before).Delete(&model.LinkEvent{})
	return result.RowsAffected, result.Error
}
