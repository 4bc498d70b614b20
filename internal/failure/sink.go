package failure

import (
	"context"

	"gorm.io/gorm"

	"opscore/internal/models"
)

// Sink persists failure entries. Implementations must be safe for
// concurrent writers.
type Sink interface {
	Save(ctx context.Context, entry *models.FailureEntry) error
}

// GormSink appends failure entries to the failure store table.
type GormSink struct {
	db *gorm.DB
}

func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

func (s *GormSink) Save(ctx context.Context, entry *models.FailureEntry) error {
	return s.db.WithContext(ctx).Create(entry).Error
}
