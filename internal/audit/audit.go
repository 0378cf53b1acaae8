// Package audit keeps the per-document history of what happened to it.
package audit

import (
	"context"
	"esign-dashboard/internal/domain"
	"esign-dashboard/internal/worker"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, entry *domain.DocumentAuditLog) error
	ListByDocument(ctx context.Context, docID uint64, limit int) ([]domain.DocumentAuditLog, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Create(ctx context.Context, entry *domain.DocumentAuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *RepositoryImpl) ListByDocument(ctx context.Context, docID uint64, limit int) ([]domain.DocumentAuditLog, error) {
	var entries []domain.DocumentAuditLog
	err := r.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// Recorder writes audit entries off the request path.
type Recorder struct {
	repo Repository
	pool *worker.WorkerPool
	now  func() time.Time
}

func NewRecorder(repo Repository, pool *worker.WorkerPool) *Recorder {
	return &Recorder{repo: repo, pool: pool, now: time.Now}
}

func (r *Recorder) Record(entry domain.DocumentAuditLog) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	r.pool.Submit(func(ctx context.Context) error {
		return r.repo.Create(ctx, &entry)
	})
}
