package sharelink

import (
	"context"
	defError "errors"
	"esign-dashboard/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	FindByDocumentAndEmail(ctx context.Context, docID uint64, email string) (*domain.DocumentShareLink, error)
	// CreateIfAbsent inserts link unless one exists for its document and
	// email, then returns whichever row won.
	CreateIfAbsent(ctx context.Context, link *domain.DocumentShareLink) (*domain.DocumentShareLink, error)
	FindBySlug(ctx context.Context, slug string) (*domain.DocumentShareLink, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

// FindByDocumentAndEmail returns nil, nil when there is no link yet.
func (r *RepositoryImpl) FindByDocumentAndEmail(ctx context.Context, docID uint64, email string) (*domain.DocumentShareLink, error) {
	var link domain.DocumentShareLink
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND email = ?", docID, email).
		First(&link).Error
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *RepositoryImpl) CreateIfAbsent(ctx context.Context, link *domain.DocumentShareLink) (*domain.DocumentShareLink, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}, {Name: "email"}},
			DoNothing: true,
		}).
		Create(link).Error
	if err != nil {
		return nil, err
	}

	// a concurrent request may have inserted first
	existing, err := r.FindByDocumentAndEmail(ctx, link.DocumentID, link.Email)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return existing, nil
}

func (r *RepositoryImpl) FindBySlug(ctx context.Context, slug string) (*domain.DocumentShareLink, error) {
	var link domain.DocumentShareLink
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}
