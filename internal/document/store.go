package document

import (
	"context"
	defError "errors"
	"esign-dashboard/internal/domain"

	"gorm.io/gorm"
)

// Store is the read side the action executor and share links use. A missing
// document is reported as nil, nil.
type Store struct {
	repository DocumentRepository
}

func NewStore(repository DocumentRepository) *Store {
	return &Store{repository: repository}
}

// GetDocumentByID scopes the lookup to teamID when one is given. Visibility
// for the viewer is the caller's business.
func (s *Store) GetDocumentByID(ctx context.Context, id uint64, teamID *uint64) (*domain.Document, error) {
	doc, err := s.repository.FindByID(ctx, id)
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if teamID != nil && (doc.TeamID == nil || *doc.TeamID != *teamID) {
		return nil, nil
	}
	return doc, nil
}

func (s *Store) GetDocumentByToken(ctx context.Context, token string) (*domain.Document, error) {
	doc, err := s.repository.FindByRecipientToken(ctx, token)
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return doc, err
}
