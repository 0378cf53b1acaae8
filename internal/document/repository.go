package document

import (
	"context"
	defError "errors"
	"esign-dashboard/internal/domain"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrStateChanged means the row was no longer in the state the update
	// expected, usually because a concurrent request got there first.
	ErrStateChanged  = defError.New("document state changed")
	ErrAlreadySigned = defError.New("recipient already signed")
)

type DocumentRepository interface {
	Create(ctx context.Context, document *domain.Document) error
	FindByID(ctx context.Context, id uint64) (*domain.Document, error)
	FindByRecipientToken(ctx context.Context, token string) (*domain.Document, error)
	ListVisible(ctx context.Context, filter ListFilter, page, pageSize int) ([]domain.Document, DocumentsMeta, error)
	Send(ctx context.Context, docID uint64, recipients []domain.Recipient) error
	MarkRecipientSigned(ctx context.Context, token string, at time.Time) (*SignResult, error)
	Delete(ctx context.Context, docID uint64) error
	CreateTemplate(ctx context.Context, template *domain.Template, data *domain.DocumentData) error
}

type DocumentRepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) DocumentRepository {
	return &DocumentRepositoryImpl{db: db}
}

// ListFilter selects the documents a dashboard shows. With a TeamID only the
// team's documents are listed, otherwise the user's personal documents and
// everything addressed to Email.
type ListFilter struct {
	UserID uint64
	Email  string
	TeamID *uint64
}

type DocumentsMeta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

type SignResult struct {
	DocumentID uint64
	Recipient  domain.Recipient
	Completed  bool
}

// withRows loads what a dashboard row needs. The binary reference stays out
// of listings since they are cached as a whole.
func withRows(db *gorm.DB) *gorm.DB {
	return db.
		Preload("User").
		Preload("Team").
		Preload("Recipients", func(db *gorm.DB) *gorm.DB {
			return db.Order("recipients.id ASC")
		})
}

func withDetails(db *gorm.DB) *gorm.DB {
	return withRows(db).Preload("DocumentData")
}

func visibleTo(filter ListFilter) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if filter.TeamID != nil {
			return db.Where("documents.team_id = ?", *filter.TeamID)
		}
		received := db.Session(&gorm.Session{NewDB: true}).
			Model(&domain.Recipient{}).
			Select("document_id").
			Where("LOWER(email) = ?", strings.ToLower(filter.Email))
		return db.Where(
			db.Session(&gorm.Session{NewDB: true}).
				Where("documents.user_id = ? AND documents.team_id IS NULL", filter.UserID).
				Or("documents.id IN (?)", received),
		)
	}
}

func (r *DocumentRepositoryImpl) Create(ctx context.Context, document *domain.Document) error {
	now := time.Now().UTC()
	document.CreatedAt = now
	document.UpdatedAt = now

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if document.DocumentData != nil {
			if err := tx.Create(document.DocumentData).Error; err != nil {
				return err
			}
			document.DocumentDataID = document.DocumentData.ID
		}
		return tx.Omit("DocumentData", "User", "Team").Create(document).Error
	})
}

func (r *DocumentRepositoryImpl) FindByID(ctx context.Context, id uint64) (*domain.Document, error) {
	var doc domain.Document
	if err := withDetails(r.db.WithContext(ctx)).First(&doc, id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepositoryImpl) FindByRecipientToken(ctx context.Context, token string) (*domain.Document, error) {
	var recipient domain.Recipient
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&recipient).Error; err != nil {
		return nil, err
	}
	return r.FindByID(ctx, recipient.DocumentID)
}

func (r *DocumentRepositoryImpl) ListVisible(ctx context.Context, filter ListFilter, page, pageSize int) ([]domain.Document, DocumentsMeta, error) {
	var documents []domain.Document
	var totalRecords int64

	base := r.db.WithContext(ctx).Model(&domain.Document{}).Scopes(visibleTo(filter))

	// Count total records
	if err := base.Count(&totalRecords).Error; err != nil {
		return documents, DocumentsMeta{}, err
	}

	offset := (page - 1) * pageSize
	err := withRows(r.db.WithContext(ctx)).
		Scopes(visibleTo(filter)).
		Order("documents.created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&documents).Error

	totalPages := int((totalRecords + int64(pageSize) - 1) / int64(pageSize))

	return documents, DocumentsMeta{
		Total:       totalRecords,
		PerPage:     pageSize,
		TotalPage:   totalPages,
		CurrentPage: page,
	}, err
}

// Send moves a draft to pending and stores its recipients.
func (r *DocumentRepositoryImpl) Send(ctx context.Context, docID uint64, recipients []domain.Recipient) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Document{}).
			Where("id = ? AND status = ?", docID, domain.DocumentStatusDraft).
			Updates(map[string]any{
				"status":     domain.DocumentStatusPending,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStateChanged
		}

		for i := range recipients {
			recipients[i].DocumentID = docID
		}
		return tx.Create(&recipients).Error
	})
}

// MarkRecipientSigned records the response of the recipient holding token.
// The document completes once no signer or approver is left to respond.
func (r *DocumentRepositoryImpl) MarkRecipientSigned(ctx context.Context, token string, at time.Time) (*SignResult, error) {
	var result SignResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipient domain.Recipient
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token = ?", token).
			First(&recipient).Error; err != nil {
			return err
		}
		if recipient.HasSigned() {
			return ErrAlreadySigned
		}

		var doc domain.Document
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "status").
			First(&doc, recipient.DocumentID).Error; err != nil {
			return err
		}
		if doc.Status != domain.DocumentStatusPending {
			return ErrStateChanged
		}

		recipient.SigningStatus = domain.SigningStatusSigned
		recipient.SignedAt = &at
		if err := tx.Model(&recipient).Updates(map[string]any{
			"signing_status": recipient.SigningStatus,
			"signed_at":      at,
		}).Error; err != nil {
			return err
		}

		var pending int64
		if err := tx.Model(&domain.Recipient{}).
			Where("document_id = ? AND role IN ? AND signing_status <> ?",
				doc.ID,
				[]domain.RecipientRole{domain.RoleSigner, domain.RoleApprover},
				domain.SigningStatusSigned).
			Count(&pending).Error; err != nil {
			return err
		}

		result = SignResult{DocumentID: doc.ID, Recipient: recipient}
		if pending > 0 {
			return nil
		}

		if err := tx.Model(&domain.Document{}).
			Where("id = ?", doc.ID).
			Updates(map[string]any{
				"status":       domain.DocumentStatusCompleted,
				"completed_at": at,
				"updated_at":   at,
			}).Error; err != nil {
			return err
		}
		result.Completed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete removes a draft together with its binary reference.
func (r *DocumentRepositoryImpl) Delete(ctx context.Context, docID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc domain.Document
		if err := tx.Select("id", "status", "document_data_id").First(&doc, docID).Error; err != nil {
			return err
		}
		if doc.Status != domain.DocumentStatusDraft {
			return ErrStateChanged
		}

		if err := tx.Where("document_id = ?", docID).Delete(&domain.Recipient{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", docID).Delete(&domain.DocumentShareLink{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&domain.Document{}, docID).Error; err != nil {
			return err
		}
		if doc.DocumentDataID != "" {
			return tx.Delete(&domain.DocumentData{}, "id = ?", doc.DocumentDataID).Error
		}
		return nil
	})
}

func (r *DocumentRepositoryImpl) CreateTemplate(ctx context.Context, template *domain.Template, data *domain.DocumentData) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(data).Error; err != nil {
			return err
		}
		template.TemplateDocumentDataID = data.ID
		return tx.Create(template).Error
	})
}
