package document

import (
	"context"
	defError "errors"
	"esign-dashboard/internal/action"
	"esign-dashboard/internal/domain"
	"esign-dashboard/internal/errors"
	"esign-dashboard/internal/storage"
	"esign-dashboard/redis"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const auditLogLimit = 100

type Service interface {
	ListDocuments(ctx context.Context, viewer action.Viewer, teamURL string, page, pageSize int) (*DocumentPage, *domain.Team, error)
	GetSubject(ctx context.Context, viewer action.Viewer, docID uint64, teamURL string) (action.Subject, error)
	CreateDraft(ctx context.Context, viewer action.Viewer, teamURL string, upload Upload) (*domain.Document, error)
	SendDocument(ctx context.Context, viewer action.Viewer, docID uint64, teamURL string, recipients []RecipientInput) (*domain.Document, error)
	MarkRecipientSigned(ctx context.Context, token string) (*SignResult, error)
	DeleteDraft(ctx context.Context, viewer action.Viewer, docID uint64, teamURL string) error
	SaveAsTemplate(ctx context.Context, viewer action.Viewer, docID uint64, teamURL string) (*domain.Template, error)
	ListAuditLogs(ctx context.Context, viewer action.Viewer, docID uint64, teamURL string) ([]domain.DocumentAuditLog, error)
}

type TeamResolver interface {
	ResolveForUser(ctx context.Context, url string, userID uint64) (*domain.Team, error)
	IsMember(ctx context.Context, teamID, userID uint64) (bool, error)
}

type FileStorage interface {
	PutFile(ctx context.Context, fileName string, content []byte) (*domain.DocumentData, error)
	Copy(ctx context.Context, data *domain.DocumentData) (*domain.DocumentData, error)
}

type AuditLogReader interface {
	ListByDocument(ctx context.Context, docID uint64, limit int) ([]domain.DocumentAuditLog, error)
}

type DefaultService struct {
	repository DocumentRepository
	teams      TeamResolver
	files      FileStorage
	audit      action.AuditRecorder
	auditLogs  AuditLogReader
	cache      *redis.Cache
	cacheTTL   time.Duration
	pageCount  func([]byte) (int, error)
	now        func() time.Time
}

func NewService(
	repository DocumentRepository,
	teams TeamResolver,
	files FileStorage,
	audit action.AuditRecorder,
	auditLogs AuditLogReader,
	cache *redis.Cache,
	cacheTTL time.Duration,
) *DefaultService {
	return &DefaultService{
		repository: repository,
		teams:      teams,
		files:      files,
		audit:      audit,
		auditLogs:  auditLogs,
		cache:      cache,
		cacheTTL:   cacheTTL,
		pageCount:  storage.PageCount,
		now:        time.Now,
	}
}

// DocumentPage is the cacheable part of a dashboard listing. Controls are
// resolved per request on top of it.
type DocumentPage struct {
	Documents []domain.Document `json:"documents"`
	Meta      DocumentsMeta     `json:"meta"`
}

type Upload struct {
	Title    string
	FileName string
	Content  []byte
}

type RecipientInput struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"max=255"`
	Role  string `json:"role" binding:"required"`
}

func (s *DefaultService) ListDocuments(ctx context.Context, viewer action.Viewer, teamURL string, page, pageSize int) (*DocumentPage, *domain.Team, error) {
	team, err := s.teams.ResolveForUser(ctx, teamURL, viewer.UserID)
	if err != nil {
		return nil, nil, err
	}

	filter := ListFilter{UserID: viewer.UserID, Email: viewer.Email}
	var cacheKey string
	if team != nil {
		filter.TeamID = &team.ID
		v := s.cache.GetVersion(ctx, teamVersionKey(team.ID))
		cacheKey = fmt.Sprintf("docs:t:%d:v:%d:p:%d:ps:%d", team.ID, v, page, pageSize)
	} else {
		uv := s.cache.GetVersion(ctx, userVersionKey(viewer.UserID))
		ev := s.cache.GetVersion(ctx, emailVersionKey(viewer.Email))
		cacheKey = fmt.Sprintf("docs:u:%d:uv:%d:ev:%d:p:%d:ps:%d", viewer.UserID, uv, ev, page, pageSize)
	}

	var result DocumentPage
	// get data from cache
	if found, _ := s.cache.Get(ctx, cacheKey, &result); found {
		return &result, team, nil
	}

	documents, meta, err := s.repository.ListVisible(ctx, filter, page, pageSize)
	if err != nil {
		return nil, nil, errors.ErrInternalServer(err)
	}
	result = DocumentPage{Documents: documents, Meta: meta}
	_ = s.cache.Set(ctx, cacheKey, result, s.cacheTTL)

	return &result, team, nil
}

// GetSubject loads a document the viewer may see. Documents the viewer has
// no relation to are reported as not found.
func (s *DefaultService) GetSubject(ctx context.Context, viewer action.Viewer, docID uint64, teamURL string) (action.Subject, error) {
	team, err := s.teams.ResolveForUser(ctx, teamURL, viewer.UserID)
	if err != nil {
		return action.Subject{}, err
	}

	doc, err := s.repository.FindByID(ctx, docID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return action.Subject{}, errors.ErrNotFound(err).WithMessage("Document not found")
		}
		return action.Subject{}, errors.ErrInternalServer(err)
	}

	subject := action.Subject{Viewer: &viewer, Document: doc, Team: team}
	if subject.IsOwner() || subject.Recipient() != nil {
		return subject, nil
	}

	member, err := s.isTeamMember(ctx, doc, viewer.UserID)
	if err != nil {
		return action.Subject{}, err
	}
	if !member {
		return action.Subject{}, errors.ErrNotFound(nil).WithMessage("Document not found")
	}
	return subject, nil
}

func (s *DefaultService) CreateDraft(ctx context.Context, viewer action.Viewer, teamURL string, upload Upload) (*domain.Document, error) {
	team, err := s.teams.ResolveForUser(ctx, teamURL, viewer.UserID)
	if err != nil {
		return nil, err
	}

	pages, err := s.pageCount(upload.Content)
	if err != nil {
		return nil, errors.ErrUnprocessableEntity(err).WithMessage("Invalid PDF file")
	}

	title := strings.TrimSpace(upload.Title)
	if title == "" {
		title = upload.FileName
	}

	data, err := s.files.PutFile(ctx, upload.FileName, upload.Content)
	if err != nil {
		return nil, errors.ErrInternalServer(err)
	}

	doc := &domain.Document{
		Title:        title,
		Status:       domain.DocumentStatusDraft,
		UserID:       viewer.UserID,
		DocumentData: data,
	}
	if team != nil {
		doc.TeamID = &team.ID
		doc.Team = team
	}

	if err := s.repository.Create(ctx, doc); err != nil {
		return nil, errors.ErrInternalServer(err)
	}

	s.record(doc.ID, viewer, domain.AuditDocumentCreated, fmt.Sprintf("pages=%d", pages))
	s.invalidate(ctx, doc)
	return doc, nil
}

func (s *DefaultService) SendDocument(ctx context.Context, viewer action.Viewer, docID uint64, teamURL string, inputs []RecipientInput) (*domain.Document, error) {
	subject, err := s.GetSubject(ctx, viewer, docID, teamURL)
	if err != nil {
		return nil, err
	}
	if !subject.IsOwner() {
		return nil, errors.ErrForbidden(nil).WithMessage("Only the owner can send this document")
	}
	if subject.Document.Status != domain.DocumentStatusDraft {
		return nil, errors.ErrConflict(nil).WithMessage("Document has already been sent")
	}

	recipients, err := buildRecipients(inputs)
	if err != nil {
		return nil, err
	}

	if err := s.repository.Send(ctx, docID, recipients); err != nil {
		if defError.Is(err, ErrStateChanged) {
			return nil, errors.ErrConflict(err).WithMessage("Document has already been sent")
		}
		return nil, errors.ErrInternalServer(err)
	}

	doc, err := s.repository.FindByID(ctx, docID)
	if err != nil {
		return nil, errors.ErrInternalServer(err)
	}

	s.record(docID, viewer, domain.AuditDocumentSent, fmt.Sprintf("recipients=%d", len(recipients)))
	s.invalidate(ctx, doc)
	return doc, nil
}

func buildRecipients(inputs []RecipientInput) ([]domain.Recipient, error) {
	if len(inputs) == 0 {
		return nil, errors.ErrUnprocessableEntity(nil).WithMessage("At least one recipient is required")
	}

	recipients := make([]domain.Recipient, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	needsAction := false

	for _, in := range inputs {
		email := strings.ToLower(strings.TrimSpace(in.Email))
		if seen[email] {
			return nil, errors.ErrUnprocessableEntity(nil).WithMessage("Duplicate recipient "+email)
		}
		seen[email] = true

		role := domain.ParseRecipientRole(in.Role)
		if !slices.Contains(domain.RecipientRoles, role) {
			return nil, errors.ErrUnprocessableEntity(nil).WithMessage("Unknown recipient role "+in.Role)
		}
		needsAction = needsAction || role.NeedsAction()

		recipients = append(recipients, domain.Recipient{
			Email:         email,
			Name:          strings.TrimSpace(in.Name),
			Role:          role,
			SigningStatus: domain.SigningStatusNotSigned,
			Token:         uuid.NewString(),
		})
	}

	if !needsAction {
		return nil, errors.ErrUnprocessableEntity(nil).WithMessage("At least one signer or approver is required")
	}
	return recipients, nil
}

func (s *DefaultService) MarkRecipientSigned(ctx context.Context, token string) (*SignResult, error) {
	result, err := s.repository.MarkRecipientSigned(ctx, token, s.now().UTC())
	if err != nil {
		switch {
		case defError.Is(err, gorm.ErrRecordNotFound):
			return nil, errors.ErrNotFound(err).WithMessage("Recipient not found")
		case defError.Is(err, ErrAlreadySigned):
			return nil, errors.ErrConflict(err).WithMessage("Recipient has already signed")
		case defError.Is(err, ErrStateChanged):
			return nil, errors.ErrConflict(err).WithMessage("Document is not awaiting signatures")
		}
		return nil, errors.ErrInternalServer(err)
	}

	s.audit.Record(domain.DocumentAuditLog{
		DocumentID: result.DocumentID,
		Type:       domain.AuditRecipientSigned,
		Email:      result.Recipient.Email,
		Data:       string(result.Recipient.Role),
	})
	if result.Completed {
		s.audit.Record(domain.DocumentAuditLog{
			DocumentID: result.DocumentID,
			Type:       domain.AuditDocumentCompleted,
		})
		log.Info().Uint64("document_id", result.DocumentID).Msg("document completed")
	}

	if doc, err := s.repository.FindByID(ctx, result.DocumentID); err == nil {
		s.invalidate(ctx, doc)
	} else {
		log.Warn().Err(err).Uint64("document_id", result.DocumentID).Msg("could not reload document for cache invalidation")
	}
	return result, nil
}

func (s *DefaultService) DeleteDraft(ctx context.Context, viewer action.Viewer, docID uint64, teamURL string) error {
	subject, err := s.GetSubject(ctx, viewer, docID, teamURL)
	if err != nil {
		return err
	}
	if !action.Allowed(subject, action.MenuDelete) {
		return errors.ErrForbidden(nil).WithMessage("Only drafts can be deleted by their owner")
	}

	if err := s.repository.Delete(ctx, docID); err != nil {
		if defError.Is(err, ErrStateChanged) {
			return errors.ErrConflict(err).WithMessage("Document has already been sent")
		}
		return errors.ErrInternalServer(err)
	}

	s.invalidate(ctx, subject.Document)
	return nil
}

func (s *DefaultService) SaveAsTemplate(ctx context.Context, viewer action.Viewer, docID uint64, teamURL string) (*domain.Template, error) {
	subject, err := s.GetSubject(ctx, viewer, docID, teamURL)
	if err != nil {
		return nil, err
	}
	if !action.Allowed(subject, action.MenuSaveAsTemplate) {
		return nil, errors.ErrForbidden(nil).WithMessage("This document cannot be saved as a template")
	}

	doc := subject.Document
	if doc.DocumentData == nil {
		return nil, errors.ErrContentUnavailable(nil)
	}

	data, err := s.files.Copy(ctx, doc.DocumentData)
	if err != nil {
		return nil, errors.ErrInternalServer(err)
	}

	template := &domain.Template{
		Title:  doc.Title,
		UserID: viewer.UserID,
		TeamID: doc.TeamID,
	}
	if err := s.repository.CreateTemplate(ctx, template, data); err != nil {
		return nil, errors.ErrInternalServer(err)
	}
	return template, nil
}

func (s *DefaultService) ListAuditLogs(ctx context.Context, viewer action.Viewer, docID uint64, teamURL string) ([]domain.DocumentAuditLog, error) {
	subject, err := s.GetSubject(ctx, viewer, docID, teamURL)
	if err != nil {
		return nil, err
	}

	if !subject.IsOwner() {
		member, err := s.isTeamMember(ctx, subject.Document, viewer.UserID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, errors.ErrForbidden(nil).WithMessage("Only the owner can see the history")
		}
	}

	logs, err := s.auditLogs.ListByDocument(ctx, docID, auditLogLimit)
	if err != nil {
		return nil, errors.ErrInternalServer(err)
	}
	return logs, nil
}

func (s *DefaultService) isTeamMember(ctx context.Context, doc *domain.Document, userID uint64) (bool, error) {
	if doc.TeamID == nil {
		return false, nil
	}
	member, err := s.teams.IsMember(ctx, *doc.TeamID, userID)
	if err != nil {
		return false, errors.ErrInternalServer(err)
	}
	return member, nil
}

func (s *DefaultService) record(docID uint64, viewer action.Viewer, typ domain.AuditLogType, data string) {
	userID := viewer.UserID
	s.audit.Record(domain.DocumentAuditLog{
		DocumentID: docID,
		Type:       typ,
		UserID:     &userID,
		Email:      viewer.Email,
		Data:       data,
	})
}

// invalidate bumps the list versions of everyone who can see doc.
func (s *DefaultService) invalidate(ctx context.Context, doc *domain.Document) {
	s.cache.IncrementVersion(ctx, userVersionKey(doc.UserID))
	if doc.TeamID != nil {
		s.cache.IncrementVersion(ctx, teamVersionKey(*doc.TeamID))
	}
	for _, r := range doc.Recipients {
		s.cache.IncrementVersion(ctx, emailVersionKey(r.Email))
	}
}

func userVersionKey(userID uint64) string {
	return fmt.Sprintf("user:%d:docs:version", userID)
}

func teamVersionKey(teamID uint64) string {
	return fmt.Sprintf("team:%d:docs:version", teamID)
}

func emailVersionKey(email string) string {
	return fmt.Sprintf("email:%s:docs:version", strings.ToLower(email))
}
