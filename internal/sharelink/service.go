// Package sharelink hands out stable public links to documents.
package sharelink

import (
	"context"
	defError "errors"
	"esign-dashboard/internal/action"
	"esign-dashboard/internal/domain"
	"esign-dashboard/internal/errors"
	"esign-dashboard/redis"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const slugLength = 26

type TeamMembership interface {
	IsMember(ctx context.Context, teamID, userID uint64) (bool, error)
}

// SharePage is what an anonymous visitor of a share link gets to see.
type SharePage struct {
	Slug        string                `json:"slug"`
	Title       string                `json:"title"`
	Status      domain.DocumentStatus `json:"status"`
	SenderName  string                `json:"sender_name"`
	SenderEmail string                `json:"sender_email"`
	SharedWith  string                `json:"shared_with"`
	CreatedAt   time.Time             `json:"created_at"`
}

type Service interface {
	CreateOrGetLink(ctx context.Context, req action.ShareRequest) (string, error)
	GetBySlug(ctx context.Context, slug string) (*SharePage, error)
}

type DefaultService struct {
	repo      Repository
	documents action.DocumentStore
	teams     TeamMembership
	cache     *redis.Cache
	cacheTTL  time.Duration
	publicURL string
}

func NewService(repo Repository, documents action.DocumentStore, teams TeamMembership, cache *redis.Cache, cacheTTL time.Duration, publicURL string) *DefaultService {
	return &DefaultService{
		repo:      repo,
		documents: documents,
		teams:     teams,
		cache:     cache,
		cacheTTL:  cacheTTL,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (s *DefaultService) CreateOrGetLink(ctx context.Context, req action.ShareRequest) (string, error) {
	email, err := s.authorize(ctx, req)
	if err != nil {
		return "", err
	}

	cacheKey := fmt.Sprintf("share:doc:%d:email:%s", req.DocumentID, email)
	var slug string
	if found, _ := s.cache.Get(ctx, cacheKey, &slug); found && slug != "" {
		return s.linkFor(slug), nil
	}

	link, err := s.repo.FindByDocumentAndEmail(ctx, req.DocumentID, email)
	if err != nil {
		return "", errors.ErrInternalServer(err)
	}
	if link == nil {
		link, err = s.repo.CreateIfAbsent(ctx, &domain.DocumentShareLink{
			Slug:       newSlug(),
			Email:      email,
			DocumentID: req.DocumentID,
		})
		if err != nil {
			return "", errors.ErrInternalServer(err)
		}
		log.Info().Uint64("document_id", req.DocumentID).Str("slug", link.Slug).Msg("share link created")
	}

	_ = s.cache.Set(ctx, cacheKey, link.Slug, s.cacheTTL)
	return s.linkFor(link.Slug), nil
}

// authorize returns the email the link is issued for.
func (s *DefaultService) authorize(ctx context.Context, req action.ShareRequest) (string, error) {
	if req.Token != "" {
		doc, err := s.documents.GetDocumentByToken(ctx, req.Token)
		if err != nil {
			return "", errors.ErrInternalServer(err)
		}
		if doc == nil || doc.ID != req.DocumentID {
			return "", errors.ErrNotFound(nil).WithMessage("Document not found")
		}
		recipient := doc.RecipientByToken(req.Token)
		if recipient == nil {
			return "", errors.ErrNotFound(nil).WithMessage("Document not found")
		}
		return strings.ToLower(recipient.Email), nil
	}

	if req.UserID == 0 {
		return "", errors.ErrUnauthorized(nil).WithMessage("Sign in to share this document")
	}

	doc, err := s.documents.GetDocumentByID(ctx, req.DocumentID, nil)
	if err != nil {
		return "", errors.ErrInternalServer(err)
	}
	if doc == nil {
		return "", errors.ErrNotFound(nil).WithMessage("Document not found")
	}

	if !doc.IsOwnedBy(req.UserID) {
		if doc.TeamID == nil {
			return "", errors.ErrForbidden(nil).WithMessage("You cannot share this document")
		}
		member, err := s.teams.IsMember(ctx, *doc.TeamID, req.UserID)
		if err != nil {
			return "", errors.ErrInternalServer(err)
		}
		if !member {
			return "", errors.ErrForbidden(nil).WithMessage("You cannot share this document")
		}
	}
	return strings.ToLower(req.Email), nil
}

func (s *DefaultService) GetBySlug(ctx context.Context, slug string) (*SharePage, error) {
	link, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrNotFound(err).WithMessage("Share link not found")
		}
		return nil, errors.ErrInternalServer(err)
	}

	doc, err := s.documents.GetDocumentByID(ctx, link.DocumentID, nil)
	if err != nil {
		return nil, errors.ErrInternalServer(err)
	}
	if doc == nil {
		return nil, errors.ErrNotFound(nil).WithMessage("Share link not found")
	}

	return &SharePage{
		Slug:        link.Slug,
		Title:       doc.Title,
		Status:      doc.Status,
		SenderName:  doc.User.Name,
		SenderEmail: doc.User.Email,
		SharedWith:  link.Email,
		CreatedAt:   link.CreatedAt,
	}, nil
}

func (s *DefaultService) linkFor(slug string) string {
	return s.publicURL + "/share/" + slug
}

func newSlug() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:slugLength]
}
