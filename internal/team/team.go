// Package team resolves the team a request is scoped to.
package team

import (
	"context"
	defError "errors"
	"esign-dashboard/internal/domain"
	"esign-dashboard/internal/errors"

	"gorm.io/gorm"
)

type Repository interface {
	FindByURL(ctx context.Context, url string) (*domain.Team, error)
	IsMember(ctx context.Context, teamID, userID uint64) (bool, error)
	ListForUser(ctx context.Context, userID uint64) ([]domain.Team, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) FindByURL(ctx context.Context, url string) (*domain.Team, error) {
	var team domain.Team
	if err := r.db.WithContext(ctx).Where("url = ?", url).First(&team).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *RepositoryImpl) IsMember(ctx context.Context, teamID, userID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.TeamMember{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *RepositoryImpl) ListForUser(ctx context.Context, userID uint64) ([]domain.Team, error) {
	var teams []domain.Team
	err := r.db.WithContext(ctx).
		Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.user_id = ?", userID).
		Order("teams.name ASC").
		Find(&teams).Error
	return teams, err
}

type Service interface {
	ResolveForUser(ctx context.Context, url string, userID uint64) (*domain.Team, error)
	IsMember(ctx context.Context, teamID, userID uint64) (bool, error)
	ListForUser(ctx context.Context, userID uint64) ([]domain.Team, error)
}

type DefaultService struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &DefaultService{repo: repo}
}

// ResolveForUser returns nil for an empty url, the personal scope.
func (s *DefaultService) ResolveForUser(ctx context.Context, url string, userID uint64) (*domain.Team, error) {
	if url == "" {
		return nil, nil
	}

	team, err := s.repo.FindByURL(ctx, url)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrNotFound(err).WithMessage("Team not found")
		}
		return nil, errors.ErrInternalServer(err)
	}

	ok, err := s.repo.IsMember(ctx, team.ID, userID)
	if err != nil {
		return nil, errors.ErrInternalServer(err)
	}
	if !ok {
		return nil, errors.ErrForbidden(nil).WithMessage("You are not a member of this team")
	}
	return team, nil
}

func (s *DefaultService) IsMember(ctx context.Context, teamID, userID uint64) (bool, error) {
	return s.repo.IsMember(ctx, teamID, userID)
}

func (s *DefaultService) ListForUser(ctx context.Context, userID uint64) ([]domain.Team, error) {
	teams, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, errors.ErrInternalServer(err)
	}
	return teams, nil
}
