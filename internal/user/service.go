package user

import (
	"context"
	defError "errors"
	"esign-dashboard/internal/domain"
	"esign-dashboard/internal/errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Service defines the interface for user business logic
type Service interface {
	Register(ctx context.Context, user *domain.User) error
	Login(ctx context.Context, email, password string) (*domain.User, error)
	GetUserByID(ctx context.Context, id uint64) (*domain.User, error)
	IncreaseTokenVersion(ctx context.Context, id uint64) error
}

type DefaultService struct {
	repository UserRepository
}

func NewService(repository UserRepository) Service {
	return &DefaultService{repository: repository}
}

func (s *DefaultService) Register(ctx context.Context, user *domain.User) error {
	user.Email = strings.TrimSpace(user.Email)

	_, err := s.repository.FindByEmail(ctx, user.Email)
	if err != nil && !defError.Is(err, gorm.ErrRecordNotFound) {
		return errors.ErrInternalServer(err)
	}
	if err == nil {
		return errors.ErrConflict(nil).WithMessage("User already registered")
	}

	// Hash the password before saving
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.ErrUnprocessableEntity(err).WithMessage("Invalid password")
	}
	user.PasswordHash = string(hashedPassword)
	user.Password = ""
	user.IsActive = true

	if err := s.repository.Create(ctx, user); err != nil {
		if defError.Is(err, gorm.ErrDuplicatedKey) {
			return errors.ErrConflict(err).WithMessage("User already registered")
		}
		return errors.ErrInternalServer(err)
	}
	return nil
}

func (s *DefaultService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.repository.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUnauthorized(err).WithMessage("Invalid email or password")
		}
		return nil, errors.ErrInternalServer(err)
	}

	if !user.IsActive {
		return nil, errors.ErrUnauthorized(nil).WithMessage("User is not active")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.ErrUnauthorized(err).WithMessage("Invalid email or password")
	}

	return user, nil
}

func (s *DefaultService) GetUserByID(ctx context.Context, id uint64) (*domain.User, error) {
	user, err := s.repository.FindByID(ctx, id)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrNotFound(err).WithMessage("User not found")
		}
		return nil, errors.ErrInternalServer(err)
	}
	return user, nil
}

// IncreaseTokenVersion invalidates every token issued so far.
func (s *DefaultService) IncreaseTokenVersion(ctx context.Context, id uint64) error {
	return s.repository.IncreaseTokenVersion(ctx, id)
}
