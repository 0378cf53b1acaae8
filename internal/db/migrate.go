package db

import (
	"context"
	"errors"
	"esign-dashboard/internal/domain"
	"esign-dashboard/internal/user"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.User{},
		&domain.Team{},
		&domain.TeamMember{},
		&domain.DocumentData{},
		&domain.Document{},
		&domain.Recipient{},
		&domain.DocumentShareLink{},
		&domain.Template{},
		&domain.DocumentAuditLog{},
	)
	if err != nil {
		return err
	}

	log.Info().Msg("Database schema migrated successfully")
	return nil
}

// SeedData seeds the database with a test user and team (for development only)
func SeedData(db *gorm.DB) {
	ctx := context.Background()
	userRepo := user.NewRepository(db)

	testUser := &domain.User{
		Name:     "Test User",
		Email:    "test@example.com",
		Password: "password123",
		IsActive: true,
	}

	existing, err := userRepo.FindByEmail(ctx, testUser.Email)
	switch {
	case err == nil:
		testUser = existing
		log.Info().Str("email", testUser.Email).Msg("Test user already exists")
	case errors.Is(err, gorm.ErrRecordNotFound):
		userService := user.NewService(userRepo)
		if err := userService.Register(ctx, testUser); err != nil {
			log.Error().Err(err).Msg("Error creating test user")
			return
		}
		log.Info().Str("email", testUser.Email).Msg("Created test user")
	default:
		log.Error().Err(err).Msg("Error looking up test user")
		return
	}

	team := domain.Team{URL: "test-team", Name: "Test Team"}
	if err := db.Where(domain.Team{URL: team.URL}).FirstOrCreate(&team).Error; err != nil {
		log.Error().Err(err).Msg("Error creating test team")
		return
	}

	member := domain.TeamMember{TeamID: team.ID, UserID: testUser.ID, Role: "ADMIN"}
	if err := db.Where(domain.TeamMember{TeamID: team.ID, UserID: testUser.ID}).FirstOrCreate(&member).Error; err != nil {
		log.Error().Err(err).Msg("Error adding test user to team")
	}
}
