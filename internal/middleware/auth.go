package middleware

import (
	"context"
	"esign-dashboard/internal/auth"
	"esign-dashboard/internal/domain"
	"esign-dashboard/internal/errors"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID    = "user_id"
	ContextUserEmail = "user_email"
)

type UserProvider interface {
	GetUserByID(ctx context.Context, id uint64) (*domain.User, error)
}

type Auth struct {
	UserService    UserProvider
	Tokens         *auth.TokenIssuer
	InternalSecret string
}

// AuthMiddleWare rejects requests without a valid session.
func (m *Auth) AuthMiddleWare() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := bearerToken(ctx)
		if token == "" {
			ctx.Error(errors.ErrUnauthorized(nil).WithMessage("Authorization is not found!"))
			ctx.Abort()
			return
		}

		user, appErr := m.authenticate(ctx.Request.Context(), token)
		if appErr != nil {
			ctx.Error(appErr)
			ctx.Abort()
			return
		}

		setUser(ctx, user)
		ctx.Next()
	}
}

// OptionalAuth attaches the user when the token checks out and lets
// anonymous requests through otherwise.
func (m *Auth) OptionalAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if token := bearerToken(ctx); token != "" {
			if user, appErr := m.authenticate(ctx.Request.Context(), token); appErr == nil {
				setUser(ctx, user)
			}
		}
		ctx.Next()
	}
}

func (m *Auth) authenticate(ctx context.Context, token string) (*domain.User, *errors.AppError) {
	parsedToken, err := m.Tokens.VerifyJWT(token)
	if err != nil {
		return nil, errors.ErrUnauthorized(err).WithMessage("Invalid token!")
	}

	userID, tokenVersion, err := auth.GetDataFromToken(parsedToken)
	if err != nil {
		return nil, errors.ErrUnauthorized(err).WithMessage("Invalid token!")
	}

	user, err := m.UserService.GetUserByID(ctx, userID)
	if err != nil {
		return nil, errors.ErrUnauthorized(err).WithMessage("Invalid User ID!")
	}
	if !user.IsActive {
		return nil, errors.ErrUnauthorized(nil).WithMessage("User is disabled!")
	}

	// Check token version
	if user.TokenVersion != tokenVersion {
		return nil, errors.ErrUnauthorized(nil).WithMessage("Invalid token version!")
	}
	return user, nil
}

func (m *Auth) InternalAuthMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := strings.TrimPrefix(
			ctx.GetHeader("Authorization"),
			"Bearer ",
		)

		if m.InternalSecret == "" || token != m.InternalSecret {
			ctx.Error(errors.ErrUnauthorized(nil).WithMessage("Unauthorized internal call!"))
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}

// CurrentUser returns the session user set by one of the auth middlewares.
func CurrentUser(ctx *gin.Context) (uint64, string, bool) {
	id := ctx.GetUint64(ContextUserID)
	if id == 0 {
		return 0, "", false
	}
	return id, ctx.GetString(ContextUserEmail), true
}

func bearerToken(ctx *gin.Context) string {
	if authHeader := ctx.GetHeader("Authorization"); authHeader != "" {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ctx.Query("token")
}

func setUser(ctx *gin.Context, user *domain.User) {
	ctx.Set(ContextUserID, user.ID)
	ctx.Set(ContextUserEmail, user.Email)
}
