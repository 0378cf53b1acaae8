package user

import (
	"bytes"
	"context"
	"encoding/json"
	"esign-dashboard/internal/auth"
	"esign-dashboard/internal/domain"
	"esign-dashboard/internal/errors"
	"esign-dashboard/internal/middleware"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockService is a mock implementation of the Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) Register(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockService) GetUserByID(ctx context.Context, id uint64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockService) IncreaseTokenVersion(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandler())
	return router
}

func newHandler(service Service) *Handler {
	return NewHandler(service, auth.NewTokenIssuer("test-secret", time.Hour))
}

func postJSON(router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRegister_Success(t *testing.T) {
	mockService := new(MockService)
	handler := newHandler(mockService)
	router := setupRouter()
	router.POST("/register", handler.Register)

	mockService.On("Register", mock.Anything, mock.MatchedBy(func(user *domain.User) bool {
		return user.Name == "John Doe" &&
			user.Email == "john@example.com" &&
			user.Password == "password123"
	})).Return(nil).Run(func(args mock.Arguments) {
		user := args.Get(1).(*domain.User)
		user.ID = 1
		user.CreatedAt = time.Now()
	})

	w := postJSON(router, "/register", FormRegister{
		Name:     "John Doe",
		Email:    "john@example.com",
		Password: "password123",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	var response map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, float64(1), response["user"]["id"])
	assert.NotContains(t, w.Body.String(), "password")
	mockService.AssertExpectations(t)
}

func TestRegister_InvalidInput(t *testing.T) {
	mockService := new(MockService)
	handler := newHandler(mockService)
	router := setupRouter()
	router.POST("/register", handler.Register)

	w := postJSON(router, "/register", gin.H{"name": "John", "email": "not-an-email", "password": "123"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, errors.KindValidation, response["code"])
	fields := response["fields"].(map[string]any)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
	mockService.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestRegister_AlreadyExists(t *testing.T) {
	mockService := new(MockService)
	handler := newHandler(mockService)
	router := setupRouter()
	router.POST("/register", handler.Register)

	mockService.On("Register", mock.Anything, mock.Anything).
		Return(errors.ErrConflict(nil).WithMessage("User already registered"))

	w := postJSON(router, "/register", FormRegister{Name: "A", Email: "a@example.com", Password: "password123"})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin_Success(t *testing.T) {
	mockService := new(MockService)
	handler := newHandler(mockService)
	router := setupRouter()
	router.POST("/login", handler.Login)

	user := &domain.User{ID: 1, Name: "John Doe", Email: "john@example.com", TokenVersion: 4, IsActive: true}
	mockService.On("Login", mock.Anything, "john@example.com", "password123").Return(user, nil)

	w := postJSON(router, "/login", FormLogin{Email: "john@example.com", Password: "password123"})

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	token, ok := response["access_token"].(string)
	require.True(t, ok)

	parsed, err := handler.tokens.VerifyJWT(token)
	require.NoError(t, err)
	userID, version, err := auth.GetDataFromToken(parsed)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), userID)
	assert.Equal(t, uint64(4), version)
	mockService.AssertExpectations(t)
}

func TestLogin_WrongPassword(t *testing.T) {
	mockService := new(MockService)
	handler := newHandler(mockService)
	router := setupRouter()
	router.POST("/login", handler.Login)

	mockService.On("Login", mock.Anything, "john@example.com", "wrong").
		Return(nil, errors.ErrUnauthorized(nil).WithMessage("Invalid email or password"))

	w := postJSON(router, "/login", FormLogin{Email: "john@example.com", Password: "wrong"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockService.AssertExpectations(t)
}

func TestLogout_BumpsTokenVersion(t *testing.T) {
	mockService := new(MockService)
	handler := newHandler(mockService)
	router := setupRouter()
	router.POST("/logout", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, uint64(3))
		handler.Logout(c)
	})

	mockService.On("IncreaseTokenVersion", mock.Anything, uint64(3)).Return(nil)

	w := postJSON(router, "/logout", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockService.AssertExpectations(t)
}

func TestGetProfile_Success(t *testing.T) {
	mockService := new(MockService)
	handler := newHandler(mockService)
	router := setupRouter()

	user := &domain.User{
		ID:        1,
		Name:      "John Doe",
		Email:     "john@example.com",
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	mockService.On("GetUserByID", mock.Anything, uint64(1)).Return(user, nil)

	router.GET("/profile", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, uint64(1))
		handler.GetProfile(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response domain.SafeUser
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "John Doe", response.Name)
	assert.Equal(t, "john@example.com", response.Email)
	mockService.AssertExpectations(t)
}

func TestGetProfile_NoUserID(t *testing.T) {
	mockService := new(MockService)
	handler := newHandler(mockService)
	router := setupRouter()
	router.GET("/profile", handler.GetProfile)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetProfile_UserNotFound(t *testing.T) {
	mockService := new(MockService)
	handler := newHandler(mockService)
	router := setupRouter()

	mockService.On("GetUserByID", mock.Anything, uint64(999)).Return(nil, errors.ErrNotFound(nil).WithMessage("User not found"))

	router.GET("/profile", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, uint64(999))
		handler.GetProfile(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockService.AssertExpectations(t)
}
