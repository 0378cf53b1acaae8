package utils

import (
	"esign-dashboard/internal/errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPaginationParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query    string
		page     int
		pageSize int
	}{
		{"", 1, 10},
		{"?page=3&per_page=25", 3, 25},
		{"?page=-1&per_page=1000", 1, 10},
		{"?page=abc", 1, 10},
	}

	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/documents"+tt.query, nil)

		page, pageSize := GetPaginationParams(c)
		assert.Equal(t, tt.page, page, tt.query)
		assert.Equal(t, tt.pageSize, pageSize, tt.query)
	}
}

func TestParseIDParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	c.Params = gin.Params{{Key: "id", Value: "42"}}
	id, err := ParseIDParam(c, "id")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	for _, v := range []string{"0", "x", "-3"} {
		c.Params = gin.Params{{Key: "id", Value: v}}
		_, err = ParseIDParam(c, "id")
		assert.ErrorIs(t, err, &errors.AppError{Kind: errors.KindBadRequest}, v)
	}
}
