package middleware

import (
	"errors"
	appError "esign-dashboard/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Toast struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant"`
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Toast   Toast             `json:"toast"`
}

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next() // Execute the handler first

		// detect any errors
		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err

			var appErr *appError.AppError

			// if it's our custom AppError
			if !errors.As(err, &appErr) {
				// If it's a raw error we didn't wrap, treat as Internal
				appErr = appError.ErrInternalServer(err)
			}

			if appErr.Code >= 500 {
				log.Error().Err(appErr.Err).Str("code", appErr.Kind).Str("path", c.FullPath()).Msg(appErr.Message)
			} else {
				log.Info().Err(appErr.Err).Str("code", appErr.Kind).Str("path", c.FullPath()).Msg(appErr.Message)
			}

			t := Translator(c)
			c.AbortWithStatusJSON(appErr.Code, errorResponse{
				Code:    appErr.Kind,
				Message: appErr.Message,
				Fields:  appErr.Fields,
				Toast: Toast{
					Title:       t.T("something-went-wrong"),
					Description: t.T(appErr.Message),
					Variant:     "destructive",
				},
			})
		}
	}
}
