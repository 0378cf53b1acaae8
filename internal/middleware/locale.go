package middleware

import (
	"esign-dashboard/internal/i18n"

	"github.com/gin-gonic/gin"
)

const contextTranslator = "translator"

// Locale picks a translator from the lang query parameter or the
// Accept-Language header.
func Locale(bundle *i18n.Bundle) gin.HandlerFunc {
	return func(c *gin.Context) {
		var t i18n.Translator
		if lang := c.Query("lang"); lang != "" {
			t = bundle.For(lang)
		} else {
			t = bundle.FromAcceptLanguage(c.GetHeader("Accept-Language"))
		}
		c.Set(contextTranslator, t)
		c.Next()
	}
}

// Translator returns the request translator, or one that echoes keys when
// the Locale middleware is not installed.
func Translator(c *gin.Context) i18n.Translator {
	if v, ok := c.Get(contextTranslator); ok {
		if t, ok := v.(i18n.Translator); ok {
			return t
		}
	}
	return keyTranslator{}
}

type keyTranslator struct{}

func (keyTranslator) T(key string) string { return key }
