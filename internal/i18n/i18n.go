// Package i18n resolves user-facing labels by key for the dashboard locales.
package i18n

import (
	"github.com/go-playground/locales"
	"github.com/go-playground/locales/de"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/fr"
	ut "github.com/go-playground/universal-translator"
	"golang.org/x/text/language"
)

const DefaultLocale = "en"

var messages = map[string]map[string]string{
	"en": {
		"edit": "Edit",
		"sign": "Sign",
		"approve": "Approve",
		"view": "View",
		"download": "Download",
		"share": "Share",
		"save-as-template": "Save as Template",
		"delete": "Delete",
		"something-went-wrong": "Something went wrong",
		"no-document-available": "No document available",
		"an-error-occurred-while-downloading-your-document": "An error occurred while downloading your document.",
		"an-error-occurred-while-creating-share-link": "We encountered an error while creating the share link. Please try again later.",
	},
	"de": {
		"edit": "Bearbeiten",
		"sign": "Unterschreiben",
		"approve": "Genehmigen",
		"view": "Ansehen",
		"download": "Herunterladen",
		"share": "Teilen",
		"save-as-template": "Als Vorlage speichern",
		"delete": "Löschen",
		"something-went-wrong": "Etwas ist schiefgelaufen",
		"no-document-available": "Kein Dokument verfügbar",
		"an-error-occurred-while-downloading-your-document": "Beim Herunterladen Ihres Dokuments ist ein Fehler aufgetreten.",
		"an-error-occurred-while-creating-share-link": "Beim Erstellen des Freigabelinks ist ein Fehler aufgetreten.",
	},
	"fr": {
		"edit": "Modifier",
		"sign": "Signer",
		"approve": "Approuver",
		"view": "Voir",
		"download": "Télécharger",
		"share": "Partager",
		"save-as-template": "Enregistrer comme modèle",
		"delete": "Supprimer",
		"something-went-wrong": "Une erreur s'est produite",
		"no-document-available": "Aucun document disponible",
		"an-error-occurred-while-downloading-your-document": "Une erreur est survenue lors du téléchargement de votre document.",
		"an-error-occurred-while-creating-share-link": "Une erreur est survenue lors de la création du lien de partage.",
	},
}

// Translator looks up a label by key. Missing keys come back unchanged.
type Translator interface {
	T(key string) string
}

type Bundle struct {
	uni *ut.UniversalTranslator
}

func NewBundle() (*Bundle, error) {
	fallback := en.New()
	uni := ut.New(fallback, fallback, de.New(), fr.New())

	for _, l := range []locales.Translator{fallback, de.New(), fr.New()} {
		trans, _ := uni.GetTranslator(l.Locale())
		for key, text := range messages[l.Locale()] {
			if err := trans.Add(key, text, false); err != nil {
				return nil, err
			}
		}
	}

	return &Bundle{uni: uni}, nil
}

// For picks the first supported locale, falling back to English.
func (b *Bundle) For(preferred ...string) Translator {
	trans, _ := b.uni.FindTranslator(preferred...)
	return translator{trans: trans}
}

// FromAcceptLanguage reads an Accept-Language header value.
func (b *Bundle) FromAcceptLanguage(header string) Translator {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return b.For(DefaultLocale)
	}

	preferred := make([]string, 0, len(tags))
	for _, tag := range tags {
		base, _ := tag.Base()
		preferred = append(preferred, base.String())
	}
	return b.For(preferred...)
}

type translator struct {
	trans ut.Translator
}

func (t translator) T(key string) string {
	text, err := t.trans.T(key)
	if err != nil || text == "" {
		return key
	}
	return text
}

func (t translator) Locale() string {
	return t.trans.Locale()
}
