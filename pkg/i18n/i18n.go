// Package i18n serves the ko/en labels of the category catalog and the
// user-facing API messages.
//
// The language is picked in this order:
//  1. Accept-Language header
//  2. the configured default (DEFAULT_LANGUAGE, "ko" when unset)
//
// Usage:
//
//	localizer := i18n.NewLocalizer("en")
//	label := localizer.T("category.curtain") // "Curtains"
package i18n

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"sync"
)

// SupportedLanguages lists the language codes with a locale file.
var SupportedLanguages = []string{"ko", "en"}

// DefaultLanguage is used when nothing else matches.
const DefaultLanguage = "ko"

// translations is map[lang]map[key]value. Written once by Load, read-only
// afterwards.
var (
	translations map[string]map[string]string
	loadOnce     sync.Once
	loadErr      error
)

// Load reads <lang>.json for every supported language from localesFS.
// Only the first call does any work; later calls return its result.
func Load(localesFS fs.FS) error {
	loadOnce.Do(func() {
		loaded := make(map[string]map[string]string)

		for _, lang := range SupportedLanguages {
			fileName := lang + ".json"

			data, err := fs.ReadFile(localesFS, fileName)
			if err != nil {
				loadErr = fmt.Errorf("failed to read translation file %s: %w", fileName, err)
				return
			}

			// {"auth": {"login": "..."}} → "auth.login"
			var nested map[string]any
			if err := json.Unmarshal(data, &nested); err != nil {
				loadErr = fmt.Errorf("failed to parse translation file %s: %w", fileName, err)
				return
			}

			flat := make(map[string]string)
			flattenMap("", nested, flat)
			loaded[lang] = flat

			log.Printf("[i18n] loaded %d keys for language: %s", len(flat), lang)
		}

		translations = loaded
	})

	return loadErr
}

// LoadEmbedded loads the locale files compiled into the binary.
func LoadEmbedded() error {
	sub, err := fs.Sub(EmbeddedLocales, "locales")
	if err != nil {
		return fmt.Errorf("failed to open embedded locales: %w", err)
	}
	return Load(sub)
}

// Localizer translates keys for one language.
type Localizer struct {
	lang string
}

// NewLocalizer returns a Localizer; unsupported languages fall back to
// DefaultLanguage.
func NewLocalizer(lang string) *Localizer {
	if !IsSupported(lang) {
		lang = DefaultLanguage
	}
	return &Localizer{lang: lang}
}

// Lang returns the resolved language code.
func (l *Localizer) Lang() string {
	return l.lang
}

// T returns the translation of key, then the DefaultLanguage one, then the
// key itself.
func (l *Localizer) T(key string) string {
	if msg, ok := translations[l.lang][key]; ok {
		return msg
	}
	if msg, ok := translations[DefaultLanguage][key]; ok {
		return msg
	}
	return key
}

// TWithParams replaces {{name}} placeholders in the translation.
//
//	localizer.TWithParams("upload.tooMany", map[string]string{"max": "10"})
func (l *Localizer) TWithParams(key string, params map[string]string) string {
	msg := l.T(key)
	for k, v := range params {
		msg = strings.ReplaceAll(msg, "{{"+k+"}}", v)
	}
	return msg
}

// CategoryLabel returns the label of a category slug.
func (l *Localizer) CategoryLabel(slug string) string {
	return l.T("category." + slug)
}

// SubcategoryLabel returns the label of a subcategory inside its category.
func (l *Localizer) SubcategoryLabel(category, slug string) string {
	return l.T("subcategory." + category + "." + slug)
}

// DetectLanguage picks the first supported language of an Accept-Language
// header ("en-US,en;q=0.9,ko;q=0.8"), or fallback.
func DetectLanguage(acceptLanguage, fallback string) string {
	if !IsSupported(fallback) {
		fallback = DefaultLanguage
	}
	if acceptLanguage == "" {
		return fallback
	}

	for _, part := range strings.Split(acceptLanguage, ",") {
		tag, _, _ := strings.Cut(part, ";")
		lang, _, _ := strings.Cut(strings.TrimSpace(tag), "-")
		lang = strings.ToLower(lang)

		if IsSupported(lang) {
			return lang
		}
	}

	return fallback
}

// IsSupported reports whether lang has a locale file.
func IsSupported(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

func flattenMap(prefix string, src map[string]any, dst map[string]string) {
	for k, v := range src {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch val := v.(type) {
		case string:
			dst[key] = val
		case map[string]any:
			flattenMap(key, val, dst)
		}
	}
}
