// Package localization holds the translated strings shown by the dialog views.
package localization

import (
	"embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/TecharoHQ/captchamodal"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

type LocalizationService struct {
	bundle *i18n.Bundle
}

var (
	globalService *LocalizationService
	once          sync.Once
)

func NewLocalizationService() *LocalizationService {
	once.Do(func() {
		bundle := i18n.NewBundle(language.English)
		bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

		entries, err := localeFS.ReadDir("locales")
		if err != nil {
			slog.Error("can't read embedded locales", "err", err)
			globalService = &LocalizationService{bundle: bundle}
			return
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") || entry.Name() == "manifest.json" {
				continue
			}

			if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+entry.Name()); err != nil {
				slog.Error("can't load locale", "file", entry.Name(), "err", err)
			}
		}

		globalService = &LocalizationService{bundle: bundle}
	})

	return globalService
}

// GetLocalizer returns a localizer for lang, falling back to English.
// captchamodal.ForcedLanguage wins over lang when set.
func (ls *LocalizationService) GetLocalizer(lang string) *i18n.Localizer {
	if captchamodal.ForcedLanguage != "" {
		lang = captchamodal.ForcedLanguage
	}

	return i18n.NewLocalizer(ls.bundle, lang, "en")
}

func (ls *LocalizationService) GetLocalizerFromRequest(r *http.Request) *i18n.Localizer {
	return ls.GetLocalizer(r.Header.Get("Accept-Language"))
}

// SimpleLocalizer wraps i18n.Localizer with a more convenient API
type SimpleLocalizer struct {
	Localizer *i18n.Localizer
}

// T provides a concise way to localize messages
func (sl *SimpleLocalizer) T(messageID string) string {
	return sl.Localizer.MustLocalize(&i18n.LocalizeConfig{MessageID: messageID})
}

// Tag returns the language the localizer resolves to, for the html lang attribute.
func (sl *SimpleLocalizer) Tag() language.Tag {
	_, tag, err := sl.Localizer.LocalizeWithTag(&i18n.LocalizeConfig{MessageID: "captcha"})
	if err != nil {
		return language.English
	}
	return tag
}

// GetLocalizer creates a localizer based on the request's Accept-Language header
func GetLocalizer(r *http.Request) *SimpleLocalizer {
	return &SimpleLocalizer{Localizer: NewLocalizationService().GetLocalizerFromRequest(r)}
}

// ForLanguage creates a localizer for an explicit language, such as the
// terminal's LANG.
func ForLanguage(lang string) *SimpleLocalizer {
	return &SimpleLocalizer{Localizer: NewLocalizationService().GetLocalizer(lang)}
}
