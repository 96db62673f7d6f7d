package localization

import (
	"encoding/json"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/TecharoHQ/captchamodal"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

func TestLocalizationService(t *testing.T) {
	service := NewLocalizationService()

	for _, cs := range []struct {
		lang, key, want string
	}{
		{"en", "cancel", "Cancel"},
		{"fr", "cancel", "Annuler"},
		{"de", "cancel", "Abbrechen"},
		{"zh-CN", "cancel", "取消"},
		{"xx", "cancel", "Cancel"},
		{"en", "captcha", "Captcha"},
		{"de", "loading", "Ladevorgang..."},
	} {
		t.Run(cs.lang+"/"+cs.key, func(t *testing.T) {
			localizer := service.GetLocalizer(cs.lang)
			result := localizer.MustLocalize(&i18n.LocalizeConfig{MessageID: cs.key})
			if result != cs.want {
				t.Errorf("Expected '%s', got '%s'", cs.want, result)
			}
		})
	}
}

func TestGetLocalizerFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en;q=0.8")

	sl := GetLocalizer(req)
	if got := sl.T("ok"); got != "OK" {
		t.Errorf("wanted OK, got %q", got)
	}
	if got := sl.T("cancel"); got != "Annuler" {
		t.Errorf("wanted Annuler, got %q", got)
	}

	if base, _ := sl.Tag().Base(); base.String() != "fr" {
		t.Errorf("wanted french tag, got %s", sl.Tag())
	}
}

func TestForcedLanguage(t *testing.T) {
	captchamodal.ForcedLanguage = "de"
	t.Cleanup(func() { captchamodal.ForcedLanguage = "" })

	if got := ForLanguage("fr").T("cancel"); got != "Abbrechen" {
		t.Errorf("forced language ignored, got %q", got)
	}
}

func TestUnknownLanguageTag(t *testing.T) {
	if got := ForLanguage("tlh").Tag(); got != language.English {
		t.Errorf("wanted english fallback, got %s", got)
	}
}

type manifest struct {
	SupportedLanguages []string `json:"supported_languages"`
}

func loadManifest(t *testing.T) manifest {
	t.Helper()

	fin, err := localeFS.Open("locales/manifest.json")
	if err != nil {
		t.Fatal(err)
	}
	defer fin.Close()

	var result manifest
	if err := json.NewDecoder(fin).Decode(&result); err != nil {
		t.Fatal(err)
	}

	return result
}

func TestComprehensiveTranslations(t *testing.T) {
	service := NewLocalizationService()

	var translations = map[string]any{}
	fin, err := localeFS.Open("locales/en.json")
	if err != nil {
		t.Fatal(err)
	}
	defer fin.Close()

	if err := json.NewDecoder(fin).Decode(&translations); err != nil {
		t.Fatal(err)
	}

	var keys []string
	for k := range translations {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, lang := range loadManifest(t).SupportedLanguages {
		t.Run(lang, func(t *testing.T) {
			loc := service.GetLocalizer(lang)
			for _, key := range keys {
				t.Run(key, func(t *testing.T) {
					result, tag, err := loc.LocalizeWithTag(&i18n.LocalizeConfig{MessageID: key})
					if err != nil || result == "" {
						t.Fatalf("key not defined: %v", err)
					}

					if want := language.MustParse(lang); tag != want {
						t.Errorf("key falls back to %s", tag)
					}
				})
			}
		})
	}
}
