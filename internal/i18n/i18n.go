package i18n

import (
	"embed"
	"encoding/json"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
)

//go:embed locales/*.json
var localeFS embed.FS

var (
	translations map[string]map[string]string
	loadOnce     sync.Once
)

// Init loads the embedded translation tables. It is safe to call more than once.
func Init() {
	loadOnce.Do(func() {
		translations = make(map[string]map[string]string)
		files, _ := localeFS.ReadDir("locales")
		for _, f := range files {
			if path.Ext(f.Name()) != ".json" {
				continue
			}
			lang := strings.TrimSuffix(f.Name(), ".json")
			data, err := localeFS.ReadFile("locales/" + f.Name())
			if err != nil {
				continue
			}
			var t map[string]string
			if err := json.Unmarshal(data, &t); err != nil {
				continue
			}
			translations[lang] = t
		}
	})
}

// T returns the translation of key, falling back to English and then to the key itself.
func T(lang, key string) string {
	Init()
	if t, ok := translations[lang]; ok {
		if val, ok := t[key]; ok {
			return val
		}
	}
	if t, ok := translations["en"]; ok {
		if val, ok := t[key]; ok {
			return val
		}
	}
	return key
}

// GetLang reads the language from the "lang" query parameter or cookie.
func GetLang(r *http.Request) string {
	if l := r.URL.Query().Get("lang"); l != "" {
		return l
	}
	cookie, err := r.Cookie("lang")
	if err == nil {
		return cookie.Value
	}
	return "en"
}

func GetAvailableLangs() []string {
	Init()
	langs := []string{}
	for l := range translations {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}
