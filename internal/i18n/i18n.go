package i18n

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Catalog holds per-language message maps loaded from JSON files
// ("en.json", "ru.json", ...). Lookup falls back to the default
// language, then to the key itself.
type Catalog struct {
	locales     map[string]map[string]string
	defaultLang string
}

func Load(dir, defaultLang string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read locales directory: %w", err)
	}

	locales := make(map[string]map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read locale %s: %w", name, err)
		}

		var messages map[string]string
		if err := json.Unmarshal(data, &messages); err != nil {
			return nil, fmt.Errorf("failed to parse locale %s: %w", name, err)
		}
		locales[strings.TrimSuffix(name, ".json")] = messages
	}

	if len(locales) == 0 {
		return nil, fmt.Errorf("no locale files found in %s", dir)
	}
	return &Catalog{locales: locales, defaultLang: defaultLang}, nil
}

// T looks up key for lang and substitutes {name} placeholders from
// alternating name/value pairs.
func (c *Catalog) T(lang, key string, args ...string) string {
	messages, exists := c.locales[lang]
	if !exists {
		messages = c.locales[c.defaultLang]
	}

	s, exists := messages[key]
	if !exists {
		if fallback, ok := c.locales[c.defaultLang][key]; ok {
			s = fallback
		} else {
			return key
		}
	}

	if len(args) >= 2 {
		pairs := make([]string, 0, len(args))
		for i := 0; i+1 < len(args); i += 2 {
			pairs = append(pairs, "{"+args[i]+"}", args[i+1])
		}
		s = strings.NewReplacer(pairs...).Replace(s)
	}
	return s
}

// Languages lists the loaded language codes.
func (c *Catalog) Languages() []string {
	langs := make([]string, 0, len(c.locales))
	for lang := range c.locales {
		langs = append(langs, lang)
	}
	return langs
}
