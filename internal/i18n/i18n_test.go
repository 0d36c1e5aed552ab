package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLocale(t *testing.T, dir, lang, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, lang+".json"), []byte(content), 0o644))
}

func TestLoadAndLookup(t *testing.T) {
	dir := t.TempDir()
	writeLocale(t, dir, "en", `{"greet": "Hello, {name}!", "only_en": "english only"}`)
	writeLocale(t, dir, "ru", `{"greet": "Привет, {name}!"}`)

	c, err := Load(dir, "en")
	require.NoError(t, err)

	assert.Equal(t, "Hello, Bob!", c.T("en", "greet", "name", "Bob"))
	assert.Equal(t, "Привет, Bob!", c.T("ru", "greet", "name", "Bob"))
	assert.ElementsMatch(t, []string{"en", "ru"}, c.Languages())
}

func TestFallbacks(t *testing.T) {
	dir := t.TempDir()
	writeLocale(t, dir, "en", `{"greet": "Hello", "only_en": "english only"}`)
	writeLocale(t, dir, "ru", `{"greet": "Привет"}`)

	c, err := Load(dir, "en")
	require.NoError(t, err)

	// Unknown language falls back to the default catalog.
	assert.Equal(t, "Hello", c.T("de", "greet"))
	// Key missing from the requested language falls back to default.
	assert.Equal(t, "english only", c.T("ru", "only_en"))
	// Key missing everywhere echoes the key.
	assert.Equal(t, "no_such_key", c.T("en", "no_such_key"))
}

func TestLoadEmptyDirFails(t *testing.T) {
	_, err := Load(t.TempDir(), "en")
	assert.Error(t, err)
}

func TestShippedLocalesParse(t *testing.T) {
	c, err := Load("../../locales", "en")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"en", "ru"}, c.Languages())
	assert.Contains(t, c.T("en", "reminder_user", "id", "3"), "#3")
	assert.Contains(t, c.T("ru", "ticket_created", "id", "5", "emoji", "🆕"), "#5")
}
