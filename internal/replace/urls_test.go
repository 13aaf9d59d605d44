package replace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func variantMap(variants []Replacement) map[string]string {
	m := make(map[string]string, len(variants))
	for _, v := range variants {
		m[v.Search] = v.Replace
	}
	return m
}

func TestURLVariantsCoverSpellings(t *testing.T) {
	variants := URLVariants("https://old.example", "https://new.example")
	m := variantMap(variants)

	assert.Equal(t, "https://new.example", m["https://old.example"])
	assert.Equal(t, `https:\/\/new.example`, m[`https:\/\/old.example`])
	assert.Equal(t, "https%3A%2F%2Fnew.example", m["https%3A%2F%2Fold.example"])
	assert.Equal(t, "//new.example", m["//old.example"])
	assert.Equal(t, "https://new.example", m["https://www.old.example"])
}

func TestURLVariantsWWWToggle(t *testing.T) {
	m := variantMap(URLVariants("https://www.old.example", "https://new.example"))

	// Both the www and the bare spelling of the old host map to the new URL.
	assert.Equal(t, "https://new.example", m["https://www.old.example"])
	assert.Equal(t, "https://new.example", m["https://old.example"])
}

func TestURLVariantsDeduplicated(t *testing.T) {
	variants := URLVariants("https://old.example/", "https://new.example")

	seen := make(map[string]bool)
	for _, v := range variants {
		assert.False(t, seen[v.Search], "duplicate search %q", v.Search)
		seen[v.Search] = true
		assert.NotEqual(t, v.Search, v.Replace)
	}
}

func TestURLVariantsTrimTrailingSlash(t *testing.T) {
	m := variantMap(URLVariants("https://old.example/", "https://new.example/"))
	assert.Equal(t, "https://new.example", m["https://old.example"])
}

func TestURLVariantsEscapedBeforeBare(t *testing.T) {
	variants := URLVariants("https://old.example", "https://new.example")

	bare, escaped := -1, -1
	for i, v := range variants {
		switch v.Search {
		case "https://old.example":
			bare = i
		case `https:\/\/old.example`:
			escaped = i
		}
	}
	assert.GreaterOrEqual(t, bare, 0)
	assert.GreaterOrEqual(t, escaped, 0)
	assert.Less(t, escaped, bare, "escaped spelling must run before the bare one")
}

func TestURLVariantsIdenticalInput(t *testing.T) {
	assert.Empty(t, URLVariants("https://same.example", "https://same.example"))
}
