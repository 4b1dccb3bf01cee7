package domain

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguageTable_Lookup(t *testing.T) {
	table := DefaultLanguageTable()

	testCases := []struct {
		filename string
		expected string
		found    bool
	}{
		{"main.go", "Go", true},
		{"app.PY", "Python", true},
		{"archive.tar.gz", "", false},
		{"Makefile", "", false},
		{"component.tsx", "React", true},
		{".gitignore", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.filename, func(t *testing.T) {
			lang, ok := table.Lookup(tc.filename)
			assert.Equal(t, tc.found, ok)
			assert.Equal(t, tc.expected, lang)
		})
	}
}

func TestLanguageTable_Languages(t *testing.T) {
	langs := DefaultLanguageTable().Languages()

	assert.True(t, sort.StringsAreSorted(langs))
	assert.Contains(t, langs, "Go")
	assert.Contains(t, langs, "Python")

	// Multiple extensions map to the same language exactly once.
	seen := make(map[string]int)
	for _, l := range langs {
		seen[l]++
	}
	assert.Equal(t, 1, seen["C++"])
	assert.Equal(t, 1, seen["React"])
}

func TestDefaultLanguageTable_ReturnsCopy(t *testing.T) {
	table := DefaultLanguageTable()
	table[".go"] = "Golang"

	fresh := DefaultLanguageTable()
	lang, ok := fresh.Lookup("main.go")
	assert.True(t, ok)
	assert.Equal(t, "Go", lang)
}
