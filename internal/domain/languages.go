package domain

import (
	"sort"
	"strings"
)

// LanguageTable maps lowercase file extensions (including the leading dot)
// to language names. It is built once and injected into the collector;
// callers must treat it as read-only.
type LanguageTable map[string]string

// DefaultLanguageTable returns a fresh copy of the built-in
// extension-to-language mapping.
func DefaultLanguageTable() LanguageTable {
	table := make(LanguageTable, len(defaultLanguages))
	for ext, lang := range defaultLanguages {
		table[ext] = lang
	}
	return table
}

// Lookup maps a file name to its language. The second return value is
// false for files without a recognized extension.
func (t LanguageTable) Lookup(filename string) (string, bool) {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return "", false
	}
	lang, ok := t[strings.ToLower(filename[idx:])]
	return lang, ok
}

// Languages returns the distinct language names in sorted order.
func (t LanguageTable) Languages() []string {
	seen := make(map[string]bool, len(t))
	langs := make([]string, 0, len(t))
	for _, lang := range t {
		if !seen[lang] {
			seen[lang] = true
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	return langs
}

var defaultLanguages = map[string]string{
	".py":     "Python",
	".js":     "JavaScript",
	".ts":     "TypeScript",
	".jsx":    "React",
	".tsx":    "React",
	".java":   "Java",
	".kt":     "Kotlin",
	".scala":  "Scala",
	".go":     "Go",
	".rs":     "Rust",
	".cpp":    "C++",
	".cc":     "C++",
	".cxx":    "C++",
	".c":      "C",
	".h":      "C/C++",
	".hpp":    "C++",
	".cs":     "C#",
	".php":    "PHP",
	".rb":     "Ruby",
	".swift":  "Swift",
	".m":      "Objective-C",
	".mm":     "Objective-C++",
	".r":      "R",
	".pl":     "Perl",
	".pm":     "Perl",
	".sh":     "Shell",
	".bash":   "Shell",
	".zsh":    "Shell",
	".fish":   "Shell",
	".ps1":    "PowerShell",
	".psm1":   "PowerShell",
	".tf":     "Terraform",
	".hcl":    "HCL",
	".yml":    "YAML",
	".yaml":   "YAML",
	".json":   "JSON",
	".xml":    "XML",
	".html":   "HTML",
	".htm":    "HTML",
	".css":    "CSS",
	".scss":   "SCSS",
	".sass":   "SASS",
	".less":   "LESS",
	".vue":    "Vue.js",
	".svelte": "Svelte",
	".dart":   "Dart",
	".lua":    "Lua",
	".sql":    "SQL",
	".md":     "Markdown",
	".rst":    "reStructuredText",
	".tex":    "LaTeX",
	".ipynb":  "Jupyter",
	".proto":  "Protocol Buffers",
	".graphql": "GraphQL",
	".gql":    "GraphQL",
	".clj":    "Clojure",
	".cljs":   "ClojureScript",
	".ex":     "Elixir",
	".exs":    "Elixir",
	".erl":    "Erlang",
	".hrl":    "Erlang",
	".elm":    "Elm",
	".hs":     "Haskell",
	".lhs":    "Haskell",
	".ml":     "OCaml",
	".mli":    "OCaml",
	".fs":     "F#",
	".fsx":    "F#",
	".fsi":    "F#",
	".nim":    "Nim",
	".cr":     "Crystal",
	".d":      "D",
	".zig":    "Zig",
	".jl":     "Julia",
	".pas":    "Pascal",
	".pp":     "Pascal",
	".ada":    "Ada",
	".adb":    "Ada",
	".ads":    "Ada",
	".cob":    "COBOL",
	".cbl":    "COBOL",
	".for":    "Fortran",
	".f90":    "Fortran",
	".f95":    "Fortran",
}
