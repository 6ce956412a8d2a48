package models

import (
	"regexp"
	"strings"
	"sync"
)

// SecretMeta is the small structured record attached to every secret.
// A nil field is omitted from serialization and treated as "any" when used
// as a search pattern (spec §3).
type SecretMeta struct {
	App      *string `json:"app,omitempty"`
	Database *string `json:"database,omitempty"`
	Login    *string `json:"login,omitempty"`
	Server   *string `json:"server,omitempty"`
	URL      *string `json:"url,omitempty"`
}

var (
	globCacheMu sync.Mutex
	globCache   = map[string]*regexp.Regexp{}
)

// globRegexp compiles a shell-glob pattern ('*' any run of characters
// including a leading dot, '?' any single character) into a case
// insensitive, fully anchored regular expression, caching the result.
func globRegexp(pattern string) *regexp.Regexp {
	globCacheMu.Lock()
	defer globCacheMu.Unlock()

	if re, ok := globCache[pattern]; ok {
		return re
	}

	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	re := regexp.MustCompile(b.String())
	globCache[pattern] = re
	return re
}

// globMatch reports whether value matches the shell-glob pattern,
// case-insensitively, with '*' allowed to match a leading '.' (spec §3:
// "shell-glob matching, case-insensitive, dot matches").
func globMatch(pattern, value string) bool {
	return globRegexp(pattern).MatchString(value)
}

// MatchGlob exports globMatch for callers outside the package that need the
// same case-insensitive shell-glob semantics against a plain string, such as
// group_search's name_glob.
func MatchGlob(pattern, value string) bool {
	return globMatch(pattern, value)
}

func fieldMatch(pattern, value *string) bool {
	if pattern == nil {
		return true
	}
	if value == nil {
		return false
	}
	return globMatch(*pattern, *value)
}

// Match reports whether m satisfies the search pattern: every non-nil field
// in pattern must glob-match the corresponding field of m; nil pattern
// fields match anything. Match is reflexive: m.Match(m) is always true.
func (m SecretMeta) Match(pattern SecretMeta) bool {
	return fieldMatch(pattern.App, m.App) &&
		fieldMatch(pattern.Database, m.Database) &&
		fieldMatch(pattern.Login, m.Login) &&
		fieldMatch(pattern.Server, m.Server) &&
		fieldMatch(pattern.URL, m.URL)
}

// Merge shallow-merges partial into m: every non-nil field of partial
// overwrites the corresponding field of m; nil fields of partial leave m's
// value untouched. The receiver is not mutated; the merged copy is
// returned.
func (m SecretMeta) Merge(partial SecretMeta) SecretMeta {
	out := m
	if partial.App != nil {
		out.App = partial.App
	}
	if partial.Database != nil {
		out.Database = partial.Database
	}
	if partial.Login != nil {
		out.Login = partial.Login
	}
	if partial.Server != nil {
		out.Server = partial.Server
	}
	if partial.URL != nil {
		out.URL = partial.URL
	}
	return out
}
