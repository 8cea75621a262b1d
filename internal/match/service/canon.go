package service

import (
	"regexp"
	"strings"
)

// Keep letters, digits and whitespace; everything else becomes a space.
var rxNonWord = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// clean lowercases, folds punctuation to spaces and collapses whitespace.
// Idempotent: clean(clean(s)) == clean(s).
func clean(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	s = rxNonWord.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// buildCanon cleans each part, drops the ones that normalize to empty or to
// the literal "nan", and joins the survivors. Part order is fixed per
// catalog so canon strings stay comparable across catalogs.
func buildCanon(parts ...string) string {
	toks := make([]string, 0, len(parts))
	for _, p := range parts {
		t := clean(p)
		if t == "" || t == "nan" {
			continue
		}
		toks = append(toks, t)
	}
	return strings.Join(toks, " ")
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
