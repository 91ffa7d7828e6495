package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reKeepLettersDigits = regexp.MustCompile(`[^0-9\p{Ll}]+`)
	reMultiUnderscore   = regexp.MustCompile(`_+`)
	reMultiHyphen       = regexp.MustCompile(`-+`)
)

func trimAndLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SanitizeSlug normalizes admin-supplied resource identifiers.
func SanitizeSlug(input string) string {
	p := Pipeline{
		trimAndLower,
		func(s string) string { return reKeepLettersDigits.ReplaceAllString(s, "-") },
		func(s string) string { return reMultiHyphen.ReplaceAllString(s, "-") },
		func(s string) string { return strings.Trim(s, "-") },
	}
	return p.Apply(input)
}

// SanitizeTag normalizes amenity tags.
func SanitizeTag(input string) string {
	p := Pipeline{
		trimAndLower,
		func(s string) string { return reKeepLettersDigits.ReplaceAllString(s, "_") },
		func(s string) string { return reMultiUnderscore.ReplaceAllString(s, "_") },
		func(s string) string { return strings.Trim(s, "_") },
	}
	return p.Apply(input)
}

func SanitizeTags(tags []string) []string {
	return SanitizeSlice(tags, SanitizeTag)
}

func SanitizeSlice(values []string, strategy Strategy) []string {
	seen := make(map[string]struct{})
	out := []string{}

	for _, v := range values {
		s := strategy(v)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	return out
}
