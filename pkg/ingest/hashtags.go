package ingest

import (
	"strings"
	"unicode"
)

// NormalizeHashtag lowercases a hashtag and strips the leading '#' and any
// surrounding punctuation. It returns "" for tags with no letters or digits.
func NormalizeHashtag(tag string) string {
	t := strings.TrimSpace(strings.ToLower(tag))
	t = strings.TrimLeft(t, "#")
	t = strings.TrimFunc(t, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	if t == "" {
		return ""
	}
	for _, r := range t {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return t
		}
	}
	return ""
}

// ExtractHashtags returns the hashtags in text in order of first
// appearance, normalized and deduplicated.
func ExtractHashtags(text string) []string {
	var (
		out  []string
		seen = make(map[string]bool)
	)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
	for _, w := range words {
		// "#a#b" carries two tags.
		for _, part := range strings.Split(w, "#")[1:] {
			tag := NormalizeHashtag(part)
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}

// NormalizeHashtags normalizes and deduplicates a list of tags.
func NormalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		n := NormalizeHashtag(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
