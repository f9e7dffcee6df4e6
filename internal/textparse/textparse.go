// Package textparse pulls #hashtags and @mentions out of post content.
package textparse

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	hashtagPattern = regexp.MustCompile(`#[\p{L}\p{N}_]+`)
	mentionPattern = regexp.MustCompile(`@[\p{L}\p{N}_]+`)
)

type Parsed struct {
	Hashtags []string
	Mentions []string
}

// Parse returns the distinct hashtags and mention handles in text, in order of
// first appearance. Tokens inside URLs are ignored.
func Parse(text string) Parsed {
	stripped := urlPattern.ReplaceAllStringFunc(text, func(s string) string {
		return strings.Repeat(" ", len(s))
	})
	return Parsed{
		Hashtags: collect(hashtagPattern, stripped, NormalizeTag),
		Mentions: collect(mentionPattern, stripped, NormalizeHandle),
	}
}

// NormalizeHandle puts a handle in the form stored on users.handle.
func NormalizeHandle(h string) string {
	return norm.NFC.String(strings.TrimPrefix(strings.TrimSpace(h), "@"))
}

func NormalizeTag(t string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimPrefix(strings.TrimSpace(t), "#")))
}

// Merge normalises explicit handles and appends those not already present.
func Merge(base []string, extra []string, normalize func(string) string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, v := range list {
			v = normalize(v)
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func collect(re *regexp.Regexp, text string, normalize func(string) string) []string {
	return Merge(nil, re.FindAllString(text, -1), normalize)
}
