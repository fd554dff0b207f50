package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/yokurang/logo-crawler/internal/crawler"
)

// scored is a resolved candidate plus whether its raw reference mentions "logo".
type scored struct {
	candidate crawler.Candidate
	logo      bool
}

// resolveAll turns raw references into candidates, dropping those that do not
// resolve to a web URL. Order is preserved.
func resolveAll(raw []string, base string, source crawler.SourceKind) []scored {
	out := make([]scored, 0, len(raw))
	for _, ref := range raw {
		resolved, err := crawler.ResolveReference(base, ref)
		if err != nil || !crawler.IsWebURL(resolved) {
			continue
		}
		out = append(out, scored{
			candidate: crawler.Candidate{
				URL:       resolved,
				Source:    source,
				RawLength: utf8.RuneCountInString(ref),
			},
			logo: mentionsLogo(ref),
		})
	}
	return out
}

// selectBest picks the longest raw match, keeping the first on ties. With
// preferLogo, candidates mentioning "logo" outrank the rest regardless of length.
func selectBest(candidates []scored, preferLogo bool) (crawler.Candidate, bool) {
	best := -1
	for i, c := range candidates {
		if best < 0 {
			best = i
			continue
		}
		cur := candidates[best]
		if preferLogo && c.logo != cur.logo {
			if c.logo {
				best = i
			}
			continue
		}
		if c.candidate.RawLength > cur.candidate.RawLength {
			best = i
		}
	}
	if best < 0 {
		return crawler.Candidate{}, false
	}
	return candidates[best].candidate, true
}

func mentionsLogo(s string) bool {
	return strings.Contains(strings.ToLower(s), "logo")
}
