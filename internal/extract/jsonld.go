package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/yokurang/logo-crawler/internal/crawler"
)

const jsonLDType = "application/ld+json"

// containerKeys hold nested entities that commonly own the site's logo.
var containerKeys = setOf(
	"publisher", "organization", "brand", "author", "creator", "provider",
	"sourceOrganization", "parentOrganization", "mainEntity", "isPartOf",
)

// organizationTypes are @type values for which "image" is taken as a logo.
var organizationTypes = setOf(
	"organization", "corporation", "localbusiness", "brand", "ngo",
	"onlinebusiness", "onlinestore", "store", "airline", "sportsteam",
	"newsmediaorganization", "educationalorganization", "governmentorganization",
)

func setOf(values ...string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

// structuredData runs the JSON-LD stage over every ld+json script block.
func (e *Extractor) structuredData(doc *goquery.Document, base string) (crawler.Candidate, bool) {
	var raw []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if !isJSONLD(s.AttrOr("type", "")) {
			return
		}
		payload := stripWrappers(s.Text())
		if payload == "" {
			return
		}
		root, err := decodeTree([]byte(payload), e.cfg.MaxJSONDepth, e.cfg.MaxJSONNodes)
		if err != nil {
			e.logger.Debug("skipping structured data block", zap.Error(err))
			return
		}
		// The unrestricted walk only runs for blocks without a known logo path.
		if known := knownLogos(root, 0, e.cfg.MaxJSONDepth); len(known) > 0 {
			raw = append(raw, known...)
			return
		}
		raw = append(raw, e.walkLogos(root)...)
	})
	return selectBest(resolveAll(raw, base, crawler.SourceJSONLD), false)
}

func isJSONLD(typ string) bool {
	mediaType, _, _ := strings.Cut(typ, ";")
	return strings.EqualFold(strings.TrimSpace(mediaType), jsonLDType)
}

// stripWrappers removes CDATA and HTML comment guards some CMSs emit.
func stripWrappers(text string) string {
	text = strings.TrimSpace(text)
	for _, prefix := range []string{"//<![CDATA[", "<![CDATA[", "<!--"} {
		text = strings.TrimSpace(strings.TrimPrefix(text, prefix))
	}
	for _, suffix := range []string{"//]]>", "]]>", "-->"} {
		text = strings.TrimSpace(strings.TrimSuffix(text, suffix))
	}
	return text
}

// knownLogos collects strings at well-known logo paths in document order.
func knownLogos(n *node, depth, maxDepth int) []string {
	if n == nil || (maxDepth > 0 && depth > maxDepth) {
		return nil
	}
	switch n.kind {
	case kindArray:
		var out []string
		for _, item := range n.items {
			out = append(out, knownLogos(item, depth+1, maxDepth)...)
		}
		return out
	case kindObject:
		var out []string
		hasLogo := false
		for i, key := range n.keys {
			child := n.items[i]
			switch {
			case key == "logo":
				values := logoValues(child, depth+1, maxDepth)
				hasLogo = hasLogo || len(values) > 0
				out = append(out, values...)
			case key == "@graph" || containerKeys[key]:
				out = append(out, knownLogos(child, depth+1, maxDepth)...)
			}
		}
		if !hasLogo && isOrganization(n) {
			out = append(out, logoValues(n.get("image"), depth+1, maxDepth)...)
		}
		return out
	default:
		return nil
	}
}

// logoValues reads a logo reference: a URL string, an ImageObject, a nested
// logo, or a list of those.
func logoValues(n *node, depth, maxDepth int) []string {
	if n == nil || (maxDepth > 0 && depth > maxDepth) {
		return nil
	}
	switch n.kind {
	case kindString:
		if s := strings.TrimSpace(n.str); s != "" {
			return []string{s}
		}
		return nil
	case kindObject:
		for _, key := range []string{"url", "contentUrl"} {
			if v := n.get(key); v != nil && v.kind == kindString && strings.TrimSpace(v.str) != "" {
				return []string{strings.TrimSpace(v.str)}
			}
		}
		return logoValues(n.get("logo"), depth+1, maxDepth)
	case kindArray:
		var out []string
		for _, item := range n.items {
			out = append(out, logoValues(item, depth+1, maxDepth)...)
		}
		return out
	default:
		return nil
	}
}

func isOrganization(n *node) bool {
	t := n.get("@type")
	if t == nil {
		return false
	}
	var types []string
	switch t.kind {
	case kindString:
		types = []string{t.str}
	case kindArray:
		for _, item := range t.items {
			if item.kind == kindString {
				types = append(types, item.str)
			}
		}
	}
	for _, typ := range types {
		typ = strings.ToLower(strings.TrimSpace(typ))
		typ = typ[strings.LastIndexAny(typ, "/:#")+1:]
		if organizationTypes[typ] {
			return true
		}
	}
	return false
}

// walkLogos visits every string leaf and keeps those mentioning "logo". The
// walk is bounded by depth and node count and never revisits a node.
func (e *Extractor) walkLogos(root *node) []string {
	type frame struct {
		n     *node
		depth int
	}
	var out []string
	seen := make(map[*node]struct{})
	visited := 0
	stack := []frame{{n: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.n == nil {
			continue
		}
		if _, ok := seen[f.n]; ok {
			continue
		}
		seen[f.n] = struct{}{}
		visited++
		if e.cfg.MaxJSONNodes > 0 && visited > e.cfg.MaxJSONNodes {
			break
		}
		switch f.n.kind {
		case kindString:
			if strings.Contains(strings.ToLower(f.n.str), "logo") {
				out = append(out, strings.TrimSpace(f.n.str))
			}
		case kindObject, kindArray:
			if e.cfg.MaxJSONDepth > 0 && f.depth >= e.cfg.MaxJSONDepth {
				continue
			}
			// Push in reverse so children pop in document order.
			for i := len(f.n.items) - 1; i >= 0; i-- {
				stack = append(stack, frame{n: f.n.items[i], depth: f.depth + 1})
			}
		}
	}
	return out
}
