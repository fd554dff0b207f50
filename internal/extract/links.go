package extract

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yokurang/logo-crawler/internal/crawler"
)

// imageExtensions are the path suffixes accepted by the icon-link stage.
var imageExtensions = []string{".png", ".ico", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".avif", ".bmp"}

// iconLinks runs the icon/image-link stage: icon link relations, image_src
// links and the Windows tile image.
func (e *Extractor) iconLinks(doc *goquery.Document, base string) (crawler.Candidate, bool) {
	var raw []string
	doc.Find("link[href], meta[content]").Each(func(_ int, s *goquery.Selection) {
		var ref string
		switch goquery.NodeName(s) {
		case "link":
			if !iconRel(s.AttrOr("rel", "")) {
				return
			}
			ref = s.AttrOr("href", "")
		case "meta":
			if !strings.EqualFold(s.AttrOr("name", ""), "msapplication-TileImage") {
				return
			}
			ref = s.AttrOr("content", "")
		}
		ref = strings.TrimSpace(ref)
		if ref == "" || !hasImageExtension(ref) {
			return
		}
		raw = append(raw, ref)
	})
	return selectBest(resolveAll(raw, base, crawler.SourceImageLink), true)
}

func iconRel(rel string) bool {
	for _, token := range strings.Fields(strings.ToLower(rel)) {
		if strings.Contains(token, "icon") || token == "image_src" {
			return true
		}
	}
	return false
}

// hasImageExtension checks the path of ref, ignoring query and fragment.
func hasImageExtension(ref string) bool {
	p := ref
	if u, err := url.Parse(ref); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	for _, known := range imageExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// fallbackFavicon synthesizes the conventional favicon location without
// fetching it.
func fallbackFavicon(domain string) (crawler.Candidate, bool) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return crawler.Candidate{}, false
	}
	ref := crawler.DefaultScheme + "://" + domain + "/favicon.ico"
	return crawler.Candidate{
		URL:       ref,
		Source:    crawler.SourceFaviconFallback,
		RawLength: len(ref),
	}, true
}
