// Package extract selects a logo candidate from fetched markup using three
// stages in strict priority order: embedded JSON-LD, icon/image links, and a
// synthesized /favicon.ico fallback.
package extract

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/yokurang/logo-crawler/internal/crawler"
)

const (
	defaultMaxJSONDepth = 64
	defaultMaxJSONNodes = 20000
)

// Config bounds structured-data parsing and toggles the fallback stage.
type Config struct {
	MaxJSONDepth    int
	MaxJSONNodes    int
	FallbackFavicon bool
}

// Extractor implements crawler.Extractor.
type Extractor struct {
	cfg    Config
	logger *zap.Logger
}

// New builds an Extractor, applying defaults to zero limits.
func New(cfg Config, logger *zap.Logger) *Extractor {
	if cfg.MaxJSONDepth <= 0 {
		cfg.MaxJSONDepth = defaultMaxJSONDepth
	}
	if cfg.MaxJSONNodes <= 0 {
		cfg.MaxJSONNodes = defaultMaxJSONNodes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Extract returns the best candidate on the page, or false when no stage
// produced one. Markup that cannot be parsed skips straight to the fallback.
func (e *Extractor) Extract(page crawler.Page) (crawler.Candidate, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		e.logger.Debug("parse page failed", zap.String("domain", page.Domain), zap.Error(err))
	} else {
		base := documentBase(doc, page.BaseURL)
		if c, ok := e.structuredData(doc, base); ok {
			return c, true
		}
		if c, ok := e.iconLinks(doc, base); ok {
			return c, true
		}
	}
	if e.cfg.FallbackFavicon {
		return fallbackFavicon(page.Domain)
	}
	return crawler.Candidate{}, false
}

// documentBase honours a <base href> element, resolved against the page URL.
func documentBase(doc *goquery.Document, pageURL string) string {
	href, ok := doc.Find("base[href]").First().Attr("href")
	if !ok {
		return pageURL
	}
	resolved, err := crawler.ResolveReference(pageURL, href)
	if err != nil || !crawler.IsWebURL(resolved) {
		return pageURL
	}
	return resolved
}
