package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultScheme is applied to scheme-relative references and bare domains.
const DefaultScheme = "https"

// BaseURL returns the landing page URL fetched for a domain.
func BaseURL(scheme, domain string) string {
	if scheme == "" {
		scheme = DefaultScheme
	}
	return scheme + "://" + domain + "/"
}

// ResolveReference turns a possibly relative reference into an absolute URL
// against base, the post-redirect page URL. Absolute references are returned
// unchanged and scheme-relative ones ("//cdn/x.png") get the secure scheme.
// Fragments are dropped from resolved relative references.
func ResolveReference(base, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("empty reference")
	}
	if strings.HasPrefix(ref, "//") {
		ref = DefaultScheme + ":" + ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse reference: %w", err)
	}
	if refURL.IsAbs() {
		return ref, nil
	}
	baseURL, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if !baseURL.IsAbs() || baseURL.Host == "" {
		return "", fmt.Errorf("base url %q is not absolute", base)
	}
	resolved := baseURL.ResolveReference(refURL)
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String(), nil
}

// IsWebURL reports whether raw is an absolute http(s) URL with a host.
func IsWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// Hostname extracts the lowercase host from a URL, or "unknown".
func Hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
