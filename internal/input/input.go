// Package input reads the newline-separated domain list a crawl job starts from.
package input

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"

	"golang.org/x/net/idna"
)

// ReadDomains returns one normalized domain per non-blank line of r, in input
// order. Lines starting with '#' are comments. Duplicates are kept so the
// output has exactly one record per input line.
func ReadDomains(r io.Reader) ([]string, error) {
	var domains []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if domain := NormalizeDomain(line); domain != "" {
			domains = append(domains, domain)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read domains: %w", err)
	}
	return domains, nil
}

// NormalizeDomain reduces a user-supplied line to a bare lowercase host,
// dropping any scheme, path, query or trailing dot, and converts
// internationalized names to their ASCII form. A port, when present, is kept.
// Names IDNA rejects are returned lowercased so the fetch can report the failure.
func NormalizeDomain(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		host, port = s, ""
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	if port != "" {
		return net.JoinHostPort(host, port)
	}
	return host
}
