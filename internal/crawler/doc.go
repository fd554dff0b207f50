// Package crawler defines the core types, interfaces, error taxonomy and
// URL/retry helpers shared by the logo crawl pipeline.
package crawler
