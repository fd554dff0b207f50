package crawler

import (
	"errors"
	"fmt"
	"time"
)

// Label is the categorical outcome attached to a Record.
type Label string

// Record labels.
const (
	LabelLogo    Label = "logo"
	LabelFavicon Label = "favicon"
	LabelNone    Label = "none"
	LabelError   Label = "error"
)

// Success reports whether the label carries a logo URL.
func (l Label) Success() bool {
	return l == LabelLogo || l == LabelFavicon
}

// SourceKind names the extraction stage that produced a candidate.
type SourceKind string

// Extraction sources, in priority order.
const (
	SourceJSONLD          SourceKind = "json_ld"
	SourceImageLink       SourceKind = "image_link"
	SourceFaviconFallback SourceKind = "favicon_fallback"
	SourceNone            SourceKind = "none"
)

// Label maps a source kind onto the record label it yields.
func (s SourceKind) Label() Label {
	switch s {
	case SourceJSONLD:
		return LabelLogo
	case SourceImageLink, SourceFaviconFallback:
		return LabelFavicon
	default:
		return LabelNone
	}
}

// CrawlTask is one domain pulled off the queue by a worker.
type CrawlTask struct {
	// Index is the position of the domain in the input list.
	Index  int
	Domain string

	// BaseURL is the landing page fetched for Domain.
	BaseURL string
}

// FetchResponse is the result of a single HTTP attempt.
type FetchResponse struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Attempt records the timing and outcome of one fetch attempt.
type Attempt struct {
	Number     int
	Duration   time.Duration
	StatusCode int
	Err        error
}

// FetchOutcome is the terminal result of fetching one domain, including every
// attempt made along the way.
type FetchOutcome struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
	FinalURL   string
	Err        error
	Attempts   []Attempt
}

// Succeeded reports whether the final attempt produced a usable page.
func (o FetchOutcome) Succeeded() bool {
	return o.Err == nil
}

// RoundTrip sums the duration of every attempt.
func (o FetchOutcome) RoundTrip() time.Duration {
	var total time.Duration
	for _, a := range o.Attempts {
		total += a.Duration
	}
	return total
}

// Page is fetched markup plus the URL it was ultimately served from.
type Page struct {
	Domain  string
	BaseURL string
	Body    []byte
}

// Candidate is a logo URL found by one extraction stage.
type Candidate struct {
	URL       string
	Source    SourceKind
	RawLength int
}

// Record is the per-domain output row.
type Record struct {
	Domain string `json:"domain"`
	Logo   string `json:"logo"`
	Label  Label  `json:"label"`
	Error  string `json:"error"`
}

// NewLogoRecord builds a record for a selected candidate.
func NewLogoRecord(domain string, c Candidate) Record {
	return Record{Domain: domain, Logo: c.URL, Label: c.Source.Label()}
}

// NewNoneRecord builds a record for a page with no candidate.
func NewNoneRecord(domain string) Record {
	return Record{Domain: domain, Label: LabelNone}
}

// NewErrorRecord builds a record for a failed task. An empty reason is
// replaced so the error column is never blank.
func NewErrorRecord(domain string, err error) Record {
	reason := "unknown error"
	if err != nil && err.Error() != "" {
		reason = err.Error()
	}
	return Record{Domain: domain, Label: LabelError, Error: reason}
}

// Validate enforces the label/logo/error field invariants.
func (r Record) Validate() error {
	if r.Domain == "" {
		return errors.New("domain is required")
	}
	switch r.Label {
	case LabelLogo, LabelFavicon:
		if r.Logo == "" {
			return fmt.Errorf("label %q requires a logo", r.Label)
		}
		if r.Error != "" {
			return fmt.Errorf("label %q must not carry an error", r.Label)
		}
	case LabelNone:
		if r.Logo != "" || r.Error != "" {
			return errors.New("label \"none\" must have empty logo and error")
		}
	case LabelError:
		if r.Error == "" {
			return errors.New("label \"error\" requires an error")
		}
		if r.Logo != "" {
			return errors.New("label \"error\" must not carry a logo")
		}
	default:
		return fmt.Errorf("unknown label %q", r.Label)
	}
	return nil
}

// Result is what a worker emits when a task reaches a terminal state.
type Result struct {
	Index    int
	Record   Record
	Source   SourceKind
	Attempts []Attempt
}

// RoundTrip sums the duration of every attempt made for the task.
func (r Result) RoundTrip() time.Duration {
	return FetchOutcome{Attempts: r.Attempts}.RoundTrip()
}
