package providers

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/michael-poon/rss-feeds/internal/domain"
)

const (
	// sourceTimeLayout matches the listing's "2025/07/01 09:30"; single-digit fields are accepted too.
	sourceTimeLayout = "2006/1/2 15:4"
	// naiveLayout renders a wall clock with no zone information, as RFC 2822 "-0000".
	naiveLayout = "Mon, 02 Jan 2006 15:04:05"
)

var dtPattern = regexp.MustCompile(`dt:'([\d/:\s]+)'`)

// Reasons a timestamp could not be recovered.
var (
	ErrNoScript           = errors.New("no script element")
	ErrPatternNotFound    = errors.New("dt pattern not found")
	ErrMalformedTimestamp = errors.New("malformed timestamp")
)

// TimestampExtractionError signals that the fallback timestamp was used.
type TimestampExtractionError struct {
	Reason error
	Raw    string
	Err    error
}

func (e *TimestampExtractionError) Error() string {
	msg := "timestamp extraction: " + e.Reason.Error()
	if e.Raw != "" {
		msg += fmt.Sprintf(" (raw %q)", e.Raw)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the reason sentinel and the underlying parse error.
func (e *TimestampExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// DateExtractor recovers the publication time embedded in a block's inline script.
type DateExtractor struct {
	Now func() time.Time
	// NormalizeFallback renders the fallback instant in UTC+8. When false the
	// fallback is the local wall clock without zone ("-0000"), which is what
	// the feeds have always carried.
	NormalizeFallback bool
}

// Extract returns the RFC 2822 publication date for a time element. It always
// returns a usable string; a non-nil error means the fallback instant was used.
func (d DateExtractor) Extract(sel *goquery.Selection) (string, error) {
	t, err := parseScriptTimestamp(sel)
	if err == nil {
		return t.Format(time.RFC1123Z), nil
	}
	return d.fallback(), err
}

func (d DateExtractor) fallback() string {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	t := now()
	if d.NormalizeFallback {
		return t.In(domain.HongKong).Format(time.RFC1123Z)
	}
	return t.Format(naiveLayout) + " -0000"
}

// parseScriptTimestamp pulls dt:'YYYY/MM/DD HH:MM' out of the element's script and reads it as UTC+8.
func parseScriptTimestamp(sel *goquery.Selection) (time.Time, error) {
	if sel == nil || sel.Length() == 0 {
		return time.Time{}, &TimestampExtractionError{Reason: ErrNoScript}
	}
	script := sel.Find("script").First()
	if script.Length() == 0 {
		return time.Time{}, &TimestampExtractionError{Reason: ErrNoScript}
	}

	text := script.Text()
	m := dtPattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, &TimestampExtractionError{Reason: ErrPatternNotFound}
	}

	raw := strings.TrimSpace(m[1])
	t, err := time.ParseInLocation(sourceTimeLayout, raw, domain.HongKong)
	if err != nil {
		return time.Time{}, &TimestampExtractionError{Reason: ErrMalformedTimestamp, Raw: raw, Err: err}
	}
	return t, nil
}
