package domain

import (
	"strings"
	"time"
)

// Domain contains core models shared by the fetcher, the assembler and the runner.

const (
	// PlaceholderTitle is used when a news block carries no title anchor.
	PlaceholderTitle = "（無標題）"
	// PlaceholderLink is used when a news block carries no title anchor.
	PlaceholderLink = "#"
)

// HongKong is the fixed UTC+8 offset used for source timestamps and build dates.
var HongKong = time.FixedZone("HKT", 8*60*60)

// NewsRecord is one article scraped from a stock news listing.
type NewsRecord struct {
	StockCode string
	Title     string
	Link      string
	PubDate   string // RFC-2822 rendering, see providers.DateExtractor
	Summary   string
	ImageURL  string
	GUID      string
}

// HasImage reports whether the record carries an image reference.
func (r NewsRecord) HasImage() bool {
	return strings.TrimSpace(r.ImageURL) != ""
}
