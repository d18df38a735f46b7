// Package feed assembles news records into an RSS 2.0 document.
package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

const (
	rssVersion = "2.0"
	// EnclosureType is declared for every article image.
	EnclosureType = "image/jpeg"
)

// Document is an RSS 2.0 document.
type Document struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel Channel  `xml:"channel"`
}

// Channel holds feed-level metadata and the items.
type Channel struct {
	Title         string `xml:"title"`
	Link          string `xml:"link"`
	Description   string `xml:"description"`
	Language      string `xml:"language,omitempty"`
	LastBuildDate string `xml:"lastBuildDate,omitempty"`
	Generator     string `xml:"generator,omitempty"`
	Docs          string `xml:"docs,omitempty"`
	Items         []Item `xml:"item"`
}

// Item is one feed entry.
type Item struct {
	Title       string     `xml:"title"`
	Link        string     `xml:"link"`
	Description string     `xml:"description"`
	GUID        GUID       `xml:"guid"`
	Enclosure   *Enclosure `xml:"enclosure"`
	PubDate     string     `xml:"pubDate"`
}

// GUID identifies an item. IsPermaLink is always rendered.
type GUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// Enclosure references the article image.
type Enclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// Marshal renders the document with an XML declaration.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encode rss: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("flush rss: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
