package feed

import (
	"strings"
	"time"

	"github.com/michael-poon/rss-feeds/internal/domain"
	"github.com/michael-poon/rss-feeds/internal/logger"
)

// Channel defaults for the combined stock news feed.
const (
	DefaultTitle       = "AASTOCKS 綜合股票新聞"
	DefaultLink        = "https://www.aastocks.com/tc/stocks/news/aafn"
	DefaultDescription = "綜合多隻股票的最新新聞 RSS Feed"
	DefaultLanguage    = "zh-HK"
	DefaultGenerator   = "rss-feeds stockfeed"

	rssDocs = "https://www.rssboard.org/rss-specification"
)

// Meta is the channel-level metadata.
type Meta struct {
	Title       string
	Link        string
	Description string
	Language    string
	Generator   string
}

// DefaultMeta returns the metadata of the combined AASTOCKS feed.
func DefaultMeta() Meta {
	return Meta{
		Title:       DefaultTitle,
		Link:        DefaultLink,
		Description: DefaultDescription,
		Language:    DefaultLanguage,
		Generator:   DefaultGenerator,
	}
}

func (m Meta) withDefaults() Meta {
	def := DefaultMeta()
	if strings.TrimSpace(m.Title) == "" {
		m.Title = def.Title
	}
	if strings.TrimSpace(m.Link) == "" {
		m.Link = def.Link
	}
	if strings.TrimSpace(m.Description) == "" {
		m.Description = def.Description
	}
	if strings.TrimSpace(m.Language) == "" {
		m.Language = def.Language
	}
	if strings.TrimSpace(m.Generator) == "" {
		m.Generator = def.Generator
	}
	return m
}

// Assembler turns accumulated records into a Document.
type Assembler struct {
	meta Meta
	now  func() time.Time
	log  logger.Logger
}

// NewAssembler builds an Assembler; zero meta fields take the defaults.
func NewAssembler(meta Meta, log logger.Logger) *Assembler {
	return &Assembler{meta: meta.withDefaults(), now: time.Now, log: logger.Ensure(log)}
}

// WithClock replaces the build clock.
func (a *Assembler) WithClock(now func() time.Time) *Assembler {
	if now != nil {
		a.now = now
	}
	return a
}

// Assemble builds the feed. Items keep the order of records.
func (a *Assembler) Assemble(records []domain.NewsRecord) *Document {
	built := a.now().In(domain.HongKong)

	doc := &Document{
		Version: rssVersion,
		Channel: Channel{
			Title:         a.meta.Title,
			Link:          a.meta.Link,
			Description:   a.meta.Description,
			Language:      a.meta.Language,
			LastBuildDate: built.Format(time.RFC1123Z),
			Generator:     a.meta.Generator,
			Docs:          rssDocs,
			Items:         make([]Item, 0, len(records)),
		},
	}

	for _, rec := range records {
		doc.Channel.Items = append(doc.Channel.Items, a.item(rec, built))
	}
	return doc
}

func (a *Assembler) item(rec domain.NewsRecord, built time.Time) Item {
	pub, err := time.Parse(time.RFC1123Z, strings.TrimSpace(rec.PubDate))
	if err != nil {
		a.log.WarnObj("record pubDate unreadable, using build time", "feed_pubdate_fallback", map[string]any{
			"guid":     rec.GUID,
			"pub_date": rec.PubDate,
			"error":    err.Error(),
		})
		pub = built
	}

	it := Item{
		Title:       rec.Title,
		Link:        rec.Link,
		Description: rec.Summary,
		GUID:        GUID{Value: rec.GUID, IsPermaLink: false},
		PubDate:     pub.Format(time.RFC1123Z),
	}
	if rec.HasImage() {
		it.Enclosure = &Enclosure{URL: strings.TrimSpace(rec.ImageURL), Length: 0, Type: EnclosureType}
	}
	return it
}
