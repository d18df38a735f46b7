package providers

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/michael-poon/rss-feeds/internal/domain"
	"github.com/michael-poon/rss-feeds/internal/logger"
)

// Selectors for the AASTOCKS news listing markup.
const (
	containerSelector = "div.content#aafn-search-c1"
	blockSelector     = "div[ref]"
	titleSelector     = ".newshead4 a"
	timeSelector      = ".newstime4 .inline_block"
	summarySelector   = ".newscontent4"
	imageSelector     = ".newsImage4a img"

	refAttr = "ref"
)

// ErrNoContainer indicates the listing page did not contain the news container.
var ErrNoContainer = errors.New("news container not found")

// ParseOptions tune how a listing page is turned into records.
type ParseOptions struct {
	BaseURL   string
	StockCode string
	Dates     DateExtractor
	Log       logger.Logger
}

// ParseNewsPage converts a listing page into records, in page order.
func ParseNewsPage(body []byte, opts ParseOptions) ([]domain.NewsRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	container := doc.Find(containerSelector).First()
	if container.Length() == 0 {
		return nil, ErrNoContainer
	}

	log := logger.Ensure(opts.Log)
	blocks := container.Find(blockSelector)
	records := make([]domain.NewsRecord, 0, blocks.Length())

	blocks.Each(func(i int, block *goquery.Selection) {
		ref, _ := block.Attr(refAttr)
		if strings.TrimSpace(ref) == "" {
			log.WarnObj("news block with blank ref skipped", "parse_anomaly", map[string]any{
				"stock_code": opts.StockCode,
				"index":      i,
			})
			return
		}
		records = append(records, parseBlock(block, ref, opts, log))
	})

	return records, nil
}

// parseBlock builds one record; missing elements degrade to placeholders.
func parseBlock(block *goquery.Selection, ref string, opts ParseOptions, log logger.Logger) domain.NewsRecord {
	rec := domain.NewsRecord{
		StockCode: opts.StockCode,
		Title:     domain.PlaceholderTitle,
		Link:      domain.PlaceholderLink,
		GUID:      ref,
	}

	if anchor := block.Find(titleSelector).First(); anchor.Length() > 0 {
		rec.Title = firstNonEmpty(anchor.Text(), domain.PlaceholderTitle)
		href, _ := anchor.Attr("href")
		rec.Link = firstNonEmpty(resolveURL(href, opts.BaseURL), domain.PlaceholderLink)
	} else {
		log.InfoObj("news block has no title anchor", "parse_anomaly", map[string]any{
			"stock_code": opts.StockCode,
			"ref":        ref,
		})
	}

	rec.Summary = firstNonEmpty(block.Find(summarySelector).First().Text(), rec.Title)

	if img := block.Find(imageSelector).First(); img.Length() > 0 {
		if src, ok := img.Attr("src"); ok {
			rec.ImageURL = resolveURL(src, opts.BaseURL)
		}
	}

	pubDate, err := opts.Dates.Extract(block.Find(timeSelector).First())
	if err != nil {
		log.InfoObj("publication time fell back to now", "timestamp_fallback", map[string]any{
			"stock_code": opts.StockCode,
			"ref":        ref,
			"error":      err.Error(),
		})
	}
	rec.PubDate = pubDate

	return rec
}
