package providers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/michael-poon/rss-feeds/internal/domain"
)

func loadListing(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "listing.html"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}

func parseFixture(t *testing.T) []domain.NewsRecord {
	t.Helper()
	records, err := ParseNewsPage(loadListing(t), ParseOptions{
		BaseURL:   DefaultBaseURL,
		StockCode: "00001",
		Dates:     DateExtractor{Now: fixedNow},
	})
	if err != nil {
		t.Fatalf("ParseNewsPage: %v", err)
	}
	return records
}

func TestParseNewsPageSelectsReferencedBlocksInOrder(t *testing.T) {
	records := parseFixture(t)

	assert.Equal(t, 3, len(records))
	assert.Equal(t, "NOW.1388201", records[0].GUID)
	assert.Equal(t, "NOW.1388150", records[1].GUID)
	assert.Equal(t, "NOW.1388100", records[2].GUID)
	for _, rec := range records {
		assert.NotEqual(t, "", rec.GUID)
		assert.NotEqual(t, "", rec.Title)
		assert.NotEqual(t, "", rec.Summary)
		assert.Equal(t, "00001", rec.StockCode)
	}
}

func TestParseNewsPageFullRecord(t *testing.T) {
	rec := parseFixture(t)[0]

	assert.Equal(t, domain.NewsRecord{
		StockCode: "00001",
		Title:     "長和中期盈利升",
		Link:      "https://www.aastocks.com/tc/stocks/news/aafn-con/NOW.1388201/hk-stock-news",
		PubDate:   "Tue, 01 Jul 2025 09:30:00 +0800",
		Summary:   "長和公布中期業績，盈利按年上升。",
		ImageURL:  "https://img.aastocks.com/news/1388201.jpg",
		GUID:      "NOW.1388201",
	}, rec)
	assert.Equal(t, true, rec.HasImage())
}

func TestParseNewsPageMissingTitleUsesPlaceholders(t *testing.T) {
	rec := parseFixture(t)[1]

	assert.Equal(t, domain.PlaceholderTitle, rec.Title)
	assert.Equal(t, "#", rec.Link)
	assert.Equal(t, "沒有標題的新聞", rec.Summary)
	assert.Equal(t, "Tue, 01 Jul 2025 01:02:03 -0000", rec.PubDate)
	assert.Equal(t, false, rec.HasImage())
}

func TestParseNewsPageAbsoluteLinkAndSummaryFallback(t *testing.T) {
	rec := parseFixture(t)[2]

	assert.Equal(t, "https://www.aastocks.com/tc/stocks/news/aafn-con/NOW.1388100", rec.Link)
	assert.Equal(t, "已是絕對連結", rec.Title)
	assert.Equal(t, rec.Title, rec.Summary)
	// img without src yields no image
	assert.Equal(t, "", rec.ImageURL)
}

func TestParseNewsPageWithoutContainer(t *testing.T) {
	_, err := ParseNewsPage([]byte(`<html><body><div ref="x">orphan</div></body></html>`), ParseOptions{BaseURL: DefaultBaseURL})
	assert.Equal(t, true, errors.Is(err, ErrNoContainer))
}

func TestParseNewsPageEmptyContainer(t *testing.T) {
	records, err := ParseNewsPage([]byte(`<div class="content" id="aafn-search-c1"></div>`), ParseOptions{BaseURL: DefaultBaseURL})
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(records))
}

func TestResolveURL(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"/tc/foo", "https://www.aastocks.com/tc/foo"},
		{"https://example.com/a?b=c", "https://example.com/a?b=c"},
		{"http://www.aastocks.com/en/x", "http://www.aastocks.com/en/x"},
		{"  /tc/trim  ", "https://www.aastocks.com/tc/trim"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, resolveURL(tc.raw, "https://www.aastocks.com"))
	}
}
