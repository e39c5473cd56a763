package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"island-tracker/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

const (
	selStatsContainer = ".chart-stats-div"
	selPlayerCount    = ".chart-stats-title[data-n]"
	selRank           = `a[href*="rank"]`
	selTitle          = "h1"
	selAuthorLink     = `a[href*="/creator?name="]`
	selTagsContainer  = ".island-tags"
	selTag            = ".island-tag"
	selRangeControl   = ".chart-range"
	selStatsTableRows = "#chart-month-table tbody tr"
)

var byAuthorPattern = regexp.MustCompile(`(?i)^By\s+(.+)$`)

// Site chrome that also starts with "By ".
var authorNoise = []string{"Fortnite Creative Map Code", "Fortnite.GG", "IsLogged"}

const maxAuthorTextLen = 50

// ParseSnapshot reads the current-stats block out of a rendered island page.
// Only the player count is mandatory.
func ParseSnapshot(html string, code domain.MapCode) (*domain.Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse page: %w", domain.ErrStatsNotFound, err)
	}

	stats := doc.Find(selStatsContainer).First()
	if stats.Length() == 0 {
		return nil, fmt.Errorf("%w: stats container missing", domain.ErrStatsNotFound)
	}

	countEl := stats.Find(selPlayerCount).First()
	raw, ok := countEl.Attr("data-n")
	if !ok {
		return nil, fmt.Errorf("%w: player count element missing", domain.ErrStatsNotFound)
	}
	count, err := strconv.Atoi(cleanNumber(raw))
	if err != nil || count < 0 {
		return nil, fmt.Errorf("%w: unparsable player count %q", domain.ErrStatsNotFound, raw)
	}

	return &domain.Snapshot{
		MapCode:     code,
		PlayerCount: count,
		Rank:        strings.TrimSpace(countEl.Find(selRank).First().Text()),
		Title:       strings.TrimSpace(doc.Find(selTitle).First().Text()),
		Author:      parseAuthor(doc),
		Tags:        parseTags(doc),
	}, nil
}

func parseAuthor(doc *goquery.Document) string {
	if link := doc.Find(selAuthorLink).First(); link.Length() > 0 {
		return strings.TrimSpace(link.Text())
	}

	var author string
	doc.Find("body *").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if !strings.HasPrefix(text, "By ") || len(text) >= maxAuthorTextLen {
			return true
		}
		for _, noise := range authorNoise {
			if strings.Contains(text, noise) {
				return true
			}
		}
		if m := byAuthorPattern.FindStringSubmatch(text); m != nil {
			author = strings.TrimSpace(m[1])
			return false
		}
		return true
	})
	return author
}

func parseTags(doc *goquery.Document) []string {
	tags := []string{}
	doc.Find(selTagsContainer).First().Find(selTag).Each(func(_ int, s *goquery.Selection) {
		if tag := strings.TrimSpace(s.Text()); tag != "" {
			tags = append(tags, tag)
		}
	})
	return tags
}
