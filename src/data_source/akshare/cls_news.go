package akshare

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"market-pulse/src/models"
)

var clsDatelinePattern = regexp.MustCompile(`财联社\d{1,2}月\d{1,2}日电，`)

// RawClsNews is one telegraph row as the provider sends it.
type RawClsNews struct {
	Title       string `json:"标题"`
	Content     string `json:"内容"`
	PublishDate string `json:"发布日期"`
	PublishTime string `json:"发布时间"`
}

// -----------------------------------------------------------------------------

// FetchClsNews returns the CLS telegraph newest first, filtered and cleaned.
func (c *Client) FetchClsNews(ctx context.Context, feed models.MFeedConfig) ([]models.MClsNews, error) {
	var raw []RawClsNews
	if err := c.getList(ctx, feed.Path, feed.Params, &raw); err != nil {
		return nil, err
	}
	return NormalizeClsNews(raw, feed.ExcludedTitles, c.Location), nil
}

// -----------------------------------------------------------------------------

// NormalizeClsNews reverses the provider's oldest-first list, derives the
// publish timestamp key, drops repeated keys and excluded titles, and strips
// the title, an empty 【】 and the dateline from each body.
func NormalizeClsNews(raw []RawClsNews, excluded []string, loc *time.Location) []models.MClsNews {
	seen := make(map[int64]struct{}, len(raw))
	out := make([]models.MClsNews, 0, len(raw))

	for i := len(raw) - 1; i >= 0; i-- {
		item := raw[i]
		ts, ok := clsTimestamp(item.PublishDate, item.PublishTime, loc)
		if !ok {
			continue
		}
		if _, dup := seen[ts]; dup {
			continue
		}
		if titleExcluded(item.Title, excluded) {
			continue
		}
		seen[ts] = struct{}{}

		out = append(out, models.MClsNews{
			Title:       item.Title,
			Content:     cleanClsContent(item.Content, item.Title),
			PublishDate: datePart(item.PublishDate),
			PublishTime: ts,
		})
	}
	return out
}

// ClsNewsKey is the dedup key of a CLS item.
func ClsNewsKey(n models.MClsNews) string {
	return strconv.FormatInt(n.PublishTime, 10)
}

// -----------------------------------------------------------------------------

func clsTimestamp(date, clock string, loc *time.Location) (int64, bool) {
	t, err := time.ParseInLocation("2006-01-02T15:04:05", datePart(date)+"T"+strings.TrimSpace(clock), loc)
	if err != nil {
		return 0, false
	}
	return t.UnixMilli(), true
}

func datePart(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i > 0 {
		return s[:i]
	}
	return s
}

func titleExcluded(title string, excluded []string) bool {
	for _, kw := range excluded {
		if kw != "" && strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

func cleanClsContent(content, title string) string {
	if title != "" {
		content = strings.Replace(content, title, "", 1)
	}
	content = strings.Replace(content, "【】", "", 1)
	content = clsDatelinePattern.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}
