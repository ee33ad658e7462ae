package rss

import (
	"bytes"
	"context"
	"sort"

	"market-pulse/src/helpers"
	"market-pulse/src/interfaces"
	"market-pulse/src/models"

	"github.com/mmcdole/gofeed"
)

// Source reads one RSS/Atom feed through the shared network manager.
type Source struct {
	URL     string
	Network interfaces.INetworkManager
}

func NewSource(url string, network interfaces.INetworkManager) *Source {
	return &Source{URL: url, Network: network}
}

// -----------------------------------------------------------------------------

// Fetch returns the feed items newest first.
func (s *Source) Fetch(ctx context.Context) ([]models.MRssItem, error) {
	body, err := s.Network.Get(ctx, s.URL, nil)
	if err != nil {
		return nil, err
	}
	return Parse(body)
}

// -----------------------------------------------------------------------------

// Parse decodes an RSS or Atom document.
func Parse(body []byte) ([]models.MRssItem, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, helpers.NewDataSourceError("parse feed", err)
	}

	items := make([]models.MRssItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		guid := it.GUID
		if guid == "" {
			guid = it.Link
		}
		if guid == "" {
			guid = it.Title
		}
		items = append(items, models.MRssItem{
			GUID:      guid,
			Title:     it.Title,
			Link:      it.Link,
			Summary:   it.Description,
			Published: it.PublishedParsed,
		})
	}

	// Undated items keep their document position after the dated ones.
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Published, items[j].Published
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.After(*b)
	})
	return items, nil
}

func ItemKey(it models.MRssItem) string {
	return it.GUID
}
