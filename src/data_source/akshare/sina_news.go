package akshare

import (
	"context"

	"market-pulse/src/models"
)

// FetchSinaNews returns the Sina 7x24 feed as delivered, newest first.
func (c *Client) FetchSinaNews(ctx context.Context, feed models.MFeedConfig) ([]models.MSinaNews, error) {
	var items []models.MSinaNews
	if err := c.getList(ctx, feed.Path, feed.Params, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func SinaNewsKey(n models.MSinaNews) string {
	return n.Time + "|" + n.Content
}
