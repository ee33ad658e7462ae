package akshare

import (
	"context"
	"fmt"
	"sort"

	"market-pulse/src/helpers"
	"market-pulse/src/models"
)

type rawMarketActivity struct {
	Time        string `json:"时间"`
	Code        string `json:"代码"`
	Name        string `json:"名称"`
	Sector      string `json:"板块"`
	RelatedInfo string `json:"相关信息"`
}

// -----------------------------------------------------------------------------

// FetchMarketActivity polls every configured board in turn and merges the
// rows newest first. The snapshot is all or nothing: a failing board fails
// the whole fetch, since a partial merge would lose the cached head.
func (c *Client) FetchMarketActivity(ctx context.Context, feed models.MFeedConfig) ([]models.MMarketActivity, error) {
	dataDate := c.Now().Format("2006-01-02")
	var merged []models.MMarketActivity

	for _, sector := range feed.Symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		params := map[string]string{"symbol": sector}
		for k, v := range feed.Params {
			params[k] = v
		}

		var raw []rawMarketActivity
		if err := c.getList(ctx, feed.Path, params, &raw); err != nil {
			return nil, helpers.NewDataSourceError(fmt.Sprintf("market activity board '%s'", sector), err)
		}

		for _, r := range raw {
			if r.Code == "" || r.Time == "" {
				continue
			}
			s := r.Sector
			if s == "" {
				s = sector
			}
			merged = append(merged, models.MMarketActivity{
				Time:        r.Time,
				Code:        r.Code,
				Name:        r.Name,
				Sector:      s,
				RelatedInfo: r.RelatedInfo,
				DataDate:    dataDate,
			})
		}
	}

	// The deadline may expire while the last board is decoded.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	SortMarketActivity(merged)
	return merged, nil
}

// SortMarketActivity orders rows newest first. Ties keep board order.
func SortMarketActivity(items []models.MMarketActivity) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Time > items[j].Time
	})
}

func MarketActivityKey(a models.MMarketActivity) string {
	return a.DataDate + "|" + a.Time + "|" + a.Code + "|" + a.Sector
}
