package akshare

import (
	"context"

	"market-pulse/src/models"
)

type rawStockInfo struct {
	Code                   string           `json:"代码"`
	Name                   string           `json:"名称"`
	TotalMarketValue       models.FlexFloat `json:"总市值"`
	CirculationMarketValue models.FlexFloat `json:"流通市值"`
	YtdChange              models.FlexFloat `json:"年初至今涨跌幅"`
}

// FetchStockInfo reads the spot table and keeps the reference fields. Rows
// without a code or name are dropped.
func (c *Client) FetchStockInfo(ctx context.Context, feed models.MFeedConfig) ([]models.MStockInfo, error) {
	var raw []rawStockInfo
	if err := c.getList(ctx, feed.Path, feed.Params, &raw); err != nil {
		return nil, err
	}

	now := c.Now()
	out := make([]models.MStockInfo, 0, len(raw))
	for _, r := range raw {
		if r.Code == "" || r.Name == "" {
			continue
		}
		out = append(out, models.MStockInfo{
			Symbol:                 r.Code,
			Name:                   r.Name,
			TotalMarketValue:       r.TotalMarketValue.Float64(),
			CirculationMarketValue: r.CirculationMarketValue.Float64(),
			YtdChange:              r.YtdChange.Float64(),
			UpdateTime:             now,
		})
	}
	c.Logger.Info("Stock info: %d of %d rows usable", len(out), len(raw))
	return out, nil
}

func StockInfoKey(s models.MStockInfo) string {
	return s.Symbol
}
