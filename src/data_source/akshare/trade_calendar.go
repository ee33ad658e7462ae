package akshare

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"market-pulse/src/models"
)

// FetchTradeCalendar returns the trade dates of the current and next year,
// newest first.
func (c *Client) FetchTradeCalendar(ctx context.Context, feed models.MFeedConfig) ([]models.MTradeDay, error) {
	var raw []models.MTradeDay
	if err := c.getList(ctx, feed.Path, feed.Params, &raw); err != nil {
		return nil, err
	}
	return FilterTradeDays(raw, c.Now().Year()), nil
}

// FilterTradeDays trims timestamps to dates and keeps year and year+1.
func FilterTradeDays(raw []models.MTradeDay, year int) []models.MTradeDay {
	this := strconv.Itoa(year)
	next := strconv.Itoa(year + 1)

	out := make([]models.MTradeDay, 0, 500)
	seen := make(map[string]bool, 500)
	for _, d := range raw {
		date := datePart(d.TradeDate)
		if !strings.HasPrefix(date, this) && !strings.HasPrefix(date, next) {
			continue
		}
		if seen[date] {
			continue
		}
		seen[date] = true
		out = append(out, models.MTradeDay{TradeDate: date})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TradeDate > out[j].TradeDate })
	return out
}

func TradeDayKey(d models.MTradeDay) string {
	return d.TradeDate
}
