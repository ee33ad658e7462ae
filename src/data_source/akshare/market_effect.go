package akshare

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"market-pulse/src/helpers"
	"market-pulse/src/models"
)

var effectFields = []string{
	"上涨", "涨停", "真实涨停", "st st*涨停", "下跌", "跌停",
	"真实跌停", "st st*跌停", "平盘", "停牌", "活跃度", "统计日期",
}

// EffectRow is one item/value pair of the provider table.
type EffectRow struct {
	Item  string          `json:"item"`
	Value json.RawMessage `json:"value"`
}

// -----------------------------------------------------------------------------

// FetchMarketEffect reads the money-making-effect table and folds it into a
// single record.
func (c *Client) FetchMarketEffect(ctx context.Context, feed models.MFeedConfig) ([]models.MMarketEffect, error) {
	var rows []EffectRow
	if err := c.getList(ctx, feed.Path, feed.Params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	effect, err := ParseMarketEffect(rows)
	if err != nil {
		return nil, err
	}
	effect.CreatedAt = c.Now()
	return []models.MMarketEffect{effect}, nil
}

// -----------------------------------------------------------------------------

// ParseMarketEffect maps item/value rows onto the record. Every field must be
// present.
func ParseMarketEffect(rows []EffectRow) (models.MMarketEffect, error) {
	var e models.MMarketEffect
	seen := make(map[string]bool, len(effectFields))

	for _, r := range rows {
		text := rawString(r.Value)
		switch r.Item {
		case "上涨":
			e.Rise = models.ParseFloatLenient(text)
		case "涨停":
			e.LimitUp = models.ParseFloatLenient(text)
		case "真实涨停":
			e.RealLimitUp = models.ParseFloatLenient(text)
		case "st st*涨停":
			e.StLimitUp = models.ParseFloatLenient(text)
		case "下跌":
			e.Fall = models.ParseFloatLenient(text)
		case "跌停":
			e.LimitDown = models.ParseFloatLenient(text)
		case "真实跌停":
			e.RealLimitDown = models.ParseFloatLenient(text)
		case "st st*跌停":
			e.StLimitDown = models.ParseFloatLenient(text)
		case "平盘":
			e.Flat = models.ParseFloatLenient(text)
		case "停牌":
			e.Suspended = models.ParseFloatLenient(text)
		case "活跃度":
			e.Activity = text
		case "统计日期":
			e.StatisticsDate = text
		default:
			continue
		}
		seen[r.Item] = true
	}

	var missing []string
	for _, name := range effectFields {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return e, helpers.NewDataSourceError(fmt.Sprintf("market effect missing fields: %s", strings.Join(missing, ", ")), nil)
	}
	return e, nil
}

func MarketEffectKey(e models.MMarketEffect) string {
	return e.StatisticsDate
}

// rawString renders a JSON scalar as text.
func rawString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.TrimSpace(string(v))
}
