package storage

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"market-pulse/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryDB(t *testing.T) *AsyncSQLiteDB {
	t.Helper()
	cfg := &models.MConfig{Storage: models.MStorageConfig{DBType: "sqlite", DBPath: ":memory:"}}
	db, err := NewAsyncSQLiteDB(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestTradeCalendarReplace(t *testing.T) {
	db := newMemoryDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveTradeCalendar(ctx, []models.MTradeDay{{TradeDate: "2025-01-03"}, {TradeDate: "2025-01-02"}}))
	days, err := db.LoadTradeDays(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-02", "2025-01-03"}, days)

	require.NoError(t, db.SaveTradeCalendar(ctx, []models.MTradeDay{{TradeDate: "2025-02-05"}}))
	days, err = db.LoadTradeDays(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-02-05"}, days)
}

func TestMarketActivityDedupAndPaging(t *testing.T) {
	db := newMemoryDB(t)
	ctx := context.Background()

	items := []models.MMarketActivity{
		{Time: "10:14:45", Code: "300931", Name: "通用电梯", Sector: "60日新高", DataDate: "2025-03-12"},
		{Time: "10:14:43", Code: "600000", Name: "浦发银行", Sector: "大笔买入", DataDate: "2025-03-12"},
		{Time: "10:14:40", Code: "000001", Name: "平安银行", Sector: "大笔买入", DataDate: "2025-03-12"},
	}
	saved, dup, err := db.SaveMarketActivities(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, 3, saved)
	assert.Equal(t, 0, dup)

	saved, dup, err = db.SaveMarketActivities(ctx, items[:2])
	require.NoError(t, err)
	assert.Equal(t, 0, saved)
	assert.Equal(t, 2, dup)

	all, total, err := db.FindMarketActivities(ctx, "2025-03-12", nil, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, all, 2)
	assert.Equal(t, "300931", all[0].Code)

	buys, total, err := db.FindMarketActivities(ctx, "2025-03-12", []string{"大笔买入"}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, buys, 2)

	other, total, err := db.FindMarketActivities(ctx, "2025-03-13", nil, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, other)
}

func TestFindMarketActivitiesBoundsPaging(t *testing.T) {
	db := newMemoryDB(t)
	ctx := context.Background()

	var items []models.MMarketActivity
	for i := 0; i < MaxPageLimit+5; i++ {
		items = append(items, models.MMarketActivity{
			Time: fmt.Sprintf("10:%02d:%02d", i/60, i%60), Code: "600000", Sector: "火箭发射", DataDate: "2025-01-02",
		})
	}
	_, _, err := db.SaveMarketActivities(ctx, items)
	require.NoError(t, err)

	page, total, err := db.FindMarketActivities(ctx, "2025-01-02", nil, 1, math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, MaxPageLimit+5, total)
	assert.Len(t, page, MaxPageLimit)

	page, total, err = db.FindMarketActivities(ctx, "2025-01-02", nil, math.MaxInt, math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, MaxPageLimit+5, total)
	assert.Empty(t, page)

	page, _, err = db.FindMarketActivities(ctx, "2025-01-02", nil, 2, MaxPageLimit)
	require.NoError(t, err)
	assert.Len(t, page, 5)

	page, total, err = db.FindMarketActivities(ctx, "1999-01-01", nil, 1, math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, page)
}

func TestMarketEffectLatest(t *testing.T) {
	db := newMemoryDB(t)
	ctx := context.Background()

	latest, err := db.LatestMarketEffect(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	require.NoError(t, db.SaveMarketEffect(ctx, models.MMarketEffect{Rise: 1000, Activity: "40%", StatisticsDate: "2025-03-12 10:00:00", CreatedAt: base}))
	require.NoError(t, db.SaveMarketEffect(ctx, models.MMarketEffect{Rise: 2000, Activity: "55%", StatisticsDate: "2025-03-12 10:03:00", CreatedAt: base.Add(3 * time.Minute)}))

	latest, err = db.LatestMarketEffect(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 2000.0, latest.Rise)
	assert.Equal(t, "55%", latest.Activity)
}

func TestStockInfoUpsertAndPrefix(t *testing.T) {
	db := newMemoryDB(t)
	ctx := context.Background()

	infos := make([]models.MStockInfo, 0, 1203)
	for i := 0; i < 1200; i++ {
		infos = append(infos, models.MStockInfo{Symbol: fmt.Sprintf("T%05d", i), Name: "x"})
	}
	infos = append(infos,
		models.MStockInfo{Symbol: "600000", Name: "浦发银行", TotalMarketValue: 1},
		models.MStockInfo{Symbol: "000001", Name: "平安银行"},
		models.MStockInfo{Symbol: "920001", Name: "北交所"},
	)

	n, err := db.SaveStockInfo(ctx, infos)
	require.NoError(t, err)
	assert.Equal(t, 1203, n)

	count, err := db.CountStockInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1203, count)

	_, err = db.SaveStockInfo(ctx, []models.MStockInfo{{Symbol: "600000", Name: "浦发银行", TotalMarketValue: 2}})
	require.NoError(t, err)
	count, err = db.CountStockInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1203, count)

	si, err := db.GetStockInfo(ctx, "600000")
	require.NoError(t, err)
	require.NotNil(t, si)
	assert.Equal(t, 2.0, si.TotalMarketValue)
	assert.Equal(t, "SH", si.Prefix)

	si, err = db.GetStockInfo(ctx, "920001")
	require.NoError(t, err)
	assert.Equal(t, "BJ", si.Prefix)
}

func TestExchangePrefix(t *testing.T) {
	assert.Equal(t, "SH", ExchangePrefix("688981"))
	assert.Equal(t, "SH", ExchangePrefix("601318"))
	assert.Equal(t, "SZ", ExchangePrefix("300750"))
	assert.Equal(t, "SZ", ExchangePrefix("002594"))
	assert.Equal(t, "BJ", ExchangePrefix("830799"))
	assert.Equal(t, "BJ", ExchangePrefix("920118"))
	assert.Equal(t, "", ExchangePrefix("900901"))
}

func TestRebind(t *testing.T) {
	pg := dialect{positional: true}
	assert.Equal(t, "a = $1 AND b IN ($2,$3)", pg.rebind("a = ? AND b IN (?,?)"))
	assert.Equal(t, "a = ?", dialect{}.rebind("a = ?"))
}
