package interfaces

import (
	"context"

	"market-pulse/src/models"
)

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {
	ITradeDayStore

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveTradeCalendar replaces the stored calendar with days.
	SaveTradeCalendar(ctx context.Context, days []models.MTradeDay) error

	// -----------------------------------------------------------------------------

	// SaveMarketActivities inserts records not yet stored for their
	// (code, time, sector, dataDate) and reports saved and duplicate counts.
	SaveMarketActivities(ctx context.Context, items []models.MMarketActivity) (saved int, duplicate int, err error)

	// -----------------------------------------------------------------------------

	// FindMarketActivities pages through one day's records, newest first.
	// An empty sectors list matches every sector.
	FindMarketActivities(ctx context.Context, dataDate string, sectors []string, page, limit int) ([]models.MMarketActivity, int, error)

	// -----------------------------------------------------------------------------

	SaveMarketEffect(ctx context.Context, effect models.MMarketEffect) error

	// -----------------------------------------------------------------------------

	// LatestMarketEffect returns nil when nothing is stored.
	LatestMarketEffect(ctx context.Context) (*models.MMarketEffect, error)

	// -----------------------------------------------------------------------------

	// SaveStockInfo upserts rows by symbol and returns how many were written.
	SaveStockInfo(ctx context.Context, infos []models.MStockInfo) (int, error)

	// -----------------------------------------------------------------------------

	CountStockInfo(ctx context.Context) (int, error)

	// GetStockInfo returns one row by symbol, or nil when unknown.
	GetStockInfo(ctx context.Context, symbol string) (*models.MStockInfo, error)

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
