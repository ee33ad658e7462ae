package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"market-pulse/src/helpers"
	"market-pulse/src/logger"
	"market-pulse/src/models"
)

// stockInfoBatchSize is the number of rows upserted per transaction.
const stockInfoBatchSize = 500

// MaxPageLimit bounds the page size of paged queries.
const MaxPageLimit = 200

// -----------------------------------------------------------------------------

// dialect carries what differs between the SQLite and Postgres backends.
type dialect struct {
	name       string
	idColumn   string
	positional bool // $1, $2 placeholders instead of ?
	schema     string
}

// table returns the qualified table name.
func (d dialect) table(name string) string {
	if d.schema == "" {
		return name
	}
	return fmt.Sprintf(`"%s"."%s"`, d.schema, name)
}

// rebind rewrites ? placeholders for dialects that need positional ones.
func (d dialect) rebind(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// -----------------------------------------------------------------------------

// sqlStore implements the document-store operations over database/sql. The
// SQLite and Postgres types embed it and own connection setup.
type sqlStore struct {
	DB      *sql.DB
	Logger  *logger.Logger
	dialect dialect
}

// -----------------------------------------------------------------------------

func (s *sqlStore) createTables() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			trade_date TEXT PRIMARY KEY,
			weekday TEXT,
			updated_at BIGINT
		)`, s.dialect.table("trade_calendar")),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id %s,
			time TEXT NOT NULL,
			code TEXT NOT NULL,
			name TEXT NOT NULL,
			sector TEXT NOT NULL,
			related_info TEXT,
			data_date TEXT NOT NULL,
			create_time BIGINT NOT NULL,
			UNIQUE (code, time, sector, data_date)
		)`, s.dialect.table("market_activity"), s.dialect.idColumn),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_market_activity_date ON %s (data_date, sector)`,
			s.dialect.table("market_activity")),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id %s,
			rise DOUBLE PRECISION,
			limit_up DOUBLE PRECISION,
			real_limit_up DOUBLE PRECISION,
			st_limit_up DOUBLE PRECISION,
			fall DOUBLE PRECISION,
			limit_down DOUBLE PRECISION,
			real_limit_down DOUBLE PRECISION,
			st_limit_down DOUBLE PRECISION,
			flat DOUBLE PRECISION,
			suspended DOUBLE PRECISION,
			activity TEXT,
			statistics_date TEXT,
			created_at BIGINT NOT NULL
		)`, s.dialect.table("market_effect"), s.dialect.idColumn),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			symbol TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			total_market_value DOUBLE PRECISION,
			circulation_market_value DOUBLE PRECISION,
			ytd_change DOUBLE PRECISION,
			prefix TEXT,
			version BIGINT DEFAULT 0,
			update_time BIGINT
		)`, s.dialect.table("stock_info")),
	}

	for _, stmt := range statements {
		if _, err := s.DB.Exec(stmt); err != nil {
			return helpers.NewDatabaseError(fmt.Sprintf("%s: create schema", s.dialect.name), err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Trade calendar
// -----------------------------------------------------------------------------

func (s *sqlStore) SaveTradeCalendar(ctx context.Context, days []models.MTradeDay) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewDatabaseError("begin trade calendar tx", err)
	}
	defer tx.Rollback()

	table := s.dialect.table("trade_calendar")
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return helpers.NewDatabaseError("clear trade calendar", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(fmt.Sprintf(
		`INSERT INTO %s (trade_date, weekday, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (trade_date) DO NOTHING`, table)))
	if err != nil {
		return helpers.NewDatabaseError("prepare trade calendar insert", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, d := range days {
		weekday := ""
		if t, err := time.Parse("2006-01-02", d.TradeDate); err == nil {
			weekday = t.Weekday().String()
		}
		if _, err := stmt.ExecContext(ctx, d.TradeDate, weekday, now); err != nil {
			return helpers.NewDatabaseError("insert trade day "+d.TradeDate, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helpers.NewDatabaseError("commit trade calendar", err)
	}
	s.Logger.Info("Trade calendar saved: %d days", len(days))
	return nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) LoadTradeDays(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		fmt.Sprintf("SELECT trade_date FROM %s ORDER BY trade_date", s.dialect.table("trade_calendar")))
	if err != nil {
		return nil, helpers.NewDatabaseError("load trade days", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, helpers.NewDatabaseError("scan trade day", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, helpers.NewDatabaseError("iterate trade days", err)
	}
	return days, nil
}

// -----------------------------------------------------------------------------
// Market activity
// -----------------------------------------------------------------------------

func (s *sqlStore) SaveMarketActivities(ctx context.Context, items []models.MMarketActivity) (int, int, error) {
	if len(items) == 0 {
		return 0, 0, nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, helpers.NewDatabaseError("begin market activity tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(fmt.Sprintf(
		`INSERT INTO %s (time, code, name, sector, related_info, data_date, create_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (code, time, sector, data_date) DO NOTHING`, s.dialect.table("market_activity"))))
	if err != nil {
		return 0, 0, helpers.NewDatabaseError("prepare market activity insert", err)
	}
	defer stmt.Close()

	saved, duplicate := 0, 0
	now := time.Now().UnixMilli()
	// Insert oldest first so create_time ordering matches arrival.
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		res, err := stmt.ExecContext(ctx, it.Time, it.Code, it.Name, it.Sector, it.RelatedInfo, it.DataDate, now)
		if err != nil {
			return saved, duplicate, helpers.NewDatabaseError("insert market activity", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			saved++
		} else {
			duplicate++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, helpers.NewDatabaseError("commit market activity", err)
	}
	return saved, duplicate, nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) FindMarketActivities(ctx context.Context, dataDate string, sectors []string, page, limit int) ([]models.MMarketActivity, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	where := "data_date = ?"
	args := []interface{}{dataDate}
	if len(sectors) > 0 {
		where += " AND sector IN (" + strings.TrimSuffix(strings.Repeat("?,", len(sectors)), ",") + ")"
		for _, sec := range sectors {
			args = append(args, sec)
		}
	}
	table := s.dialect.table("market_activity")

	var total int
	countQuery := s.dialect.rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, where))
	if err := s.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, helpers.NewDatabaseError("count market activity", err)
	}

	// Pages past the last row are empty; this also keeps the offset in range.
	if page-1 >= (total+limit-1)/limit {
		return []models.MMarketActivity{}, total, nil
	}
	offset := (page - 1) * limit

	query := s.dialect.rebind(fmt.Sprintf(
		`SELECT time, code, name, sector, COALESCE(related_info, ''), data_date FROM %s
		WHERE %s ORDER BY create_time DESC, time DESC, id DESC LIMIT ? OFFSET ?`, table, where))
	args = append(args, limit, offset)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, helpers.NewDatabaseError("query market activity", err)
	}
	defer rows.Close()

	out := make([]models.MMarketActivity, 0, min(limit, total-offset))
	for rows.Next() {
		var a models.MMarketActivity
		if err := rows.Scan(&a.Time, &a.Code, &a.Name, &a.Sector, &a.RelatedInfo, &a.DataDate); err != nil {
			return nil, 0, helpers.NewDatabaseError("scan market activity", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, helpers.NewDatabaseError("iterate market activity", err)
	}
	return out, total, nil
}

// -----------------------------------------------------------------------------
// Market effect
// -----------------------------------------------------------------------------

func (s *sqlStore) SaveMarketEffect(ctx context.Context, e models.MMarketEffect) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	query := s.dialect.rebind(fmt.Sprintf(
		`INSERT INTO %s (rise, limit_up, real_limit_up, st_limit_up, fall, limit_down, real_limit_down,
			st_limit_down, flat, suspended, activity, statistics_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.dialect.table("market_effect")))

	_, err := s.DB.ExecContext(ctx, query,
		e.Rise, e.LimitUp, e.RealLimitUp, e.StLimitUp, e.Fall, e.LimitDown, e.RealLimitDown,
		e.StLimitDown, e.Flat, e.Suspended, e.Activity, e.StatisticsDate, created.UnixMilli())
	if err != nil {
		return helpers.NewDatabaseError("insert market effect", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) LatestMarketEffect(ctx context.Context) (*models.MMarketEffect, error) {
	query := fmt.Sprintf(
		`SELECT rise, limit_up, real_limit_up, st_limit_up, fall, limit_down, real_limit_down,
			st_limit_down, flat, suspended, activity, statistics_date, created_at
		FROM %s ORDER BY created_at DESC, id DESC LIMIT 1`, s.dialect.table("market_effect"))

	var e models.MMarketEffect
	var created int64
	err := s.DB.QueryRowContext(ctx, query).Scan(
		&e.Rise, &e.LimitUp, &e.RealLimitUp, &e.StLimitUp, &e.Fall, &e.LimitDown, &e.RealLimitDown,
		&e.StLimitDown, &e.Flat, &e.Suspended, &e.Activity, &e.StatisticsDate, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, helpers.NewDatabaseError("query latest market effect", err)
	}
	e.CreatedAt = time.UnixMilli(created)
	return &e, nil
}

// -----------------------------------------------------------------------------
// Stock info
// -----------------------------------------------------------------------------

func (s *sqlStore) SaveStockInfo(ctx context.Context, infos []models.MStockInfo) (int, error) {
	query := s.dialect.rebind(fmt.Sprintf(
		`INSERT INTO %[1]s (symbol, name, total_market_value, circulation_market_value, ytd_change, prefix, version, update_time)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			name = excluded.name,
			total_market_value = excluded.total_market_value,
			circulation_market_value = excluded.circulation_market_value,
			ytd_change = excluded.ytd_change,
			prefix = excluded.prefix,
			version = %[1]s.version + 1,
			update_time = excluded.update_time`, s.dialect.table("stock_info")))

	written := 0
	for start := 0; start < len(infos); start += stockInfoBatchSize {
		end := start + stockInfoBatchSize
		if end > len(infos) {
			end = len(infos)
		}
		n, err := s.saveStockInfoBatch(ctx, query, infos[start:end])
		written += n
		if err != nil {
			return written, err
		}
		s.Logger.Debug("Stock info batch %d-%d saved", start, end)
	}
	return written, nil
}

func (s *sqlStore) saveStockInfoBatch(ctx context.Context, query string, batch []models.MStockInfo) (int, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, helpers.NewDatabaseError("begin stock info tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, helpers.NewDatabaseError("prepare stock info upsert", err)
	}
	defer stmt.Close()

	for _, si := range batch {
		prefix := si.Prefix
		if prefix == "" {
			prefix = ExchangePrefix(si.Symbol)
		}
		updated := si.UpdateTime
		if updated.IsZero() {
			updated = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, si.Symbol, si.Name, si.TotalMarketValue, si.CirculationMarketValue,
			si.YtdChange, prefix, updated.UnixMilli()); err != nil {
			return 0, helpers.NewDatabaseError("upsert stock info "+si.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, helpers.NewDatabaseError("commit stock info", err)
	}
	return len(batch), nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) CountStockInfo(ctx context.Context) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.dialect.table("stock_info"))
	if err := s.DB.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, helpers.NewDatabaseError("count stock info", err)
	}
	return n, nil
}

// -----------------------------------------------------------------------------

// GetStockInfo returns one row by symbol, or nil.
func (s *sqlStore) GetStockInfo(ctx context.Context, symbol string) (*models.MStockInfo, error) {
	query := s.dialect.rebind(fmt.Sprintf(
		`SELECT symbol, name, total_market_value, circulation_market_value, ytd_change, COALESCE(prefix, ''), update_time
		FROM %s WHERE symbol = ?`, s.dialect.table("stock_info")))

	var si models.MStockInfo
	var updated int64
	err := s.DB.QueryRowContext(ctx, query, symbol).Scan(&si.Symbol, &si.Name, &si.TotalMarketValue,
		&si.CirculationMarketValue, &si.YtdChange, &si.Prefix, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, helpers.NewDatabaseError("query stock info", err)
	}
	si.UpdateTime = time.UnixMilli(updated)
	return &si, nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
