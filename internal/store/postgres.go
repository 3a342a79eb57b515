package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rickgao/quotesync/internal/model"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres creates a Postgres store.
func NewPostgres(db *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: db, logger: logger}
}

// Ping verifies the connection is healthy.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// -----------------------------------------------------------------------------
// Catalog
// -----------------------------------------------------------------------------

const instrumentColumns = `symbol, code, name, exchange, category, active,
	listed_on, delisted_on, last_synced_on, first_seen_at, updated_at`

// GetInstrument returns one instrument or ErrNotFound.
func (s *Postgres) GetInstrument(ctx context.Context, symbol string) (model.Instrument, error) {
	row := s.db.QueryRow(ctx, `SELECT `+instrumentColumns+` FROM instruments WHERE symbol = $1`, symbol)
	inst, err := scanInstrument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Instrument{}, fmt.Errorf("instrument %s: %w", symbol, ErrNotFound)
	}
	if err != nil {
		return model.Instrument{}, fmt.Errorf("get instrument %s: %w", symbol, err)
	}
	return inst, nil
}

// ListInstruments returns matching instruments ordered by symbol.
func (s *Postgres) ListInstruments(ctx context.Context, f Filter) ([]model.Instrument, error) {
	var (
		where []string
		args  []any
	)
	if f.Category.Valid() {
		args = append(args, f.Category.String())
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if len(f.Exchanges) > 0 {
		args = append(args, f.Exchanges)
		where = append(where, fmt.Sprintf("exchange = ANY($%d)", len(args)))
	}
	if f.ActiveOnly {
		where = append(where, "active")
	}

	query := `SELECT ` + instrumentColumns + ` FROM instruments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY symbol"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	var out []model.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// UpsertInstruments inserts or refreshes catalog rows in one batch.
func (s *Postgres) UpsertInstruments(ctx context.Context, insts []model.Instrument) (UpsertStats, error) {
	var stats UpsertStats
	if len(insts) == 0 {
		return stats, nil
	}

	batch := &pgx.Batch{}
	for _, inst := range insts {
		batch.Queue(`
			INSERT INTO instruments (symbol, code, name, exchange, category, active,
				listed_on, delisted_on, first_seen_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (symbol) DO UPDATE SET
				code = EXCLUDED.code,
				name = EXCLUDED.name,
				exchange = EXCLUDED.exchange,
				category = CASE WHEN instruments.last_synced_on IS NULL
					THEN EXCLUDED.category ELSE instruments.category END,
				active = EXCLUDED.active,
				listed_on = COALESCE(EXCLUDED.listed_on, instruments.listed_on),
				delisted_on = COALESCE(EXCLUDED.delisted_on, instruments.delisted_on),
				updated_at = now()
			WHERE (instruments.code, instruments.name, instruments.exchange, instruments.active)
				IS DISTINCT FROM (EXCLUDED.code, EXCLUDED.name, EXCLUDED.exchange, EXCLUDED.active)
			   OR (instruments.last_synced_on IS NULL AND instruments.category <> EXCLUDED.category)
			   OR (EXCLUDED.listed_on IS NOT NULL AND instruments.listed_on IS DISTINCT FROM EXCLUDED.listed_on)
			   OR (EXCLUDED.delisted_on IS NOT NULL AND instruments.delisted_on IS DISTINCT FROM EXCLUDED.delisted_on)
			RETURNING (xmax = 0) AS inserted
		`, inst.Symbol, inst.Code, inst.Name, inst.Exchange, inst.Category.String(), inst.Active,
			inst.ListedOn, inst.DelistedOn)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for _, inst := range insts {
		var inserted bool
		err := results.QueryRow().Scan(&inserted)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// Unchanged.
		case err != nil:
			return stats, fmt.Errorf("upsert instrument %s: %w", inst.Symbol, err)
		case inserted:
			stats.Inserted++
		default:
			stats.Updated++
		}
	}

	return stats, nil
}

// DeactivateMissing flips active off for instruments absent from keep.
func (s *Postgres) DeactivateMissing(ctx context.Context, cat model.Category, exchange string, keep []string) (int, error) {
	if keep == nil {
		keep = []string{}
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE instruments SET active = false, updated_at = now()
		WHERE category = $1 AND exchange = $2 AND active AND NOT (symbol = ANY($3))
	`, cat.String(), exchange, keep)
	if err != nil {
		return 0, fmt.Errorf("deactivate missing %s/%s: %w", cat, exchange, err)
	}
	return int(tag.RowsAffected()), nil
}

func scanInstrument(row pgx.Row) (model.Instrument, error) {
	var (
		inst     model.Instrument
		category string
	)
	err := row.Scan(&inst.Symbol, &inst.Code, &inst.Name, &inst.Exchange, &category, &inst.Active,
		&inst.ListedOn, &inst.DelistedOn, &inst.LastSyncedOn, &inst.FirstSeenAt, &inst.UpdatedAt)
	if err != nil {
		return model.Instrument{}, err
	}
	if inst.Category, err = model.ParseCategory(category); err != nil {
		return model.Instrument{}, fmt.Errorf("instrument %s: %w", inst.Symbol, err)
	}
	return inst, nil
}

// -----------------------------------------------------------------------------
// Bars
// -----------------------------------------------------------------------------

// LastClose returns the close of the latest stored bar before the given date.
func (s *Postgres) LastClose(ctx context.Context, symbol string, before time.Time) (decimal.NullDecimal, error) {
	var close decimal.NullDecimal
	err := s.db.QueryRow(ctx, `
		SELECT close FROM daily_bars
		WHERE symbol = $1 AND trade_date < $2
		ORDER BY trade_date DESC LIMIT 1
	`, symbol, before).Scan(&close)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.NullDecimal{}, nil
	}
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("last close %s: %w", symbol, err)
	}
	return close, nil
}

// WriteBars upserts bars with pgx.Batch and advances the watermark, all in
// one transaction.
func (s *Postgres) WriteBars(ctx context.Context, symbol string, bars []model.DailyBar, watermark time.Time) (WriteResult, error) {
	var res WriteResult
	start := time.Now()

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		res = WriteResult{}

		if len(bars) > 0 {
			batch := &pgx.Batch{}
			for _, b := range bars {
				batch.Queue(upsertBarSQL,
					b.TradeDate, b.Symbol, b.Open, b.High, b.Low, b.Close,
					b.Volume, b.Turnover, b.TurnoverEstimated,
					b.Change, b.ChangePct, b.PremiumRate)
			}

			results := tx.SendBatch(ctx, batch)
			for _, b := range bars {
				var inserted bool
				err := results.QueryRow().Scan(&inserted)
				switch {
				case errors.Is(err, pgx.ErrNoRows):
					// Existing row, nothing to backfill.
				case err != nil:
					results.Close()
					return fmt.Errorf("upsert bar %s %s: %w", symbol, model.FormatDate(b.TradeDate), err)
				case inserted:
					res.Inserted++
				default:
					res.Backfilled++
				}
			}
			if err := results.Close(); err != nil {
				return fmt.Errorf("close batch: %w", err)
			}
		}

		err := tx.QueryRow(ctx, `
			UPDATE instruments
			SET last_synced_on = GREATEST(COALESCE(last_synced_on, $2::date), $2::date),
			    updated_at = now()
			WHERE symbol = $1
			RETURNING last_synced_on
		`, symbol, watermark).Scan(&res.Watermark)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("advance watermark %s: %w", symbol, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("advance watermark %s: %w", symbol, err)
		}
		return nil
	})
	if err != nil {
		return WriteResult{}, err
	}

	s.logger.Debug("wrote bars",
		"symbol", symbol,
		"inserted", res.Inserted,
		"backfilled", res.Backfilled,
		"duration", time.Since(start),
	)
	return res, nil
}

// upsertBarSQL inserts a bar; on conflict it only fills fields that were
// previously null (or an estimated turnover) and returns no row otherwise.
const upsertBarSQL = `
	INSERT INTO daily_bars (trade_date, symbol, open, high, low, close,
		volume, turnover, turnover_estimated, price_change, change_pct, premium_rate)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (trade_date, symbol) DO UPDATE SET
		price_change = COALESCE(daily_bars.price_change, EXCLUDED.price_change),
		change_pct = COALESCE(daily_bars.change_pct, EXCLUDED.change_pct),
		premium_rate = COALESCE(daily_bars.premium_rate, EXCLUDED.premium_rate),
		turnover = CASE WHEN daily_bars.turnover_estimated AND NOT EXCLUDED.turnover_estimated
			THEN EXCLUDED.turnover ELSE daily_bars.turnover END,
		turnover_estimated = daily_bars.turnover_estimated AND EXCLUDED.turnover_estimated,
		updated_at = now()
	WHERE (daily_bars.price_change IS NULL AND EXCLUDED.price_change IS NOT NULL)
	   OR (daily_bars.change_pct IS NULL AND EXCLUDED.change_pct IS NOT NULL)
	   OR (daily_bars.premium_rate IS NULL AND EXCLUDED.premium_rate IS NOT NULL)
	   OR (daily_bars.turnover_estimated AND NOT EXCLUDED.turnover_estimated)
	RETURNING (xmax = 0) AS inserted
`

// -----------------------------------------------------------------------------
// Runs
// -----------------------------------------------------------------------------

// CreateRun inserts a new sync run.
func (s *Postgres) CreateRun(ctx context.Context, run model.SyncRun) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sync_runs (id, scope, category, started_at, status)
		VALUES ($1, $2, $3, $4, $5)
	`, run.ID, run.Scope, run.Category.String(), run.StartedAt, string(run.Status))
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	return nil
}

// UpdateRun stores the current counters and status of a run.
func (s *Postgres) UpdateRun(ctx context.Context, run model.SyncRun) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE sync_runs SET
			finished_at = $2, status = $3, succeeded = $4, up_to_date = $5,
			failed = $6, suspicious = $7, rows_written = $8, last_error = $9
		WHERE id = $1
	`, run.ID, run.FinishedAt, string(run.Status), run.Succeeded, run.UpToDate,
		run.Failed, run.Suspicious, run.RowsWritten, run.Error)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Postgres) ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, scope, category, started_at, finished_at, status,
			succeeded, up_to_date, failed, suspicious, rows_written, last_error
		FROM sync_runs ORDER BY started_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []model.SyncRun
	for rows.Next() {
		var (
			run      model.SyncRun
			category string
			status   string
		)
		if err := rows.Scan(&run.ID, &run.Scope, &category, &run.StartedAt, &run.FinishedAt, &status,
			&run.Succeeded, &run.UpToDate, &run.Failed, &run.Suspicious, &run.RowsWritten, &run.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Category, _ = model.ParseCategory(category)
		run.Status = model.RunStatus(status)
		out = append(out, run)
	}
	return out, rows.Err()
}
