package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"etf_agent/internal/models"
	"etf_agent/pkg/db"

	"github.com/jackc/pgx/v5"
)

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

const (
	createTableSQL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	st_code TEXT        NOT NULL,
	dt      TIMESTAMPTZ NOT NULL,
	open    DOUBLE PRECISION NOT NULL,
	high    DOUBLE PRECISION NOT NULL,
	low     DOUBLE PRECISION NOT NULL,
	close   DOUBLE PRECISION NOT NULL,
	volume  BIGINT      NOT NULL,
	PRIMARY KEY (st_code, dt)
)`
	latestSQL = `SELECT COALESCE(MAX(dt), to_timestamp(0)) FROM %[1]s WHERE st_code = $1`
	insertSQL = `
INSERT INTO %[1]s (st_code, dt, open, high, low, close, volume)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (st_code, dt) DO NOTHING`
	rangeSQL = `
SELECT st_code, dt, open, high, low, close, volume
FROM %[1]s
WHERE st_code = ANY($1) AND dt >= $2
ORDER BY st_code ASC, dt ASC`
)

// PgStore: BarStore в Postgres, одна таблица на логическую серию.
type PgStore struct {
	db    *db.PgTxManager
	table string
	loc   *time.Location
}

func NewPgStore(tx *db.PgTxManager, table string, loc *time.Location) (*PgStore, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("pg.NewPgStore: bad table name %q", table)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &PgStore{db: tx, table: table, loc: loc}, nil
}

func (s *PgStore) Name() string { return s.table }

func (s *PgStore) q(tmpl string) string { return fmt.Sprintf(tmpl, s.table) }

// EnsureSchema создаёт таблицу, если её нет.
func (s *PgStore) EnsureSchema(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.EnsureSchema(%s): %w", s.table, err)
		}
	}()
	_, err = s.db.Conn().Exec(ctx, s.q(createTableSQL))
	return err
}

func (s *PgStore) Append(ctx context.Context, rows []models.Bar) (inserted int, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Append(%s): %w", s.table, err)
		}
	}()
	if len(rows) == 0 {
		return 0, nil
	}

	err = s.db.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		inserted = 0
		fresh, err := aboveWatermark(rows, func(code string) (last time.Time, err error) {
			err = tx.QueryRow(ctxTx, s.q(latestSQL), code).Scan(&last)
			return last, err
		})
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, b := range fresh {
			batch.Queue(s.q(insertSQL), b.Code, b.Time, b.Open, b.High, b.Low, b.Close, b.Volume)
		}

		if batch.Len() == 0 {
			return nil
		}
		br := tx.SendBatch(ctxTx, batch)
		for i := 0; i < batch.Len(); i++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return fmt.Errorf("insert: %w", err)
			}
			inserted += int(tag.RowsAffected())
		}
		return br.Close()
	})
	return inserted, err
}

func (s *PgStore) LastNDays(ctx context.Context, codes []string, n int, now time.Time) (out models.Series, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.LastNDays(%s): %w", s.table, err)
		}
	}()
	cutoff := cutoffFor(now.In(s.loc), n)
	out = make(models.Series, len(codes))

	err = s.db.RunRepeatableRead(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		rows, err := tx.Query(ctxTx, s.q(rangeSQL), codes, cutoff)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var b models.Bar
			if err := rows.Scan(&b.Code, &b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
				return err
			}
			b.Time = b.Time.In(s.loc)
			out[b.Code] = append(out[b.Code], b)
		}
		return rows.Err()
	})
	return out, err
}

func (s *PgStore) LatestTimestamp(ctx context.Context, code string) (ts time.Time, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.LatestTimestamp(%s): %w", s.table, err)
		}
	}()
	if err = s.db.Conn().QueryRow(ctx, s.q(latestSQL), code).Scan(&ts); err != nil {
		return Epoch, err
	}
	if ts.Equal(Epoch) {
		return Epoch, nil
	}
	return ts.In(s.loc), nil
}
