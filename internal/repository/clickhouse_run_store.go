package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"TarLab/internal/domain/models"
	"TarLab/internal/domain/repository"
	applogger "TarLab/pkg/logger"
)

// Schema returns the DDL for the run tables in database db.
func Schema(db string) []string {
	return []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		`CREATE TABLE IF NOT EXISTS ` + db + `.tar_runs (
			id String,
			variant LowCardinality(String),
			label String,
			series_hash String,
			observations UInt32,
			rows UInt32,
			candidates UInt32,
			theta_first Float64,
			theta_last Float64,
			rho_hat Float64,
			intercept Float64,
			min_rss Float64,
			halflife Nullable(Float64),
			halflife_error String,
			ties UInt32,
			elapsed_ms UInt64,
			created_at DateTime64(3)
		) ENGINE = MergeTree ORDER BY (created_at, id)`,
		`CREATE TABLE IF NOT EXISTS ` + db + `.tar_rss_points (
			run_id String,
			theta_first Float64,
			theta_last Float64,
			rss Nullable(Float64),
			degenerate UInt8
		) ENGINE = MergeTree ORDER BY (run_id, theta_first, theta_last)`,
	}
}

// CHRunStore implements RunStore backed by ClickHouse.
type CHRunStore struct {
	db     *sql.DB
	dbName string
	l      *applogger.Logger
}

func NewCHRunStore(db *sql.DB, dbName string, l *applogger.Logger) *CHRunStore {
	return &CHRunStore{db: db, dbName: dbName, l: l}
}

func (s *CHRunStore) Init(ctx context.Context) error {
	for _, stmt := range Schema(s.dbName) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

const runColumns = "id, variant, label, series_hash, observations, rows, candidates, theta_first, theta_last, rho_hat, intercept, min_rss, halflife, halflife_error, ties, elapsed_ms, created_at"

func (s *CHRunStore) SaveRun(ctx context.Context, run *models.Run, points []models.RSSPoint) error {
	start := time.Now()
	q := fmt.Sprintf("INSERT INTO %s.tar_runs (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.dbName, runColumns)
	_, err := s.db.ExecContext(ctx, q,
		run.ID,
		string(run.Variant),
		run.Label,
		run.SeriesHash,
		uint32(run.Observations),
		uint32(run.Rows),
		uint32(run.Candidates),
		run.ThetaFirst,
		run.ThetaLast,
		run.RhoHat,
		run.Intercept,
		run.MinRSS,
		run.Halflife,
		run.HalflifeError,
		uint32(run.Ties),
		uint64(run.ElapsedMS),
		run.CreatedAt,
	)
	if err != nil {
		s.l.Error("clickhouse insert run failed", applogger.String("run_id", run.ID), applogger.Error(err))
		return fmt.Errorf("insert run: %w", err)
	}
	if err := s.insertPoints(ctx, points); err != nil {
		s.l.Error("clickhouse insert points failed",
			applogger.String("run_id", run.ID),
			applogger.Int("points", len(points)),
			applogger.Error(err),
		)
		return err
	}
	s.l.Debug("run stored",
		applogger.String("run_id", run.ID),
		applogger.Int("points", len(points)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// insertPoints writes multi-row VALUES chunks to keep round-trips low on
// large surfaces.
func (s *CHRunStore) insertPoints(ctx context.Context, points []models.RSSPoint) error {
	const chunkSize = 5000
	for lo := 0; lo < len(points); lo += chunkSize {
		hi := min(lo+chunkSize, len(points))
		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*5)
		for _, p := range points[lo:hi] {
			degenerate := uint8(0)
			if p.RSS == nil {
				degenerate = 1
			}
			values = append(values, "(?, ?, ?, ?, ?)")
			args = append(args, p.RunID, p.First, p.Last, p.RSS, degenerate)
		}
		q := fmt.Sprintf("INSERT INTO %s.tar_rss_points (run_id, theta_first, theta_last, rss, degenerate) VALUES %s",
			s.dbName, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert rss points: %w", err)
		}
	}
	return nil
}

func (s *CHRunStore) GetRun(ctx context.Context, id string) (*models.Run, error) {
	q := fmt.Sprintf("SELECT %s FROM %s.tar_runs WHERE id = ? LIMIT 1", runColumns, s.dbName)
	run, err := scanRun(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (s *CHRunStore) Points(ctx context.Context, id string) ([]models.RSSPoint, error) {
	q := fmt.Sprintf("SELECT theta_first, theta_last, rss, degenerate FROM %s.tar_rss_points WHERE run_id = ? ORDER BY theta_first, theta_last", s.dbName)
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	var out []models.RSSPoint
	for rows.Next() {
		var (
			p   = models.RSSPoint{RunID: id}
			rss sql.NullFloat64
			deg uint8
		)
		if err := rows.Scan(&p.First, &p.Last, &rss, &deg); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		if rss.Valid && deg == 0 {
			p.RSS = &rss.Float64
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *CHRunStore) ListRuns(ctx context.Context, since time.Time, limit int) ([]*models.Run, error) {
	q := fmt.Sprintf("SELECT %s FROM %s.tar_runs WHERE created_at >= ? ORDER BY created_at DESC LIMIT ?", runColumns, s.dbName)
	rows, err := s.db.QueryContext(ctx, q, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(r rowScanner) (*models.Run, error) {
	var (
		run                     models.Run
		variant                 string
		obs, rowsN, cands, ties uint32
		elapsed                 uint64
		halflife                sql.NullFloat64
	)
	err := r.Scan(&run.ID, &variant, &run.Label, &run.SeriesHash, &obs, &rowsN, &cands,
		&run.ThetaFirst, &run.ThetaLast, &run.RhoHat, &run.Intercept, &run.MinRSS,
		&halflife, &run.HalflifeError, &ties, &elapsed, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	run.Variant = models.Variant(variant)
	run.Observations, run.Rows, run.Candidates, run.Ties = int(obs), int(rowsN), int(cands), int(ties)
	run.ElapsedMS = int64(elapsed)
	if halflife.Valid {
		run.Halflife = &halflife.Float64
	}
	return &run, nil
}

func (s *CHRunStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *CHRunStore) Close() error {
	return nil
}
