// Package storage is the optional run audit store. When a database DSN is
// configured, completed ranking passes and market score snapshots are
// recorded for later inspection; the engine itself never reads from here.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/liamashdown/polyrank/internal/config"
	"github.com/liamashdown/polyrank/internal/metrics"
)

// DB wraps the GORM database connection
type DB struct {
	conn *gorm.DB
	log  *logrus.Logger
}

// New creates a new database connection with GORM
func New(cfg *config.Config, log *logrus.Logger) (*DB, error) {
	// Configure GORM logger
	gormLogger := logger.New(
		&gormLogAdapter{log: log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(mysql.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.DatabaseMaxConns)
	sqlDB.SetMaxIdleConns(cfg.DatabaseMaxConns / 2)
	sqlDB.SetConnMaxIdleTime(cfg.DatabaseMaxIdleTime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("Database connection established")

	return &DB{conn: conn, log: log}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs GORM auto-migration (for development only)
func (db *DB) AutoMigrate() error {
	return db.conn.AutoMigrate(
		&RankingRun{},
		&MarketScore{},
	)
}

// InsertRankingRun records one completed ranking pass
func (db *DB) InsertRankingRun(ctx context.Context, run *RankingRun) error {
	start := time.Now()
	err := db.conn.WithContext(ctx).Create(run).Error
	metrics.RecordDatabaseQuery("insert_ranking_run", time.Since(start), err)
	return err
}

// InsertMarketScores records a batch of market score snapshots
func (db *DB) InsertMarketScores(ctx context.Context, scores []MarketScore) error {
	if len(scores) == 0 {
		return nil
	}
	start := time.Now()
	err := db.conn.WithContext(ctx).Create(&scores).Error
	metrics.RecordDatabaseQuery("insert_market_scores", time.Since(start), err)
	return err
}

// RecentRankingRuns retrieves the most recent ranking runs, newest first
func (db *DB) RecentRankingRuns(ctx context.Context, limit int) ([]RankingRun, error) {
	if limit < 1 {
		limit = 20
	}
	start := time.Now()
	var runs []RankingRun
	err := db.conn.WithContext(ctx).
		Order("created_ts DESC").
		Limit(limit).
		Find(&runs).Error
	metrics.RecordDatabaseQuery("recent_ranking_runs", time.Since(start), err)
	return runs, err
}

// LatestMarketScores retrieves the most recent score snapshots for a slug
func (db *DB) LatestMarketScores(ctx context.Context, slug string, limit int) ([]MarketScore, error) {
	if limit < 1 {
		limit = 20
	}
	start := time.Now()
	var scores []MarketScore
	err := db.conn.WithContext(ctx).
		Where("market_slug = ?", slug).
		Order("created_ts DESC").
		Limit(limit).
		Find(&scores).Error
	metrics.RecordDatabaseQuery("latest_market_scores", time.Since(start), err)
	return scores, err
}

// gormLogAdapter adapts logrus to GORM's logger interface
type gormLogAdapter struct {
	log *logrus.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
