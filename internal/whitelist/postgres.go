package whitelist

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/raaihank/trace-sentinel/internal/config"
	"go.uber.org/zap"
)

// PostgresSource reads whitelist lines from a table with columns
// (id, line); lines are concatenated in id order.
type PostgresSource struct {
	db    *sqlx.DB
	query string
	url   string
}

// NewPostgresSource connects to the database and verifies the table exists
func NewPostgresSource(cfg config.PostgresSource, logger *zap.Logger) (*PostgresSource, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	source := newPostgresSource(db, cfg.Table, cfg.DatabaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var exists bool
	if err := db.GetContext(ctx, &exists, "SELECT to_regclass($1) IS NOT NULL", cfg.Table); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check whitelist table: %w", err)
	}
	if !exists {
		db.Close()
		return nil, fmt.Errorf("whitelist table %s does not exist", cfg.Table)
	}

	logger.Info("Postgres whitelist source initialized",
		zap.String("database_url", maskURL(cfg.DatabaseURL)),
		zap.String("table", cfg.Table),
		zap.Int("max_open_conns", cfg.MaxOpenConns))

	return source, nil
}

func newPostgresSource(db *sqlx.DB, table, url string) *PostgresSource {
	return &PostgresSource{
		db:    db,
		query: fmt.Sprintf("SELECT line FROM %s ORDER BY id", pq.QuoteIdentifier(table)),
		url:   url,
	}
}

func (s *PostgresSource) Name() string {
	return maskURL(s.url)
}

func (s *PostgresSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	var lines []string
	if err := s.db.SelectContext(ctx, &lines, s.query); err != nil {
		return nil, fmt.Errorf("failed to query whitelist: %w", err)
	}
	return io.NopCloser(strings.NewReader(strings.Join(lines, "\n"))), nil
}

// Close closes the database pool
func (s *PostgresSource) Close() error {
	return s.db.Close()
}
