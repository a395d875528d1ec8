package prefs

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

// DuckStore keeps preferences in a DuckDB file so they survive restarts.
type DuckStore struct {
	db     *sql.DB
	dbPath string
	logger *zap.Logger
}

// OpenDuckStore opens or creates the preference database at dbPath.
func OpenDuckStore(dbPath string, logger *zap.Logger) (*DuckStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA threads=1",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				// Non-fatal
				logger.Warn("duckdb pragma failed", zap.String("pragma", pragma), zap.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS preferences (
			key   VARCHAR PRIMARY KEY,
			value VARCHAR NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create preferences table: %w", err)
	}

	logger.Debug("preference store opened", zap.String("path", dbPath))
	return &DuckStore{db: db, dbPath: dbPath, logger: logger}, nil
}

func (s *DuckStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading preference %s: %w", key, err)
	}
	return value, true, nil
}

func (s *DuckStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("writing preference %s: %w", key, err)
	}
	return nil
}

func (s *DuckStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM preferences WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting preference %s: %w", key, err)
	}
	return nil
}

// Close closes the database.
func (s *DuckStore) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *DuckStore) Path() string {
	return s.dbPath
}
