package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/smukkama/coverage-server/internal/protocol"
)

// PostgresStore keeps results in the task_results table. Expired rows are
// invisible to Get and removed by PurgeExpired.
type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Connect opens and pings a Postgres connection pool.
func Connect(connectionString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

// RunMigrations executes all SQL migration files in dir in name order.
func RunMigrations(ctx context.Context, db *sql.DB, dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		content, err := os.ReadFile(filepath.Join(dir, filename))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", filename, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return nil, fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}
	return sqlFiles, nil
}

// NewPostgresStore creates a store whose rows expire after ttl.
func NewPostgresStore(db *sql.DB, ttl time.Duration) *PostgresStore {
	return &PostgresStore{db: db, ttl: ttl, now: time.Now}
}

// Put upserts the result row for its task id.
func (s *PostgresStore) Put(ctx context.Context, r *protocol.TaskResult) error {
	payload, err := encodePayload(r)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO task_results (task_id, task_name, status, payload, date_done, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (task_id) DO UPDATE
		SET task_name = EXCLUDED.task_name,
		    status = EXCLUDED.status,
		    payload = EXCLUDED.payload,
		    date_done = EXCLUDED.date_done,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = CURRENT_TIMESTAMP
	`
	expires := s.now().UTC().Add(s.ttl)
	if _, err := s.db.ExecContext(ctx, query, r.TaskID, r.Name, string(r.Status), payload, r.DateDone, expires); err != nil {
		return fmt.Errorf("failed to upsert result %s: %w", r.TaskID, err)
	}
	return nil
}

// Get retrieves an unexpired result by task id.
func (s *PostgresStore) Get(ctx context.Context, taskID string) (*protocol.TaskResult, error) {
	query := `
		SELECT payload
		FROM task_results
		WHERE task_id = $1 AND expires_at > $2
	`

	var payload []byte
	err := s.db.QueryRowContext(ctx, query, taskID, s.now().UTC()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result %s: %w", taskID, err)
	}
	return decodePayload(payload)
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM task_results WHERE expires_at <= $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired results: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks connectivity for health reporting.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
