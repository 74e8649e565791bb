package connectors

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// connectTimeout bounds pool establishment and the connection probe
const connectTimeout = 10 * time.Second

// baseConnector carries the database/sql plumbing shared by all dialects.
// Dialect-specific catalog queries, placeholders and identifier quoting
// live in the embedding types.
type baseConnector struct {
	driverName string
	dsn        string
	dbType     models.DBType
	logger     arbor.ILogger

	mu sync.Mutex
	db *sql.DB
}

// Connect establishes the pool. Idempotent.
func (b *baseConnector) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db != nil {
		return nil
	}

	db, err := sql.Open(b.driverName, b.dsn)
	if err != nil {
		return &models.ConnectionError{Target: string(b.dbType), Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return &models.ConnectionError{Target: string(b.dbType), Err: err}
	}

	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	b.db = db

	b.logger.Debug().Str("db_type", string(b.dbType)).Msg("Connector pool established")
	return nil
}

// Disconnect closes the pool
func (b *baseConnector) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// DBType reports the dialect
func (b *baseConnector) DBType() models.DBType {
	return b.dbType
}

// conn returns the live pool or an error when not connected
func (b *baseConnector) conn() (*sql.DB, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil, fmt.Errorf("connector not connected")
	}
	return b.db, nil
}

// query runs a parameterized query and materializes all rows
func (b *baseConnector) query(ctx context.Context, query string, params []interface{}) ([]interfaces.Row, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return scanAll(rows)
}

// exec runs parameterized DML and returns affected rows
func (b *baseConnector) exec(ctx context.Context, query string, params []interface{}) (int64, error) {
	db, err := b.conn()
	if err != nil {
		return 0, err
	}

	result, err := db.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, fmt.Errorf("exec failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		// Some drivers cannot report affected rows; treat as zero.
		return 0, nil
	}
	return affected, nil
}

// stream runs a parameterized query and yields rows in batches
func (b *baseConnector) stream(ctx context.Context, query string, params []interface{}, batchSize int) (interfaces.RowStream, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("stream query failed: %w", err)
	}

	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	return &rowStream{rows: rows, columns: cols, batchSize: batchSize}, nil
}

// scanAll materializes every row of a result set
func scanAll(rows *sql.Rows) ([]interfaces.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []interfaces.Row
	for rows.Next() {
		row, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// scanRow scans the current row into a column-keyed map. Driver []byte
// values are converted to string so rows serialize cleanly.
func scanRow(rows *sql.Rows, cols []string) (interfaces.Row, error) {
	values := make([]interface{}, len(cols))
	pointers := make([]interface{}, len(cols))
	for i := range values {
		pointers[i] = &values[i]
	}

	if err := rows.Scan(pointers...); err != nil {
		return nil, fmt.Errorf("row scan failed: %w", err)
	}

	row := make(interfaces.Row, len(cols))
	for i, col := range cols {
		v := values[i]
		if raw, ok := v.([]byte); ok {
			v = string(raw)
		}
		row[col] = v
	}
	return row, nil
}

// rowStream implements interfaces.RowStream over *sql.Rows
type rowStream struct {
	rows      *sql.Rows
	columns   []string
	batchSize int

	mu     sync.Mutex
	closed bool
	done   bool
}

// Next returns the next batch, nil after exhaustion
func (s *rowStream) Next(ctx context.Context) ([]interfaces.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.done {
		return nil, nil
	}

	batch := make([]interfaces.Row, 0, s.batchSize)
	for len(batch) < s.batchSize {
		if err := ctx.Err(); err != nil {
			s.closeLocked()
			return nil, err
		}
		if !s.rows.Next() {
			s.done = true
			if err := s.rows.Err(); err != nil {
				s.closeLocked()
				return nil, err
			}
			s.closeLocked()
			break
		}
		row, err := scanRow(s.rows, s.columns)
		if err != nil {
			s.closeLocked()
			return nil, err
		}
		batch = append(batch, row)
	}

	if len(batch) == 0 {
		return nil, nil
	}
	return batch, nil
}

// Close releases the underlying cursor. Safe to call more than once.
func (s *rowStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *rowStream) closeLocked() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.rows.Close()
}
