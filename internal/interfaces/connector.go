package interfaces

import (
	"context"

	"github.com/Fazmin/syncengine/internal/models"
)

// Row is one database row keyed by column name
type Row = map[string]interface{}

// TestResult is the outcome of a connection probe
type TestResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// RowStream is a finite, forward-only, non-restartable sequence of row
// batches. The producer owns any server-side cursor and releases it on
// completion or Close. Consume to completion or call Close explicitly.
type RowStream interface {
	// Next returns the next batch, at most the configured batch size.
	// The final batch may be shorter. Returns (nil, nil) after exhaustion.
	Next(ctx context.Context) ([]Row, error)

	// Close releases the underlying cursor. Safe to call more than once.
	Close() error
}

// Connector is the uniform interface over the supported SQL dialects.
// Dialect-specific placeholder generation and catalog queries live inside
// each concrete implementation.
type Connector interface {
	// Connect establishes the pool. Idempotent.
	Connect(ctx context.Context) error

	// TestConnection opens, runs a no-op probe, and closes.
	TestConnection(ctx context.Context) TestResult

	// ListTables discovers user tables with columns, excluding catalog
	// tables, ordered by schema, table, then ordinal position.
	ListTables(ctx context.Context) ([]models.TableInfo, error)

	// Query runs a parameterized query and materializes all rows.
	Query(ctx context.Context, query string, params []interface{}) ([]Row, error)

	// Stream runs a parameterized query and yields rows in batches of at
	// most batchSize.
	Stream(ctx context.Context, query string, params []interface{}, batchSize int) (RowStream, error)

	// Exec runs parameterized DML and returns affected rows.
	Exec(ctx context.Context, query string, params []interface{}) (int64, error)

	// Placeholder returns the dialect placeholder for the 1-based
	// parameter index ($n, ?, or @paramN).
	Placeholder(index int) string

	// QuoteIdentifier quotes a schema/table/column identifier for the
	// dialect.
	QuoteIdentifier(name string) string

	// DBType reports the dialect.
	DBType() models.DBType

	// Disconnect closes the pool.
	Disconnect() error
}
