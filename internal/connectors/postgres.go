package connectors

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// PostgresConnector implements Connector for PostgreSQL via pgx stdlib
type PostgresConnector struct {
	baseConnector
}

func newPostgresConnector(ds *models.DataSource, password string, logger arbor.ILogger) *PostgresConnector {
	sslMode := "disable"
	if ds.SSLEnabled {
		sslMode = "require"
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(ds.Username), url.QueryEscape(password),
		ds.Host, ds.Port, url.PathEscape(ds.Database), sslMode)

	return &PostgresConnector{baseConnector{
		driverName: "pgx",
		dsn:        dsn,
		dbType:     models.DBTypePostgres,
		logger:     logger,
	}}
}

// TestConnection opens, probes with SELECT 1, and closes
func (c *PostgresConnector) TestConnection(ctx context.Context) interfaces.TestResult {
	return probe(ctx, c, "SELECT 1")
}

// Placeholder returns $n
func (c *PostgresConnector) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// QuoteIdentifier double-quotes an identifier
func (c *PostgresConnector) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ListTables discovers user tables from information_schema, excluding
// pg_catalog and information_schema, ordered by schema, table, ordinal.
func (c *PostgresConnector) ListTables(ctx context.Context) ([]models.TableInfo, error) {
	const columnsQuery = `
		SELECT c.table_schema AS sch, c.table_name AS tbl, c.column_name AS col,
		       c.data_type AS typ, c.is_nullable AS nullable,
		       COALESCE(c.column_default, '') AS dflt
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE t.table_type = 'BASE TABLE'
		  AND c.table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY c.table_schema, c.table_name, c.ordinal_position`

	const pkQuery = `
		SELECT kcu.table_schema AS sch, kcu.table_name AS tbl, kcu.column_name AS col
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name
		 AND kcu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'`

	return discoverTables(ctx, &c.baseConnector, columnsQuery, pkQuery)
}

// Query materializes all rows of a parameterized query
func (c *PostgresConnector) Query(ctx context.Context, query string, params []interface{}) ([]interfaces.Row, error) {
	return c.query(ctx, query, params)
}

// Stream yields rows in batches
func (c *PostgresConnector) Stream(ctx context.Context, query string, params []interface{}, batchSize int) (interfaces.RowStream, error) {
	return c.stream(ctx, query, params, batchSize)
}

// Exec runs parameterized DML
func (c *PostgresConnector) Exec(ctx context.Context, query string, params []interface{}) (int64, error) {
	return c.exec(ctx, query, params)
}
