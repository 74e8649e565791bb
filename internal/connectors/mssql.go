package connectors

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// MSSQLConnector implements Connector for SQL Server. Parameters are
// positional on the interface but bound as named @paramN args, matching
// the placeholder contract users write in whereClause literals.
type MSSQLConnector struct {
	baseConnector
}

func newMSSQLConnector(ds *models.DataSource, password string, logger arbor.ILogger) *MSSQLConnector {
	encrypt := "disable"
	if ds.SSLEnabled {
		encrypt = "true"
	}
	query := url.Values{}
	query.Set("database", ds.Database)
	query.Set("encrypt", encrypt)

	dsn := (&url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(ds.Username, password),
		Host:     fmt.Sprintf("%s:%d", ds.Host, ds.Port),
		RawQuery: query.Encode(),
	}).String()

	return &MSSQLConnector{baseConnector{
		driverName: "sqlserver",
		dsn:        dsn,
		dbType:     models.DBTypeMSSQL,
		logger:     logger,
	}}
}

// TestConnection opens, probes with SELECT 1, and closes
func (c *MSSQLConnector) TestConnection(ctx context.Context) interfaces.TestResult {
	return probe(ctx, c, "SELECT 1")
}

// Placeholder returns @paramN
func (c *MSSQLConnector) Placeholder(index int) string {
	return fmt.Sprintf("@param%d", index)
}

// QuoteIdentifier bracket-quotes an identifier
func (c *MSSQLConnector) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// ListTables discovers user tables from INFORMATION_SCHEMA, excluding the
// sys schema, ordered by schema, table, ordinal position.
func (c *MSSQLConnector) ListTables(ctx context.Context) ([]models.TableInfo, error) {
	const columnsQuery = `
		SELECT c.TABLE_SCHEMA AS sch, c.TABLE_NAME AS tbl, c.COLUMN_NAME AS col,
		       c.DATA_TYPE AS typ, c.IS_NULLABLE AS nullable,
		       COALESCE(c.COLUMN_DEFAULT, '') AS dflt
		FROM INFORMATION_SCHEMA.COLUMNS c
		JOIN INFORMATION_SCHEMA.TABLES t
		  ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
		WHERE t.TABLE_TYPE = 'BASE TABLE'
		  AND c.TABLE_SCHEMA NOT IN ('sys', 'INFORMATION_SCHEMA')
		ORDER BY c.TABLE_SCHEMA, c.TABLE_NAME, c.ORDINAL_POSITION`

	const pkQuery = `
		SELECT kcu.TABLE_SCHEMA AS sch, kcu.TABLE_NAME AS tbl, kcu.COLUMN_NAME AS col
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		  ON kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
		 AND kcu.TABLE_SCHEMA = tc.TABLE_SCHEMA
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'`

	return discoverTables(ctx, &c.baseConnector, columnsQuery, pkQuery)
}

// Query materializes all rows of a parameterized query
func (c *MSSQLConnector) Query(ctx context.Context, query string, params []interface{}) ([]interfaces.Row, error) {
	return c.query(ctx, query, namedParams(params))
}

// Stream yields rows in batches
func (c *MSSQLConnector) Stream(ctx context.Context, query string, params []interface{}, batchSize int) (interfaces.RowStream, error) {
	return c.stream(ctx, query, namedParams(params), batchSize)
}

// Exec runs parameterized DML
func (c *MSSQLConnector) Exec(ctx context.Context, query string, params []interface{}) (int64, error) {
	return c.exec(ctx, query, namedParams(params))
}

// namedParams converts positional values to @param1..@paramN named args
func namedParams(params []interface{}) []interface{} {
	named := make([]interface{}, len(params))
	for i, p := range params {
		named[i] = sql.Named(fmt.Sprintf("param%d", i+1), p)
	}
	return named
}
