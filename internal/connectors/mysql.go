package connectors

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// MySQLConnector implements Connector for MySQL
type MySQLConnector struct {
	baseConnector
}

func newMySQLConnector(ds *models.DataSource, password string, logger arbor.ILogger) *MySQLConnector {
	tls := "false"
	if ds.SSLEnabled {
		tls = "true"
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=%s",
		ds.Username, password, ds.Host, ds.Port, ds.Database, tls)

	return &MySQLConnector{baseConnector{
		driverName: "mysql",
		dsn:        dsn,
		dbType:     models.DBTypeMySQL,
		logger:     logger,
	}}
}

// TestConnection opens, probes with SELECT 1, and closes
func (c *MySQLConnector) TestConnection(ctx context.Context) interfaces.TestResult {
	return probe(ctx, c, "SELECT 1")
}

// Placeholder returns ?
func (c *MySQLConnector) Placeholder(index int) string {
	return "?"
}

// QuoteIdentifier backtick-quotes an identifier
func (c *MySQLConnector) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// ListTables discovers tables of the current database from
// information_schema, ordered by table then ordinal position.
func (c *MySQLConnector) ListTables(ctx context.Context) ([]models.TableInfo, error) {
	const columnsQuery = `
		SELECT c.table_schema AS sch, c.table_name AS tbl, c.column_name AS col,
		       c.data_type AS typ, c.is_nullable AS nullable,
		       COALESCE(c.column_default, '') AS dflt
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE t.table_type = 'BASE TABLE'
		  AND c.table_schema = DATABASE()
		ORDER BY c.table_schema, c.table_name, c.ordinal_position`

	const pkQuery = `
		SELECT table_schema AS sch, table_name AS tbl, column_name AS col
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND column_key = 'PRI'`

	return discoverTables(ctx, &c.baseConnector, columnsQuery, pkQuery)
}

// Query materializes all rows of a parameterized query
func (c *MySQLConnector) Query(ctx context.Context, query string, params []interface{}) ([]interfaces.Row, error) {
	return c.query(ctx, query, params)
}

// Stream yields rows in batches
func (c *MySQLConnector) Stream(ctx context.Context, query string, params []interface{}, batchSize int) (interfaces.RowStream, error) {
	return c.stream(ctx, query, params, batchSize)
}

// Exec runs parameterized DML
func (c *MySQLConnector) Exec(ctx context.Context, query string, params []interface{}) (int64, error) {
	return c.exec(ctx, query, params)
}
