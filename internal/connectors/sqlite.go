package connectors

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// SQLiteConnector implements Connector for SQLite files. The data
// source's Database field holds the file path; host, port and
// credentials are ignored.
type SQLiteConnector struct {
	baseConnector
}

func newSQLiteConnector(ds *models.DataSource, logger arbor.ILogger) *SQLiteConnector {
	return &SQLiteConnector{baseConnector{
		driverName: "sqlite",
		dsn:        ds.Database,
		dbType:     models.DBTypeSQLite,
		logger:     logger,
	}}
}

// TestConnection opens the file, reads the schema version, and closes
func (c *SQLiteConnector) TestConnection(ctx context.Context) interfaces.TestResult {
	return probe(ctx, c, "PRAGMA schema_version")
}

// Placeholder returns ?
func (c *SQLiteConnector) Placeholder(index int) string {
	return "?"
}

// QuoteIdentifier double-quotes an identifier
func (c *SQLiteConnector) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ListTables walks sqlite_master and reads each table's columns with
// PRAGMA table_info. SQLite has no schemas, so Schema is left empty.
func (c *SQLiteConnector) ListTables(ctx context.Context) ([]models.TableInfo, error) {
	names, err := c.query(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}

	tables := make([]models.TableInfo, 0, len(names))
	for _, row := range names {
		table := asString(row["name"])

		cols, err := c.query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", c.QuoteIdentifier(table)), nil)
		if err != nil {
			return nil, fmt.Errorf("table_info failed for %s: %w", table, err)
		}

		info := models.TableInfo{Table: table}
		for _, col := range cols {
			info.Columns = append(info.Columns, models.ColumnInfo{
				Name:         asString(col["name"]),
				Type:         asString(col["type"]),
				Nullable:     asString(col["notnull"]) == "0",
				IsPrimaryKey: asString(col["pk"]) != "0",
				DefaultValue: asString(col["dflt_value"]),
			})
		}
		tables = append(tables, info)
	}
	return tables, nil
}

// Query materializes all rows of a parameterized query
func (c *SQLiteConnector) Query(ctx context.Context, query string, params []interface{}) ([]interfaces.Row, error) {
	return c.query(ctx, query, params)
}

// Stream yields rows in batches
func (c *SQLiteConnector) Stream(ctx context.Context, query string, params []interface{}, batchSize int) (interfaces.RowStream, error) {
	return c.stream(ctx, query, params, batchSize)
}

// Exec runs parameterized DML
func (c *SQLiteConnector) Exec(ctx context.Context, query string, params []interface{}) (int64, error) {
	return c.exec(ctx, query, params)
}
