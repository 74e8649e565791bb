package connectors

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/models"
)

func testDataSource(dbType models.DBType) *models.DataSource {
	return &models.DataSource{
		ID:       "src_test",
		Name:     "test",
		DBType:   dbType,
		Host:     "db.example.com",
		Port:     5432,
		Database: "appdb",
		Username: "svc",
	}
}

func TestFactoryDispatch(t *testing.T) {
	logger := common.GetLogger()

	tests := []struct {
		dbType models.DBType
		want   models.DBType
	}{
		{models.DBTypePostgres, models.DBTypePostgres},
		{models.DBTypeMySQL, models.DBTypeMySQL},
		{models.DBTypeMSSQL, models.DBTypeMSSQL},
		{models.DBTypeSQLite, models.DBTypeSQLite},
	}

	for _, tt := range tests {
		t.Run(string(tt.dbType), func(t *testing.T) {
			conn, err := New(testDataSource(tt.dbType), "pw", logger)
			require.NoError(t, err)
			assert.Equal(t, tt.want, conn.DBType())
		})
	}
}

func TestFactoryRejectsUnknownType(t *testing.T) {
	_, err := New(testDataSource("oracle"), "pw", common.GetLogger())
	assert.Error(t, err)
}

func TestFactoryRejectsNilSource(t *testing.T) {
	_, err := New(nil, "pw", common.GetLogger())
	assert.Error(t, err)
}

func TestPlaceholders(t *testing.T) {
	logger := common.GetLogger()

	pg, _ := New(testDataSource(models.DBTypePostgres), "pw", logger)
	assert.Equal(t, "$1", pg.Placeholder(1))
	assert.Equal(t, "$3", pg.Placeholder(3))

	my, _ := New(testDataSource(models.DBTypeMySQL), "pw", logger)
	assert.Equal(t, "?", my.Placeholder(1))
	assert.Equal(t, "?", my.Placeholder(7))

	ms, _ := New(testDataSource(models.DBTypeMSSQL), "pw", logger)
	assert.Equal(t, "@param1", ms.Placeholder(1))
	assert.Equal(t, "@param2", ms.Placeholder(2))

	lt, _ := New(testDataSource(models.DBTypeSQLite), "pw", logger)
	assert.Equal(t, "?", lt.Placeholder(1))
}

func TestQuoteIdentifier(t *testing.T) {
	logger := common.GetLogger()

	pg, _ := New(testDataSource(models.DBTypePostgres), "pw", logger)
	assert.Equal(t, `"order"`, pg.QuoteIdentifier("order"))
	assert.Equal(t, `"a""b"`, pg.QuoteIdentifier(`a"b`))

	my, _ := New(testDataSource(models.DBTypeMySQL), "pw", logger)
	assert.Equal(t, "`order`", my.QuoteIdentifier("order"))
	assert.Equal(t, "`a``b`", my.QuoteIdentifier("a`b"))

	ms, _ := New(testDataSource(models.DBTypeMSSQL), "pw", logger)
	assert.Equal(t, "[order]", ms.QuoteIdentifier("order"))
	assert.Equal(t, "[a]]b]", ms.QuoteIdentifier("a]b"))
}

func TestNamedParams(t *testing.T) {
	named := namedParams([]interface{}{"a", 2})
	require.Len(t, named, 2)

	first, ok := named[0].(sql.NamedArg)
	require.True(t, ok)
	assert.Equal(t, "param1", first.Name)
	assert.Equal(t, "a", first.Value)

	second, ok := named[1].(sql.NamedArg)
	require.True(t, ok)
	assert.Equal(t, "param2", second.Name)
	assert.Equal(t, 2, second.Value)
}

func TestPostgresDSNEscapesCredentials(t *testing.T) {
	ds := testDataSource(models.DBTypePostgres)
	c := newPostgresConnector(ds, "p@ss/word", common.GetLogger())
	assert.Contains(t, c.dsn, "p%40ss%2Fword")
	assert.NotContains(t, c.dsn, "p@ss/word")
}

func TestSQLiteRoundTrip(t *testing.T) {
	ds := &models.DataSource{
		ID:       "src_lite",
		Name:     "lite",
		DBType:   models.DBTypeSQLite,
		Database: filepath.Join(t.TempDir(), "test.db"),
	}

	conn, err := New(ds, "", common.GetLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, conn.Connect(ctx))
	defer conn.Disconnect()

	_, err = conn.Exec(ctx, `CREATE TABLE products (id INTEGER PRIMARY KEY, name TEXT NOT NULL, price REAL)`, nil)
	require.NoError(t, err)

	affected, err := conn.Exec(ctx, "INSERT INTO products (name, price) VALUES (?, ?)", []interface{}{"widget", 9.99})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	rows, err := conn.Query(ctx, "SELECT name, price FROM products WHERE name = ?", []interface{}{"widget"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "widget", rows[0]["name"])

	tables, err := conn.ListTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "products", tables[0].Table)
	require.Len(t, tables[0].Columns, 3)
	assert.True(t, tables[0].Columns[0].IsPrimaryKey)
	assert.False(t, tables[0].Columns[1].Nullable)
	assert.True(t, tables[0].Columns[2].Nullable)
}

func TestSQLiteStream(t *testing.T) {
	ds := &models.DataSource{
		ID:       "src_lite",
		Name:     "lite",
		DBType:   models.DBTypeSQLite,
		Database: filepath.Join(t.TempDir(), "stream.db"),
	}

	conn, err := New(ds, "", common.GetLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, conn.Connect(ctx))
	defer conn.Disconnect()

	_, err = conn.Exec(ctx, "CREATE TABLE nums (n INTEGER)", nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = conn.Exec(ctx, "INSERT INTO nums (n) VALUES (?)", []interface{}{i})
		require.NoError(t, err)
	}

	stream, err := conn.Stream(ctx, "SELECT n FROM nums ORDER BY n", nil, 2)
	require.NoError(t, err)
	defer stream.Close()

	var total int
	for {
		batch, err := stream.Next(ctx)
		require.NoError(t, err)
		if batch == nil {
			break
		}
		assert.LessOrEqual(t, len(batch), 2)
		total += len(batch)
	}
	assert.Equal(t, 5, total)
}

func TestSQLiteTestConnection(t *testing.T) {
	ds := &models.DataSource{
		ID:       "src_lite",
		DBType:   models.DBTypeSQLite,
		Database: filepath.Join(t.TempDir(), "probe.db"),
	}

	conn, err := New(ds, "", common.GetLogger())
	require.NoError(t, err)

	result := conn.TestConnection(context.Background())
	assert.True(t, result.OK)
}
