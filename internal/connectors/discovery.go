package connectors

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// probe opens a short-lived connection, runs the dialect's no-op query,
// and closes. Used by TestConnection on every dialect.
func probe(ctx context.Context, c interfaces.Connector, probeSQL string) interfaces.TestResult {
	if err := c.Connect(ctx); err != nil {
		return interfaces.TestResult{OK: false, Message: err.Error()}
	}
	defer c.Disconnect()

	if _, err := c.Query(ctx, probeSQL, nil); err != nil {
		return interfaces.TestResult{OK: false, Message: err.Error()}
	}
	return interfaces.TestResult{OK: true, Message: "connection successful"}
}

// discoverTables runs the dialect's catalog queries and assembles
// TableInfo values. Both queries must alias their result columns to
// sch, tbl, col, typ, nullable ('YES'/'NO') and dflt; the primary key
// query to sch, tbl, col. Output order is schema, table, then the
// ordinal position the columns query already established.
func discoverTables(ctx context.Context, b *baseConnector, columnsQuery, pkQuery string, params ...interface{}) ([]models.TableInfo, error) {
	colRows, err := b.query(ctx, columnsQuery, params)
	if err != nil {
		return nil, fmt.Errorf("catalog column query failed: %w", err)
	}

	pkRows, err := b.query(ctx, pkQuery, params)
	if err != nil {
		return nil, fmt.Errorf("catalog primary key query failed: %w", err)
	}

	pks := make(map[string]bool, len(pkRows))
	for _, row := range pkRows {
		key := fmt.Sprintf("%v.%v.%v", row["sch"], row["tbl"], row["col"])
		pks[key] = true
	}

	tables := make(map[string]*models.TableInfo)
	var order []string
	for _, row := range colRows {
		schema := asString(row["sch"])
		table := asString(row["tbl"])
		tableKey := schema + "." + table

		info, ok := tables[tableKey]
		if !ok {
			info = &models.TableInfo{Schema: schema, Table: table}
			tables[tableKey] = info
			order = append(order, tableKey)
		}

		colName := asString(row["col"])
		info.Columns = append(info.Columns, models.ColumnInfo{
			Name:         colName,
			Type:         asString(row["typ"]),
			Nullable:     strings.EqualFold(asString(row["nullable"]), "YES"),
			IsPrimaryKey: pks[schema+"."+table+"."+colName],
			DefaultValue: asString(row["dflt"]),
		})
	}

	sort.Strings(order)
	out := make([]models.TableInfo, 0, len(order))
	for _, key := range order {
		out = append(out, *tables[key])
	}
	return out, nil
}

func asString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
