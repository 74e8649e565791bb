package models

// ColumnInfo describes one column as discovered from a dialect's catalog.
// Type holds the raw dialect type string; downstream components normalize.
type ColumnInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Nullable     bool   `json:"nullable"`
	IsPrimaryKey bool   `json:"is_primary_key"`
	DefaultValue string `json:"default_value,omitempty"`
}

// TableInfo describes one discovered table with its columns in ordinal order
type TableInfo struct {
	Schema  string       `json:"schema"`
	Table   string       `json:"table"`
	Columns []ColumnInfo `json:"columns"`
}

// QualifiedName returns schema.table, or just table for schemaless dialects
func (t *TableInfo) QualifiedName() string {
	if t.Schema != "" {
		return t.Schema + "." + t.Table
	}
	return t.Table
}

// DatabaseSchema is the mapper's projection of connector discovery
type DatabaseSchema struct {
	DataSourceID string      `json:"data_source_id"`
	DBType       DBType      `json:"db_type"`
	Tables       []TableInfo `json:"tables"`
}

// FindTable locates a table by name, optionally schema-qualified
func (s *DatabaseSchema) FindTable(name string) *TableInfo {
	for i := range s.Tables {
		if s.Tables[i].Table == name || s.Tables[i].QualifiedName() == name {
			return &s.Tables[i]
		}
	}
	return nil
}
