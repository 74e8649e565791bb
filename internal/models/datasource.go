package models

import "time"

// DBType identifies the SQL dialect of a data source
type DBType string

const (
	DBTypePostgres DBType = "postgresql"
	DBTypeMySQL    DBType = "mysql"
	DBTypeMSSQL    DBType = "mssql"
	DBTypeSQLite   DBType = "sqlite"
)

// ConnectionStatus reflects the last known connectivity of a data source
type ConnectionStatus string

const (
	ConnectionStatusUnknown   ConnectionStatus = "unknown"
	ConnectionStatusConnected ConnectionStatus = "connected"
	ConnectionStatusFailed    ConnectionStatus = "failed"
)

// DataSource describes a target relational database connection.
// Password may be ciphertext (SecretBox) or plaintext; it is decrypted
// only at the connector boundary and must never be logged.
type DataSource struct {
	ID               string           `json:"id" badgerhold:"key"`
	Name             string           `json:"name"`
	DBType           DBType           `json:"db_type" validate:"oneof=postgresql mysql mssql sqlite"`
	Host             string           `json:"host"`
	Port             int              `json:"port"`
	Database         string           `json:"database"`
	Username         string           `json:"username"`
	Password         string           `json:"password,omitempty"`
	SSLEnabled       bool             `json:"ssl_enabled"`
	ConnectionStatus ConnectionStatus `json:"connection_status"`
	LastTestedAt     *time.Time       `json:"last_tested_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Masked returns a copy safe for API responses and logs
func (d *DataSource) Masked() *DataSource {
	masked := *d
	if masked.Password != "" {
		masked.Password = "[REDACTED]"
	}
	return &masked
}
