package connectors

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// New builds the connector for a data source's dialect. The password is
// passed already decrypted; it goes into the DSN only and is never logged.
func New(ds *models.DataSource, password string, logger arbor.ILogger) (interfaces.Connector, error) {
	if ds == nil {
		return nil, fmt.Errorf("data source is nil")
	}

	switch ds.DBType {
	case models.DBTypePostgres:
		return newPostgresConnector(ds, password, logger), nil
	case models.DBTypeMySQL:
		return newMySQLConnector(ds, password, logger), nil
	case models.DBTypeMSSQL:
		return newMSSQLConnector(ds, password, logger), nil
	case models.DBTypeSQLite:
		return newSQLiteConnector(ds, logger), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", ds.DBType)
	}
}
