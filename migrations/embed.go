// Package migrations embeds the SQL schema files for the local client state
// and for both backend dialects.
package migrations

import "embed"

//go:embed local/*.sql backend/sqlite/*.sql backend/postgres/*.sql
var FS embed.FS

const (
	Local           = "local"
	BackendSQLite   = "backend/sqlite"
	BackendPostgres = "backend/postgres"
)
