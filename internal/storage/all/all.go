// Package all registers every storage backend. Importing it for side effects
// gives a binary access to the full set of sinks:
//
//	import _ "sparkify/internal/storage/all"
package all

import (
	_ "sparkify/internal/storage/mssql"
	_ "sparkify/internal/storage/parquet"
	_ "sparkify/internal/storage/postgres"
	_ "sparkify/internal/storage/sqlite"
)
