// Package all registers every lake backend via side-effect imports.
package all

import (
	_ "dataprof/internal/lake/mssql"
	_ "dataprof/internal/lake/mysql"
	_ "dataprof/internal/lake/postgres"
	_ "dataprof/internal/lake/sqlite"
)
