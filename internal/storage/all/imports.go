// Package all wires all built-in connection backends into the storage
// registry.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each backend, which register their
// openers with the storage package. Importing it makes these kinds available:
//
//   - "postgres", "postgresql" (etlcore/internal/storage/postgres)
//   - "sqlite"                 (etlcore/internal/storage/sqlite)
//   - "mysql"                  (etlcore/internal/storage/mysql)
//   - "sqlserver", "mssql"     (etlcore/internal/storage/mssql)
//
// Typical usage (in cmd/etlcore or a similar wiring layer):
//
//	import (
//	    _ "etlcore/internal/storage/all" // enable all built-in backends
//
//	    "etlcore/internal/storage"
//	)
//
//	conn, err := storage.Open(ctx, storage.Config{Kind: "postgres", DSN: dsn})
//
// A binary that needs only some backends can import those packages directly
// instead of this one.
package all

import (
	_ "etlcore/internal/storage/mssql"
	_ "etlcore/internal/storage/mysql"
	_ "etlcore/internal/storage/postgres"
	_ "etlcore/internal/storage/sqlite"
)
