package ddl

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"

	gddl "etlcore/internal/ddl"
)

// Execer runs a statement. *pgxpool.Pool, *pgxpool.Conn and pgx.Tx satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsureTable creates the table if it does not exist. It is idempotent.
func EnsureTable(ctx context.Context, db Execer, def gddl.TableDef) error {
	sql, err := BuildCreateTableSQL(def)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, sql)
	return err
}
