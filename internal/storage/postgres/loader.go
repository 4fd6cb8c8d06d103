package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"etlcore/internal/etlerr"
	pgddl "etlcore/internal/storage/postgres/ddl"
	"etlcore/internal/table"
)

// DefaultChunkSize is the number of rows per COPY when Loader.ChunkSize is
// zero.
const DefaultChunkSize = 100_000

// Target names the destination table and how rows land in it.
type Target struct {
	Schema     string   // optional; empty uses search_path
	Table      string   // required
	AutoCreate bool     // CREATE TABLE IF NOT EXISTS from the table's columns
	Upsert     bool     // merge on PrimaryKey instead of appending
	PrimaryKey []string // required when Upsert is set
}

// Validate checks the target on its own and against the columns of t.
func (tg Target) Validate(t *table.Table) error {
	if strings.TrimSpace(tg.Table) == "" {
		return etlerr.Configf("postgres target", "table name is required")
	}
	if tg.Upsert && len(tg.PrimaryKey) == 0 {
		return etlerr.Configf("postgres target", "upsert into %s requires a primary key", tg.Table)
	}
	if t == nil || t.NumCols() == 0 {
		return nil
	}
	for _, k := range tg.PrimaryKey {
		if _, ok := t.Column(k); !ok {
			return etlerr.Configf("postgres target", "primary key column %q is not a table column", k)
		}
	}
	return nil
}

func (tg Target) quoted() string { return pgddl.QuoteTable(tg.Schema, tg.Table) }

// Loader writes tables into Postgres through a shared pool.
type Loader struct {
	Pool      *pgxpool.Pool
	ChunkSize int
}

// execer runs a statement. *pgxpool.Conn and pgx.Tx satisfy it.
type execer = pgddl.Execer

// Load writes t into the target and returns the number of rows copied.
// Append mode copies straight into the target without a transaction, so a
// failure can leave earlier chunks behind. Upsert mode stages every chunk in
// a temporary table and merges inside one transaction.
func (l *Loader) Load(ctx context.Context, tg Target, t *table.Table) (int64, error) {
	if err := tg.Validate(t); err != nil {
		return 0, err
	}
	if t.NumCols() == 0 {
		log.Printf("postgres: table has no columns, nothing to load target=%s", tg.quoted())
		return 0, nil
	}
	if l.Pool == nil {
		return 0, etlerr.Configf("postgres load", "pool is required")
	}

	conn, err := l.Pool.Acquire(ctx)
	if err != nil {
		return 0, etlerr.Query("postgres acquire", err)
	}
	defer conn.Release()

	if tg.AutoCreate {
		if err := ensureTarget(ctx, conn, tg, t); err != nil {
			return 0, err
		}
	}

	if !tg.Upsert {
		n, err := appendRows(ctx, pgCopy(conn.Conn().PgConn()), tg, t, l.chunkSize())
		if err != nil {
			return n, etlerr.Query("postgres copy", err)
		}
		log.Printf("postgres: appended rows=%d target=%s", n, tg.quoted())
		return n, nil
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, etlerr.Query("postgres begin", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	n, err := upsertRows(ctx, tx, pgCopy(tx.Conn().PgConn()), tg, t, l.chunkSize())
	if err != nil {
		return 0, etlerr.Query("postgres upsert", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, etlerr.Query("postgres commit", err)
	}
	log.Printf("postgres: upserted rows=%d target=%s", n, tg.quoted())
	return n, nil
}

func (l *Loader) chunkSize() int {
	if l.ChunkSize > 0 {
		return l.ChunkSize
	}
	return DefaultChunkSize
}

func ensureTarget(ctx context.Context, db execer, tg Target, t *table.Table) error {
	def, err := pgddl.FromTable(tg.Schema, tg.Table, t, tg.PrimaryKey)
	if err != nil {
		return etlerr.New(etlerr.KindConfig, "postgres create table", err)
	}
	if err := pgddl.EnsureTable(ctx, db, def); err != nil {
		return etlerr.Query("postgres create table", describe(err))
	}
	return nil
}

func appendRows(ctx context.Context, copyFn CopyFn, tg Target, t *table.Table, chunk int) (int64, error) {
	n, err := CopyTable(ctx, t, copySQL(tg.quoted(), t.ColumnNames()), chunk, copyFn)
	return n, describe(err)
}

// upsertRows stages t in a temporary table and merges it into the target.
// db must be the transaction the staging table lives in.
func upsertRows(ctx context.Context, db execer, copyFn CopyFn, tg Target, t *table.Table, chunk int) (int64, error) {
	staging := pgIdent(stagingName())
	if _, err := db.Exec(ctx, stagingSQL(staging, tg.quoted())); err != nil {
		return 0, fmt.Errorf("create staging: %w", describe(err))
	}
	n, err := CopyTable(ctx, t, copySQL(staging, t.ColumnNames()), chunk, copyFn)
	if err != nil {
		return n, fmt.Errorf("copy into staging: %w", describe(err))
	}
	if _, err := db.Exec(ctx, upsertSQL(tg.quoted(), staging, t.ColumnNames(), tg.PrimaryKey)); err != nil {
		return n, fmt.Errorf("merge: %w", describe(err))
	}
	return n, nil
}

// stagingName returns a session-unique temporary table name.
func stagingName() string {
	return "etl_stage_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func stagingSQL(staging, target string) string {
	return fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP", staging, target)
}

// upsertSQL merges staging into target on the key columns, updating every
// other column from the staged row. With no other columns it only inserts.
func upsertSQL(target, staging string, cols, keys []string) string {
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	var rest []string
	for _, c := range cols {
		if _, isKey := keySet[c]; !isKey {
			rest = append(rest, c)
		}
	}

	list := strings.Join(mapIdent(cols), ", ")
	action := "DO NOTHING"
	if len(rest) > 0 {
		action = "DO UPDATE SET " + strings.Join(updateColumns(rest), ", ")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		target, list, list, staging, strings.Join(mapIdent(keys), ", "), action)
}

// updateColumns generates a list of column updates in the format: "col = EXCLUDED.col"
func updateColumns(cols []string) []string {
	updates := make([]string, 0, len(cols))
	for _, col := range cols {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", pgIdent(col), pgIdent(col)))
	}
	return updates
}

// describe surfaces the server's detail and SQLSTATE when err is a
// *pgconn.PgError.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s; %s)", err, pgErr.Detail, pgErr.SQLState())
	}
	return err
}

func pgIdent(id string) string { return pgddl.QuoteIdent(id) }

func mapIdent(cols []string) []string { return pgddl.QuoteIdents(cols) }
