// Package pg connects to PostgreSQL with pgx and applies goose migrations.
//
// The pool is opened with Connect and bridged to database/sql with OpenDB so
// repository adapters can be tested with sqlmock:
//
//	pool, err := pg.Connect(ctx, cfg.Postgres)
//	db := pg.OpenDB(pool)
//	if err := pg.Migrate(ctx, db, migrations.FS, cfg.Postgres, log); err != nil {
//		return err
//	}
//
// Error helpers classify driver errors by SQLSTATE.
package pg
