// Package pg bootstraps the PostgreSQL layer: a pgx/v5 connection pool
// configured from environment variables, connect-time retries, a health
// check helper and goose migrations applied from an embedded filesystem.
//
// Typical startup:
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrationsFS, "migrations", log); err != nil {
//		return err
//	}
package pg
