package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"jokeboard/internal/config"
	"jokeboard/internal/database"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	flags  = flag.NewFlagSet("migrator", flag.ExitOnError)
	driver = flags.String("driver", config.BackendPostgres, "database to migrate: postgres or sqlite")
	dir    = flags.String("dir", "", "directory with migration files (default: the migrations built into the binary)")
)

func main() {
	flags.Usage = usage
	flags.Parse(os.Args[1:])
	args := flags.Args()

	if len(args) < 1 {
		flags.Usage()
		os.Exit(1)
	}

	cfg, err := config.Read("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, dialect, err := open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	migrationsDir := *dir
	if migrationsDir == "" {
		fsys, err := database.Migrations(dialect)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		goose.SetBaseFS(fsys)
		migrationsDir = "."
	}

	if err := goose.SetDialect(string(dialect)); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if err := goose.RunContext(ctx, args[0], db, migrationsDir, args[1:]...); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
}

// open connects to the database named by -driver using the matching config
// section.
func open(ctx context.Context, cfg *config.Config) (*sql.DB, goose.Dialect, error) {
	var (
		db      *sql.DB
		dialect goose.Dialect
		err     error
	)

	switch *driver {
	case config.BackendPostgres:
		if cfg.Database.Password == "" {
			return nil, "", config.ErrEmptyDBPassword
		}
		dialect = goose.DialectPostgres
		db, err = sql.Open("pgx", cfg.Database.ConnectionString())
	case config.BackendSQLite:
		dialect = goose.DialectSQLite3
		db, err = sql.Open("sqlite", cfg.SQLite.Path)
	default:
		return nil, "", fmt.Errorf("unsupported driver %q", *driver)
	}
	if err != nil {
		return nil, "", err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", err
	}
	return db, dialect, nil
}

func usage() {
	fmt.Println(usagePrefix)
	flags.PrintDefaults()
	fmt.Println(usageCommands)
}

var (
	usagePrefix = `Usage: migrator [OPTIONS] COMMAND

Connection settings come from the config file (CONFIG_PATH) or environment:
DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME for postgres,
SQLITE_PATH for sqlite.

Options:
`

	usageCommands = `
Commands:
    up                   Migrate the database to the most recent version available
    up-by-one            Migrate the database up by 1
    up-to VERSION        Migrate the database to a specific VERSION
    down                 Roll back the version by 1
    down-to VERSION      Roll back to a specific VERSION
    redo                 Re-run the latest migration
    reset                Roll back all migrations
    status               Dump the migration status
    version              Print the current version
    create NAME [sql|go] Creates new migration file (requires -dir)
`
)
