package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cardshellz/echelon/internal/infrastructure/config"
	"github.com/cardshellz/echelon/internal/infrastructure/logger"
	"github.com/cardshellz/echelon/internal/infrastructure/migration"
	"github.com/cardshellz/echelon/migrations"
	_ "github.com/lib/pq"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const defaultMigrationsDir = "migrations"

type migrateCtxKey struct{}

type session struct {
	log      *zap.Logger
	db       *sql.DB
	migrator *migration.Migrator
}

func main() {
	app := &cli.App{
		Name:  "migrate",
		Usage: "Manage the echelon database schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Usage:   "Read migrations from this directory instead of the embedded set",
				EnvVars: []string{"ECHELON_MIGRATIONS_PATH"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply all pending migrations",
				Before: open,
				After:  closeSession,
				Action: func(c *cli.Context) error { return current(c).migrator.Up() },
			},
			{
				Name:   "down",
				Usage:  "Roll back all migrations",
				Before: open,
				After:  closeSession,
				Action: func(c *cli.Context) error { return current(c).migrator.Down() },
			},
			{
				Name:      "step",
				Usage:     "Apply n migrations, negative n rolls back",
				ArgsUsage: "<n>",
				Before:    open,
				After:     closeSession,
				Action: func(c *cli.Context) error {
					n, err := intArg(c, "n")
					if err != nil {
						return err
					}
					return current(c).migrator.Steps(n)
				},
			},
			{
				Name:      "goto",
				Usage:     "Migrate up or down to a version",
				ArgsUsage: "<version>",
				Before:    open,
				After:     closeSession,
				Action: func(c *cli.Context) error {
					v, err := strconv.ParseUint(c.Args().First(), 10, 64)
					if err != nil {
						return cli.Exit("goto requires a numeric version", 2)
					}
					return current(c).migrator.GoTo(uint(v))
				},
			},
			{
				Name:   "version",
				Usage:  "Print the applied version",
				Before: open,
				After:  closeSession,
				Action: func(c *cli.Context) error {
					version, dirty, err := current(c).migrator.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "version=%d dirty=%t\n", version, dirty)
					return nil
				},
			},
			{
				Name:      "force",
				Usage:     "Set the version without running migrations (repairs a dirty database)",
				ArgsUsage: "<version>",
				Before:    open,
				After:     closeSession,
				Action: func(c *cli.Context) error {
					v, err := intArg(c, "version")
					if err != nil {
						return err
					}
					return current(c).migrator.Force(v)
				},
			},
			{
				Name:      "create",
				Usage:     "Create an up/down migration pair on disk",
				ArgsUsage: "<name> [description]",
				Action:    create,
			},
			{
				Name:   "list",
				Usage:  "List migrations",
				Action: list,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	return logger.New(&logger.Config{
		Level:      c.String("log-level"),
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.DateTime,
	})
}

// open connects to the configured database and prepares a migrator
func open(c *cli.Context) error {
	log, err := newLogger(c)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(c.Context); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	src := migration.FromFS(migrations.FS, ".")
	if dir := c.String("path"); dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			_ = db.Close()
			return err
		}
		src = migration.FromDir(abs)
	}

	m, err := migration.New(db, src, log)
	if err != nil {
		_ = db.Close()
		return err
	}
	log.Info("migration session opened",
		zap.String("command", c.Command.Name),
		zap.String("source", src.String()),
		zap.String("database", cfg.Database.DBName),
	)
	c.Context = contextWith(c, &session{log: log, db: db, migrator: m})
	return nil
}

func closeSession(c *cli.Context) error {
	s := current(c)
	if s == nil {
		return nil
	}
	defer func() { _ = s.log.Sync() }()
	// the migrator closes the database it was given
	return s.migrator.Close()
}

func create(c *cli.Context) error {
	name := c.Args().Get(0)
	if name == "" {
		return cli.Exit("migration name required: migrate create <name> [description]", 2)
	}
	log, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	mf, err := migration.CreateMigration(diskDir(c), name, c.Args().Get(1), time.Now())
	if err != nil {
		return err
	}
	log.Info("migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func list(c *cli.Context) error {
	var (
		names []string
		err   error
	)
	if c.String("path") != "" {
		names, err = migration.ListMigrations(diskDir(c))
	} else {
		names, err = migration.ListEmbedded(migrations.FS)
	}
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(c.App.Writer, n)
	}
	return nil
}

func diskDir(c *cli.Context) string {
	if dir := c.String("path"); dir != "" {
		return dir
	}
	return defaultMigrationsDir
}

func intArg(c *cli.Context, name string) (int, error) {
	n, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return 0, cli.Exit(fmt.Sprintf("%s requires an integer <%s>", c.Command.Name, name), 2)
	}
	return n, nil
}

func contextWith(c *cli.Context, s *session) context.Context {
	return context.WithValue(c.Context, migrateCtxKey{}, s)
}

func current(c *cli.Context) *session {
	s, _ := c.Context.Value(migrateCtxKey{}).(*session)
	return s
}
