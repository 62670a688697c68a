package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/clinic/backend/internal/infrastructure/config"
	"github.com/clinic/backend/internal/infrastructure/logger"
	"github.com/clinic/backend/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

var errUsage = errors.New("invalid usage")

// migrator is the subset of migration.Migrator the commands drive
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	GoTo(version uint) error
	Version() (uint, bool, error)
	Force(version int) error
	Drop() error
}

func main() {
	var (
		migrationsPath string
		logLevel       string
		embedded       bool
	)
	flag.StringVar(&migrationsPath, "path", "", "Path to migrations directory (default: ./migrations)")
	flag.BoolVar(&embedded, "embedded", false, "Use the migrations compiled into the binary instead of -path")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	migrationsPath, err = resolveMigrationsPath(migrationsPath)
	if err != nil {
		log.Fatal("Failed to resolve migrations path", zap.Error(err))
	}
	log.Info("Migration CLI started",
		zap.String("command", args[0]),
		zap.String("migrations_path", migrationsPath),
		zap.Bool("embedded", embedded),
	)

	handled, err := runOffline(args, migrationsPath, log)
	if err != nil {
		fail(log, err)
	}
	if handled {
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	var m *migration.Migrator
	if embedded {
		m, err = migration.NewEmbedded(db, log)
	} else {
		m, err = migration.New(db, migrationsPath, log)
	}
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	if err := run(m, args, log); err != nil {
		fail(log, err)
	}
}

func fail(log *zap.Logger, err error) {
	if errors.Is(err, errUsage) {
		log.Error("Invalid command", zap.Error(err))
		printUsage()
		os.Exit(1)
	}
	log.Fatal("Migration command failed", zap.Error(err))
}

// resolveMigrationsPath falls back to ./migrations, then to the repository
// migrations directory two levels above the executable.
func resolveMigrationsPath(path string) (string, error) {
	if path == "" {
		path = defaultMigrationsPath
		if _, err := os.Stat(path); err != nil {
			if exe, err := os.Executable(); err == nil {
				candidate := filepath.Join(filepath.Dir(exe), "..", "..", defaultMigrationsPath)
				if _, err := os.Stat(candidate); err == nil {
					path = candidate
				}
			}
		}
	}
	return filepath.Abs(path)
}

// runOffline handles the commands that only touch the migrations directory.
func runOffline(args []string, migrationsPath string, log *zap.Logger) (bool, error) {
	switch args[0] {
	case "create":
		if len(args) < 2 {
			return true, fmt.Errorf("%w: migrate create <name> [description]", errUsage)
		}
		description := ""
		if len(args) > 2 {
			description = args[2]
		}
		mf, err := migration.CreateMigration(migrationsPath, args[1], description)
		if err != nil {
			return true, err
		}
		log.Info("Migration created",
			zap.Uint("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return true, nil

	case "list":
		migrations, err := migration.ListMigrations(migrationsPath)
		if err != nil {
			return true, err
		}
		log.Info("Available migrations", zap.Int("count", len(migrations)))
		for _, m := range migrations {
			fmt.Println("  -", m)
		}
		return true, nil
	}
	return false, nil
}

// run executes a command that needs a database connection.
func run(m migrator, args []string, log *zap.Logger) error {
	switch args[0] {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "step":
		n, err := intArg(args, "migrate step <n>")
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "goto":
		v, err := intArg(args, "migrate goto <version>")
		if err != nil {
			return err
		}
		if v < 0 {
			return fmt.Errorf("%w: version must not be negative", errUsage)
		}
		return m.GoTo(uint(v))
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	case "force":
		v, err := intArg(args, "migrate force <version>")
		if err != nil {
			return err
		}
		log.Warn("Forcing migration version", zap.Int("version", v))
		return m.Force(v)
	case "drop":
		if !slices.Contains(args[1:], "-confirm") && !slices.Contains(args[1:], "--confirm") {
			return fmt.Errorf("%w: drop requires -confirm", errUsage)
		}
		log.Warn("Dropping all database objects")
		return m.Drop()
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func intArg(args []string, usage string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%w: %s", errUsage, usage)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errUsage, args[1])
	}
	return n, nil
}

func printUsage() {
	fmt.Println(`Clinic Inventory Migration Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (positive=up, negative=down)
  goto <version>        Migrate to a specific version
  version               Show current migration version
  force <version>       Force set migration version
  drop -confirm         Drop all database objects
  create <name> [desc]  Create a new migration file pair
  list                  List available migrations

Flags:
  -path string          Path to migrations directory (default: ./migrations)
  -embedded             Use the migrations compiled into the binary
  -log-level string     Log level: debug, info, warn, error (default: info)

Environment Variables:
  CLINIC_DATABASE_HOST, CLINIC_DATABASE_PORT, CLINIC_DATABASE_USER,
  CLINIC_DATABASE_PASSWORD, CLINIC_DATABASE_DBNAME, CLINIC_DATABASE_SSLMODE

Examples:
  migrate -embedded up
  migrate step -1
  migrate create add_supplier_column "Track the supplier of each product"`)
}
