package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/chrissnell/jetcalib/internal/calib"
	"github.com/chrissnell/jetcalib/internal/log"
	"github.com/chrissnell/jetcalib/pkg/migrate"
)

func main() {
	var (
		dbDriver      = flag.String("driver", "sqlite", "Registry driver (sqlite, postgres, pgx)")
		dbDSN         = flag.String("dsn", "", "Registry connection string")
		command       = flag.String("command", "status", "Migration command: up, down, to, plan, version, status")
		targetVersion = flag.Int("target", -1, "Target version for down/to commands")
		debug         = flag.Bool("debug", false, "Turn on debugging output")
		helpFlag      = flag.Bool("help", false, "Show help")
	)

	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if *dbDSN == "" {
		fmt.Fprintf(os.Stderr, "Error: -dsn flag is required\n")
		showHelp()
		os.Exit(1)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	dialect, err := calib.DialectFor(*dbDriver)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// Open database connection
	db, err := sql.Open(*dbDriver, *dbDSN)
	if err != nil {
		log.Fatalf("Failed to connect to registry: %v", err)
	}
	defer db.Close()

	// Test the connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping registry: %v", err)
	}

	migrator := calib.NewMigrator(db, dialect, log.GetSugaredLogger())

	// Execute command
	switch *command {
	case "up":
		err = migrator.MigrateUp()
	case "down", "to":
		if *targetVersion < 0 {
			fmt.Fprintf(os.Stderr, "Error: -target flag is required for %s command\n", *command)
			os.Exit(1)
		}
		if *command == "down" {
			err = migrator.MigrateDown(*targetVersion)
		} else {
			err = migrator.MigrateTo(*targetVersion)
		}
	case "plan":
		if err := showPlan(migrator, *targetVersion); err != nil {
			log.Fatalf("Failed to plan migrations: %v", err)
		}
		return
	case "version":
		version, err := migrator.GetCurrentVersion()
		if err != nil {
			log.Fatalf("Failed to get current version: %v", err)
		}
		fmt.Printf("Current version: %d\n", version)
		return
	case "status":
		err = showStatus(migrator)
		if err == nil {
			return
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Migration command failed: %v", err)
	}

	fmt.Println("Migration completed successfully")
}

func showStatus(migrator *migrate.Migrator) error {
	status, err := migrator.Status()
	if err != nil {
		return fmt.Errorf("failed to get registry schema status: %w", err)
	}

	fmt.Printf("Current version: %d\n", status.Current)
	fmt.Printf("Latest version: %d\n", status.Latest)
	fmt.Printf("Pending migrations: %d\n", len(status.Pending))

	if len(status.Pending) > 0 {
		fmt.Println("\nPending migrations:")
		for _, migration := range status.Pending {
			fmt.Printf("  %d: %s\n", migration.Version, migration.Name)
		}
	}

	return nil
}

// showPlan prints the steps "to" would run for target (-1 for latest)
// without applying them.
func showPlan(migrator *migrate.Migrator, target int) error {
	steps, err := migrator.Plan(target)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		fmt.Println("Registry schema is already at the target version")
		return nil
	}
	for _, step := range steps {
		fmt.Printf("  %-4s %d: %s -> version %d\n", step.Direction(), step.Migration.Version, step.Migration.Name, step.Target())
	}
	return nil
}

func showHelp() {
	fmt.Println("Calibration registry migration tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  calib-migrate [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -driver string     Registry driver: sqlite, postgres or pgx (default: sqlite)")
	fmt.Println("  -dsn string        Registry connection string (required)")
	fmt.Println("  -command string    Migration command (default: status)")
	fmt.Println("  -target int        Target version for down/to commands")
	fmt.Println("  -debug             Turn on debugging output")
	fmt.Println("  -help              Show this help message")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up                 Apply all pending migrations")
	fmt.Println("  down               Roll back to target version")
	fmt.Println("  to                 Migrate to specific version (up or down)")
	fmt.Println("  plan               Show the steps needed to reach -target (latest by default)")
	fmt.Println("  version            Show current schema version")
	fmt.Println("  status             Show current version and pending migrations")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  calib-migrate -dsn calib.db -command up")
	fmt.Println("  calib-migrate -dsn calib.db -command down -target 0")
	fmt.Println("  calib-migrate -driver pgx -dsn postgres://conditions@db/calib -command status")
}
