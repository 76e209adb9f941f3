package db

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
)

// ErrAborted is returned when a forced migration is not confirmed.
var ErrAborted = errors.New("aborted")

// RunMigrateCommand handles the 'migrate' subcommand dispatching. Prompts are
// read from in and all output goes to out.
func RunMigrateCommand(args []string, dbPath string, in io.Reader, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return errors.New("missing migrate action")
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(out)
		return nil
	}

	// Open database connection without running schema initialization
	// (migrations will manage the schema)
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	migrations := MigrationsFS()

	switch action {
	case "up":
		fmt.Fprintln(out, "Running migrations...")
		if err := database.MigrateUp(migrations); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ All migrations applied successfully")
		return printVersion(database, migrations, out)

	case "down":
		fmt.Fprintln(out, "Rolling back one migration...")
		if err := database.MigrateDown(migrations); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ Migration rolled back successfully")
		return printVersion(database, migrations, out)

	case "status":
		return printStatus(database, migrations, out)

	case "version":
		if len(args) < 2 {
			return errors.New("usage: stackexplorer migrate version <version_number>")
		}
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[1])
		}
		if err := database.MigrateTo(migrations, uint(v)); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Migrated to version %d successfully\n", v)
		return nil

	case "force":
		if len(args) < 2 {
			return errors.New("usage: stackexplorer migrate force <version_number>")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[1])
		}
		fmt.Fprintf(out, "⚠️  WARNING: Forcing migration version to %d\n", v)
		fmt.Fprintln(out, "This should only be used to recover from a dirty migration state.")
		fmt.Fprint(out, "Continue? [y/N]: ")
		response, _ := bufio.NewReader(in).ReadString('\n')
		if r := strings.TrimSpace(response); r != "y" && r != "Y" {
			fmt.Fprintln(out, "Aborted")
			return ErrAborted
		}
		if err := database.MigrateForce(migrations, v); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Migration version forced to %d\n", v)
		return nil

	default:
		fmt.Fprintf(out, "Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action %q", action)
	}
}

func printVersion(database *DB, migrations fs.FS, out io.Writer) error {
	version, dirty, err := database.MigrateVersion(migrations)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func printStatus(database *DB, migrations fs.FS, out io.Writer) error {
	status, err := database.GetMigrationStatus(migrations)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Migration Status ===")
	fmt.Fprintf(out, "Current version: %d\n", status.CurrentVersion)
	fmt.Fprintf(out, "Latest version: %d\n", status.LatestVersion)
	fmt.Fprintf(out, "Dirty: %v\n", status.Dirty)
	fmt.Fprintf(out, "Schema migrations table exists: %v\n", status.SchemaMigrationsExists)

	if status.Dirty {
		fmt.Fprintln(out, "\n⚠️  WARNING: Database is in a dirty state!")
		fmt.Fprintln(out, "A migration failed mid-execution. Inspect the database, then run:")
		fmt.Fprintln(out, "  stackexplorer migrate force <version>")
	} else if status.Pending() {
		fmt.Fprintf(out, "\n%d migration(s) pending. Run: stackexplorer migrate up\n", status.LatestVersion-status.CurrentVersion)
	}
	return nil
}

// PrintMigrateHelp prints usage information for migrate commands
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: stackexplorer migrate <action> [args]

Actions:
  up                Apply all pending migrations
  down              Roll back the most recent migration
  status            Show current and latest schema versions
  version <N>       Migrate up or down to version N
  force <N>         Force the recorded version to N (dirty-state recovery)
  help              Show this help
`)
}
