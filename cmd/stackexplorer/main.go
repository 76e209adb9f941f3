package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mmm-workbench/stackexplorer/internal/config"
	"github.com/mmm-workbench/stackexplorer/internal/db"
	"github.com/mmm-workbench/stackexplorer/internal/monitoring"
	"github.com/mmm-workbench/stackexplorer/internal/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches a subcommand. It is separate from main so tests can drive
// the CLI without exiting the process.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		printUsage(stderr)
		return fmt.Errorf("missing command")
	}

	command, rest := args[0], args[1:]
	switch command {
	case "serve":
		return handleServe(rest, stderr)
	case "import":
		return handleImport(rest, stdout, stderr)
	case "render":
		return handleRender(rest, stdout, stderr)
	case "migrate":
		return handleMigrate(rest, stdin, stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, version.String())
		return nil
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage(out io.Writer) {
	fmt.Fprint(out, `stackexplorer - MMM stack explorer charts

Usage: stackexplorer <command> [options]

Commands:
  serve      Run the HTTP API and the gRPC chart service
  import     Store an exported payload (from a file or URL)
  render     Render a chart as HTML, PNG or JSON
  migrate    Manage the database schema (run 'migrate help')
  version    Show version information
  help       Show this help message

Common Flags:
  --config <file>   YAML config file (default `+config.DefaultConfigPath+`)
  --db-path <file>  Override the configured database path

Examples:
  stackexplorer serve --config explorer.yaml
  stackexplorer import --name "Q3 export" export.json
  stackexplorer import --url http://mmm-host/export/latest
  stackexplorer render --dataset <id> --format png --out stack.png
  stackexplorer render --file export.json --tactic TV --type dualAxis
`)
}

// commonFlags are shared by every subcommand that touches config or storage.
type commonFlags struct {
	configPath string
	dbPath     string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", config.DefaultConfigPath, "YAML config file (empty for built-in defaults)")
	fs.StringVar(&c.dbPath, "db-path", "", "Database path (overrides config)")
}

// load reads the config, applies the --db-path override and configures
// logging.
func (c *commonFlags) load(logOut io.Writer) (*config.ExplorerConfig, error) {
	path := c.configPath
	if path == config.DefaultConfigPath {
		if _, err := os.Stat(path); err != nil {
			// The default file is optional outside the repository.
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if c.dbPath != "" {
		cfg.DBPath = c.dbPath
	}
	monitoring.Init(monitoring.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: logOut})
	return cfg, nil
}

func handleMigrate(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load(stderr)
	if err != nil {
		return err
	}
	return db.RunMigrateCommand(fs.Args(), cfg.DBPath, stdin, stdout)
}
