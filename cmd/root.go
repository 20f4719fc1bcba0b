package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/discourse/discourse-releases/config"
	"github.com/discourse/discourse-releases/internal/output"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "discourse-releases",
		Usage:   "Build and query the Discourse commit changelog",
		Version: "1.0.0",
		Commands: []*cli.Command{
			IngestCmd(),
			FetchFeaturesCmd(),
			FetchAdvisoriesCmd(),
			ChangelogCmd(),
			ResolveCmd(),
			PreviousCmd(),
			RefsCmd(),
			ServeCmd(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file (.json, .yaml)",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file providing GITHUB_TOKEN",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "log-json",
				Usage: "Emit logs as JSON",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Suppress log output",
			},
		},
	}
}

// Flags shared by the commands that read a snapshot.
func snapshotFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "snapshot",
			Aliases: []string{"s"},
			Usage:   "Path to the commits snapshot (default: <output.dir>/commits.json)",
		},
	}
}

// Flags shared by the commands that print reports.
func reportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format (console, json, csv, markdown, ndjson)",
			Value:   "console",
		},
		&cli.IntFlag{
			Name:    "top",
			Aliases: []string{"n"},
			Usage:   "Number of commits to show (0 for all)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output file path (default: stdout)",
		},
		&cli.BoolFlag{
			Name:  "details",
			Usage: "Show full hashes, authors and dates",
		},
	}
}

// getOutputFormat parses the output format flag.
func getOutputFormat(s string) output.OutputFormat {
	switch s {
	case "json":
		return output.FormatJSON
	case "csv":
		return output.FormatCSV
	case "markdown", "md":
		return output.FormatMarkdown
	case "ci", "ndjson":
		return output.FormatNDJSON
	default:
		return output.FormatConsole
	}
}

// loadConfig loads configuration from file or defaults, applies .env and CLI
// overrides, and validates the result. A missing .env file is not an error.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.LoadEnv(c.String("env-file")); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", c.String("env-file"), err)
	}

	if level := c.String("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if c.Bool("log-json") {
		cfg.Log.JSON = true
	}
	applyIngestOverrides(c, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyIngestOverrides copies repository and ingestion flags into cfg. Flags that a
// command does not define read as unset.
func applyIngestOverrides(c *cli.Context, cfg *config.Config) {
	if c.IsSet("repo") {
		cfg.Repo.Dir = c.String("repo")
	}
	if c.IsSet("origin") {
		cfg.Repo.Origin = c.String("origin")
	}
	if c.IsSet("reader") {
		cfg.Repo.Reader = c.String("reader")
	}
	if c.IsSet("base-tag") {
		cfg.Ingest.BaseTag = c.String("base-tag")
	}
	if c.IsSet("version-mode") {
		cfg.Ingest.VersionMode = c.String("version-mode")
	}
	if c.IsSet("concurrency") {
		cfg.Ingest.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("workers") {
		cfg.Ingest.DescribeWorkers = c.Int("workers")
	}
	if c.IsSet("out-dir") {
		cfg.Output.Dir = c.String("out-dir")
	}
}

// Run executes the CLI application.
func Run() {
	if err := App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
