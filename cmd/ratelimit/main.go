package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the YAML configuration file",
		Sources: cli.EnvVars("RATELIMIT_CONFIG"),
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "ratelimit",
		Usage:   "Rate limiting decision engine",
		Suggest: true,
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file (default .env when present)",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, loadDotEnv(cmd.String("env-file"))
		},

		Commands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Load and validate a configuration, then list its rules",
				Flags: []cli.Flag{configFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return validateCommand(cmd.Root().Writer, cmd.String("config"))
				},
			},
			{
				Name:  "check",
				Usage: "Evaluate one request against the configured rules and print the results as JSON",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "ip", Usage: "Client IP address"},
					&cli.StringFlag{Name: "user", Usage: "User id"},
					&cli.StringFlag{Name: "api-key", Usage: "API key"},
					&cli.StringFlag{Name: "endpoint", Value: "/", Usage: "Endpoint being called"},
					&cli.StringFlag{Name: "method", Value: "GET", Usage: "HTTP method"},
					&cli.StringFlag{Name: "user-agent", Usage: "User agent"},
					&cli.StringSliceFlag{Name: "rule", Aliases: []string{"r"}, Usage: "Only evaluate these rule ids"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return checkCommand(ctx, cmd.Root().Writer, cmd.String("config"), checkInput{
						IP:        cmd.String("ip"),
						UserID:    cmd.String("user"),
						APIKey:    cmd.String("api-key"),
						Endpoint:  cmd.String("endpoint"),
						Method:    cmd.String("method"),
						UserAgent: cmd.String("user-agent"),
						Rules:     cmd.StringSlice("rule"),
					})
				},
			},
			{
				Name:  "run",
				Usage: "Run the engine with background cleanup and serve /metrics and /stats",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "addr", Usage: "Listen address (overrides metrics.addr)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runCommand(ctx, cmd.String("config"), cmd.String("addr"))
				},
			},
		},
	}
}

// loadDotEnv loads path, or .env when path is empty and the file exists.
// Variables already set in the environment win.
func loadDotEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func main() {
	cmd := newCommand()
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
