package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/handsomefox/reelshelf/internal/config"
	"github.com/handsomefox/reelshelf/internal/env"
	"github.com/handsomefox/reelshelf/internal/logger"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	slog.SetDefault(logger.New(logger.Options{Level: slog.LevelDebug}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Println("Error:", err.Error())
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "reelshelf",
		Usage: "Track movies and shows to watch and already watched",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an optional TOML configuration file",
				Sources: cli.EnvVars("CONFIG_FILE"),
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:  "export",
				Usage: "Write one user's collections as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "Email of the user to export",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path, - for stdout",
						Value:   "-",
					},
				},
				Action: export,
			},
		},
	}
}

// loadConfig reads configuration and applies the process-wide settings that
// depend on it.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.String("config"), os.Getenv)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}

	env.Current = cfg.Env
	slog.SetDefault(logger.New(logger.Options{
		Level:      logger.ParseLevel(cfg.Log.Level),
		Production: cfg.Env.IsProduction(),
		File:       cfg.Log.File,
	}))
	return cfg, nil
}
