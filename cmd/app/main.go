// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/protect/cmd/app/commands"
	"github.com/allisson/protect/internal/config"
	"github.com/allisson/protect/protection"
)

const version = "1.0.0"

// newClient builds a protection client from the environment configuration.
func newClient(cfg *config.Config, logger *slog.Logger) (protection.Protector, error) {
	client, err := protection.NewClient(cfg.ClientConfig(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize protection client: %w", err)
	}
	return client, nil
}

func main() {
	cmd := &cli.Command{
		Name:    "protect",
		Usage:   "Client for the data protection API",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "protect",
				Usage: "Tokenize a sensitive value under a protection policy",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "policy",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "Protection policy name (e.g., protect-credit-card)",
					},
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Required: true,
						Usage:    "Value to protect, or '-' to read a line from stdin",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					logger := commands.NewLogger(cfg.LogLevel)
					client, err := newClient(cfg, logger)
					if err != nil {
						return err
					}
					return commands.RunProtect(
						ctx,
						client,
						logger,
						cmd.String("policy"),
						cmd.String("data"),
						cmd.String("format"),
						commands.DefaultIO(),
					)
				},
			},
			{
				Name:  "reveal",
				Usage: "Exchange a protected value for the original",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "policy",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "Protection policy name (e.g., protect-credit-card)",
					},
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Required: true,
						Usage:    "Protected value to reveal, or '-' to read a line from stdin",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					logger := commands.NewLogger(cfg.LogLevel)
					client, err := newClient(cfg, logger)
					if err != nil {
						return err
					}
					return commands.RunReveal(
						ctx,
						client,
						logger,
						cmd.String("policy"),
						cmd.String("data"),
						cmd.String("format"),
						commands.DefaultIO(),
					)
				},
			},
			{
				Name:  "stub-server",
				Usage: "Start the in-memory protection stub server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunStubServer(ctx, version)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
