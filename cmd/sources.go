package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/dindinbro/discreen/pkg/config"
	"github.com/dindinbro/discreen/pkg/lineparse"
	"github.com/dindinbro/discreen/pkg/storage"
)

// SourcesCommand creates the sources command
func SourcesCommand() *cli.Command {
	return &cli.Command{
		Name:  "sources",
		Usage: "List discovered local sources and their status",
		Action: func(ctx context.Context, c *cli.Command) error {
			return listSources(c.String("config"))
		},
	}
}

func listSources(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	parser := lineparse.NewParser(lineparse.NewHeaderCache())
	registry := storage.NewRegistry(cfg.DataDir, parser)
	if err := registry.Discover(); err != nil {
		return fmt.Errorf("discovering sources: %w", err)
	}
	defer func() { _ = registry.Close() }()

	names := registry.Names()
	if len(names) == 0 {
		fmt.Printf("No local sources found in %s\n", cfg.DataDir)
	} else {
		fmt.Printf("Active sources (%d):\n", len(names))
		for _, name := range names {
			fmt.Printf("  %s\n", name)
		}
	}

	skipped := registry.Skipped()
	if len(skipped) > 0 {
		fmt.Printf("\nExcluded sources (%d):\n", len(skipped))
		for name, reason := range skipped {
			fmt.Printf("  %s: %s\n", name, reason)
		}
	}
	return nil
}
