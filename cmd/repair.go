package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/dindinbro/discreen/pkg/config"
	"github.com/dindinbro/discreen/pkg/storage"
)

// RepairCommand creates the repair command
func RepairCommand() *cli.Command {
	return &cli.Command{
		Name:  "repair",
		Usage: "Diagnose local store files and optionally rebuild broken full-text indexes",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "rebuild",
				Usage: "Rebuild the full-text index of stores that fail the probe",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Only diagnose the named store",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return repairStores(c.String("config"), c.String("store"), c.Bool("rebuild"))
		},
	}
}

func repairStores(configPath, only string, rebuild bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	entries, err := os.ReadDir(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("reading data directory: %w", err)
	}

	checked := 0
	broken := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".db")
		if only != "" && name != only {
			continue
		}
		checked++

		report, err := storage.Diagnose(name, filepath.Join(cfg.DataDir, entry.Name()), rebuild)
		if err != nil {
			broken++
			fmt.Printf("✗ %s: %v\n", name, err)
			continue
		}

		if report.Healthy() {
			status := "ok"
			if report.Rebuilt {
				status = "ok (index rebuilt)"
			}
			fmt.Printf("✓ %s: %s (table=%s)\n", name, status, report.Table)
			continue
		}

		broken++
		fmt.Printf("✗ %s (table=%s):\n", name, report.Table)
		if report.Integrity != "ok" {
			fmt.Printf("    integrity: %s\n", report.Integrity)
		}
		if report.LikeProbe != nil {
			fmt.Printf("    row access: %v\n", report.LikeProbe)
		}
		if report.FTSProbe != nil {
			fmt.Printf("    full-text index: %v\n", report.FTSProbe)
			if !rebuild {
				fmt.Printf("    hint: rerun with --rebuild to rebuild the index\n")
			}
		}
	}

	if checked == 0 {
		fmt.Println("No store files found")
		return nil
	}
	fmt.Printf("\n%d checked, %d broken\n", checked, broken)
	if broken > 0 {
		return fmt.Errorf("%d store(s) need attention", broken)
	}
	return nil
}
