package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/dindinbro/discreen/pkg/core"
	"github.com/dindinbro/discreen/pkg/search"
)

var (
	sourceStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	fieldKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	recordStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Margin(0, 0, 1, 2)

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32"))

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	partialStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("208"))
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Run a federated search across local stores, bridge and object storage",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "criterion",
				Aliases: []string{"c"},
				Usage:   "Search criterion as type=value (repeatable), e.g. -c email=a@b.com -c lastName=Dupont",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results",
				Value: 10,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Result offset for pagination",
				Value: 0,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Emit raw JSON instead of formatted output",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runSearch(ctx, c.String("config"), c.Bool("debug"),
				c.StringSlice("criterion"), c.Int("limit"), c.Int("offset"), c.Bool("json"))
		},
	}
}

func runSearch(ctx context.Context, configPath string, debug bool, pairs []string, limit, offset int, asJSON bool) error {
	if len(pairs) == 0 {
		return fmt.Errorf("at least one --criterion is required")
	}
	criteria, err := parseCriteriaArgs(pairs)
	if err != nil {
		return err
	}

	sc, err := buildSearchCore(ctx, configPath, debug)
	if err != nil {
		return err
	}
	defer sc.Close()

	result, err := sc.orchestrator.Search(ctx, criteria, limit, offset)
	timedOut := errors.Is(err, search.ErrTimeout)
	if err != nil && !timedOut {
		return fmt.Errorf("search failed: %w", err)
	}

	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	renderResult(result, timedOut)
	return nil
}

func renderResult(result *core.Result, timedOut bool) {
	if len(result.Records) == 0 {
		fmt.Println(noDataStyle.Render("No results found"))
		if timedOut {
			fmt.Println(partialStyle.Render("Search timed out before all sources finished"))
		}
		return
	}

	for i, rec := range result.Records {
		var body string
		body += sourceStyle.Render(rec.Source()) + "\n"
		for _, key := range rec.Keys() {
			value, _ := rec.Get(key)
			body += fmt.Sprintf("%s: %s\n", fieldKeyStyle.Render(key), value)
		}
		fmt.Printf("%d.\n%s", i+1, recordStyle.Render(body))
	}

	summary := fmt.Sprintf("%d results", len(result.Records))
	if result.Total != nil {
		summary += fmt.Sprintf(" (of %d total)", *result.Total)
	}
	fmt.Println(summaryStyle.Render(summary))

	if timedOut || result.Partial {
		fmt.Println(partialStyle.Render("Partial results: not all sources finished in time"))
	}
}
