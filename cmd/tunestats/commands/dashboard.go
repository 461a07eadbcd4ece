package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/tunestats/internal/stats"
)

func dashboardCommand() *cli.Command {
	return &cli.Command{
		Name:  "dashboard",
		Usage: "print listening statistics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "time-range",
				Usage: "short_term|medium_term|long_term",
				Value: string(stats.DefaultTimeRange),
			},
			&cli.BoolFlag{
				Name:  "demo",
				Usage: "show generated demo data",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print raw JSON",
			},
		},
		Action: dashboardAction,
	}
}

func dashboardAction(ctx context.Context, cmd *cli.Command) error {
	timeRange, err := stats.ParseTimeRange(cmd.String("time-range"))
	if err != nil {
		return err
	}

	application, _, cleanup, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	d, err := application.Dashboard(ctx, timeRange, cmd.Bool("demo"))
	if err != nil {
		return fmt.Errorf("failed to load dashboard: %w", err)
	}

	out := cmd.Root().Writer
	if cmd.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}
	printDashboard(out, d)
	return nil
}

func printDashboard(w io.Writer, d stats.Dashboard) {
	title := "Stats Dashboard"
	if d.Demo {
		title += " [DEMO MODE]"
	}
	fmt.Fprintf(w, "%s - %s - %s\n\n", title, d.User.DisplayName, d.TimeRangeLabel)

	fmt.Fprintf(w, "Top Artist:        %s\n", d.KPIs.TopArtist)
	fmt.Fprintf(w, "Avg. Energy Level: %d%%\n", d.KPIs.AvgEnergy)
	fmt.Fprintf(w, "Unique Genres:     %d\n", d.KPIs.UniqueGenres)
	fmt.Fprintf(w, "Followers:         %d\n\n", d.KPIs.Followers)

	fmt.Fprintln(w, "Top Tracks")
	for i, t := range d.TopTracks {
		if i == 10 {
			break
		}
		names := make([]string, 0, len(t.Artists))
		for _, a := range t.Artists {
			names = append(names, a.Name)
		}
		fmt.Fprintf(w, "%3d. %s - %s\n", i+1, t.Name, strings.Join(names, ", "))
	}

	fmt.Fprintln(w, "\nTop Genres")
	for _, g := range d.Genres {
		fmt.Fprintf(w, "  %-20s %3d%%\n", g.Name, g.Percentage)
	}

	fmt.Fprintln(w, "\nAudio Aura")
	a := d.Aura
	for _, row := range []struct {
		name  string
		value float64
	}{
		{"Danceability", a.Danceability},
		{"Energy", a.Energy},
		{"Valence", a.Valence},
		{"Acousticness", a.Acousticness},
		{"Instrumentalness", a.Instrumentalness},
		{"Speechiness", a.Speechiness},
	} {
		fmt.Fprintf(w, "  %-20s %.2f %s\n", row.name, row.value, strings.Repeat("#", int(row.value*20+0.5)))
	}

	fmt.Fprintln(w, "\nRecent Activity")
	for i, p := range d.RecentTracks {
		if i == 8 {
			break
		}
		fmt.Fprintf(w, "  %s  %s\n", p.PlayedAt.Local().Format("Jan 02 15:04"), p.Track.Name)
	}
}
