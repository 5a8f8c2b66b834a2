/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/SvenDH/go-pixel-evolution/ai"
	"github.com/SvenDH/go-pixel-evolution/report"
	"github.com/SvenDH/go-pixel-evolution/server"
)

var (
	runsLimit int
	runsPlot  string
)

// runsCmd represents the runs command
var runsCmd = &cobra.Command{
	Use:   "runs [run_id]",
	Short: "List stored runs or show one of them",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		repo, err := server.OpenRepository(dbPath)
		if err != nil {
			log.Fatal(err)
		}
		defer repo.Close()

		if len(args) == 0 {
			runs, err := repo.ListRuns(runsLimit)
			if err != nil {
				log.Fatal(err)
			}
			fmt.Println(runsTable(runs))
			return
		}

		id, err := ulid.Parse(args[0])
		if err != nil {
			log.Fatalf("Invalid run id %q: %v", args[0], err)
		}
		run, err := repo.FindRun(id)
		if err != nil {
			log.Fatal(err)
		}
		stats, err := repo.Generations(id)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(runsTable([]*server.Run{run}))
		fmt.Println(generationsTable(stats))
		if runsPlot != "" {
			if err := report.PlotFitness(stats, "Run "+run.Id.String(), runsPlot); err != nil {
				log.Fatal(err)
			}
			log.Printf("Saved fitness plot to %s", runsPlot)
		}
	},
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func styleRow(row, col int) lipgloss.Style {
	if row == table.HeaderRow {
		return headerStyle
	}
	return cellStyle
}

func runsTable(runs []*server.Run) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(styleRow).
		Headers("ID", "CREATED", "TARGET", "SIZE", "GENS", "POP", "SEED", "FINAL")
	for _, run := range runs {
		final := "running"
		if run.FinalFitness.Valid {
			final = fmt.Sprintf("%.2f", run.FinalFitness.Float64)
		}
		p := run.Params
		t.Row(
			run.Id.String(),
			run.CreatedAt.Local().Format(time.DateTime),
			run.Target,
			fmt.Sprintf("%dx%d", p.ImgSize, p.ImgSize),
			fmt.Sprint(p.Iterations),
			fmt.Sprint(p.PopulationSize),
			fmt.Sprint(p.Seed),
			final,
		)
	}
	return t.String()
}

func generationsTable(stats []ai.GenerationStats) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(styleRow).
		Headers("GEN", "MEAN", "MIN", "PERFECT", "TIME")
	for _, s := range stats {
		t.Row(
			fmt.Sprint(s.Generation+1),
			fmt.Sprintf("%.2f", s.MeanFitness),
			fmt.Sprint(s.MinFitness),
			fmt.Sprintf("%.2f%%", 100*s.PerfectRatio()),
			s.Duration.Round(time.Microsecond).String(),
		)
	}
	return t.String()
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to list")
	runsCmd.Flags().StringVar(&runsPlot, "plot", "", "Save a fitness chart of the run")
}
