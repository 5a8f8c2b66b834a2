/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/SvenDH/go-pixel-evolution/server"
	"github.com/SvenDH/go-pixel-evolution/ui"
)

var (
	viewTicks int
	viewScale int
)

// viewCmd represents the view command
var viewCmd = &cobra.Command{
	Use:   "view [run_id]",
	Short: "Replay the recorded frames of a run in a window",
	Long: `Replay the recorded frames of a stored run. Without a run id the most
recent run is shown.

Controls:
  Space        - Pause/resume
  Left/Right   - Step one frame
  R            - Restart
  ESC          - Quit`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		repo, err := server.OpenRepository(dbPath)
		if err != nil {
			log.Fatal(err)
		}
		defer repo.Close()

		var run *server.Run
		if len(args) > 0 {
			id, err := ulid.Parse(args[0])
			if err != nil {
				log.Fatalf("Invalid run id %q: %v", args[0], err)
			}
			if run, err = repo.FindRun(id); err != nil {
				log.Fatal(err)
			}
		} else {
			runs, err := repo.ListRuns(1)
			if err != nil {
				log.Fatal(err)
			}
			if len(runs) == 0 {
				log.Fatalf("No runs stored in %s", dbPath)
			}
			run = runs[0]
		}

		frames, err := repo.Frames(run.Id)
		if err != nil {
			log.Fatal(err)
		}
		if len(frames) == 0 {
			log.Fatalf("Run %s has no recorded frames", run.Id)
		}
		log.Printf("Loaded %d frames of run %s", len(frames), run.Id)

		player := ui.NewPlayer(frames, viewTicks, viewScale)
		w, h := player.Layout(0, 0)
		ebiten.SetWindowSize(w, h)
		ebiten.SetWindowTitle("Run " + run.Id.String())
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
		if err := ebiten.RunGame(player); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.Flags().IntVarP(&viewTicks, "ticks", "t", 6, "Updates per frame (60 updates per second)")
	viewCmd.Flags().IntVar(&viewScale, "scale", 4, "Window scale factor")
}
