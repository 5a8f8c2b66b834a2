/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

var evolveOpts = defaultRunOptions()

// evolveCmd represents the evolve command
var evolveCmd = &cobra.Command{
	Use:   "evolve [target_image]",
	Short: "Evolve an image toward a target",
	Long: `Evolve a square image toward a target image, one genetic algorithm per pixel.

The target is resized to 100x100 pixels. Without a target, or when the file does not
exist, a sample gradient is used instead. The final image, an animation of the
recorded generations and optionally a fitness chart are written at the end.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		evolveOpts.target = "target.png"
		if len(args) > 0 {
			evolveOpts.target = args[0]
		}
		s, err := newSession(evolveOpts)
		if err != nil {
			log.Fatalf("Cannot start evolution: %v", err)
		}
		defer s.Close()
		if _, err := s.Run(); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(evolveCmd)
	evolveOpts.register(evolveCmd.Flags())
}
