/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var dbPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pixelga",
	Short: "Evolve an image pixel by pixel with a genetic algorithm",
	Long: `pixelga evolves a target image by running one small genetic algorithm
per pixel. Each pixel population encodes RGB colours as 8-bit chromosomes and
converges toward the target colour through tournament selection, crossover,
mutation and elitism. Runs can be recorded to a sqlite store, streamed live
over a websocket and replayed in a window.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "pixelga.db", "Sqlite file storing run history (empty to disable)")
}
