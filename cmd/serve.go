/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/SvenDH/go-pixel-evolution/server"
)

var (
	serveAddr string
	serveOpts = defaultRunOptions()
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve [target_image]",
	Short: "Evolve an image while streaming progress over HTTP",
	Long: `Run an evolution and serve its progress until interrupted.

Endpoints:
  /ws                      - websocket feed of run and generation events
  /frame.png               - latest evolved frame
  /metrics                 - prometheus metrics
  /runs, /runs/{id}        - stored runs
  /runs/{id}/generations   - per generation statistics of a stored run`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		serveOpts.target = "target.png"
		if len(args) > 0 {
			serveOpts.target = args[0]
		}
		s, err := newSession(serveOpts)
		if err != nil {
			log.Fatalf("Cannot start evolution: %v", err)
		}
		defer s.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		metrics := server.NewMetrics()
		wsServer := server.NewWebsocketServer(server.NewMemoryBroker(), metrics)
		router := server.NewRouter(serveAddr, s.repo, wsServer, metrics)
		errCh := make(chan error, 1)
		go func() { errCh <- router.Run(ctx) }()

		s.Observe(wsServer.Observer(s.run.Id.String()))
		wsServer.RunStarted(s.run)
		res, err := s.Run()
		if err != nil {
			log.Printf("Run failed: %v", err)
		} else {
			wsServer.RunFinished(s.run, res.Stats[len(res.Stats)-1])
		}
		log.Printf("Evolution done, still serving on %s (Ctrl+C to stop)", serveAddr)

		if err := <-errCh; err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", ":8080", "HTTP listen address")
	serveOpts.register(serveCmd.Flags())
}
