package server

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
	if err != nil {
		log.Printf("Error encoding error response: %v", err)
	}
}

func respondWithJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

type Cors struct {
	handler http.Handler
}

func (c *Cors) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	c.handler.ServeHTTP(w, r)
}

type Logger struct {
	handler http.Handler
	logger  *log.Logger
}

func (l *Logger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	l.handler.ServeHTTP(w, r)
	l.logger.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
}

// RunInfo is the JSON view of a stored run
type RunInfo struct {
	*Run
	FinalFitness *float64 `json:"final_fitness,omitempty"`
}

func runInfo(run *Run) RunInfo {
	info := RunInfo{Run: run}
	if run.FinalFitness.Valid {
		info.FinalFitness = &run.FinalFitness.Float64
	}
	return info
}

type Router struct {
	addr     string
	repo     *Repository
	wsServer *Server
	mux      http.Handler
}

// NewRouter creates the HTTP routes: the live feed, metrics, the latest
// frame and the run history. repo and metrics may be nil.
func NewRouter(addr string, repo *Repository, wsServer *Server, metrics *Metrics) *Router {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(wsServer, w, r)
	})

	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}

	mux.HandleFunc("GET /frame.png", func(w http.ResponseWriter, r *http.Request) {
		frame := wsServer.LatestFrame()
		if frame == nil {
			respondWithError(w, http.StatusNotFound, "No generation has completed yet")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("X-Generation", strconv.Itoa(frame.Generation))
		if err := png.Encode(w, frame.Image); err != nil {
			log.Printf("Error encoding frame: %v", err)
		}
	})

	if repo != nil {
		mux.HandleFunc("GET /runs", func(w http.ResponseWriter, r *http.Request) {
			limit := 20
			if v := r.URL.Query().Get("limit"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n <= 0 {
					respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
					return
				}
				limit = n
			}
			runs, err := repo.ListRuns(limit)
			if err != nil {
				respondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			infos := make([]RunInfo, 0, len(runs))
			for _, run := range runs {
				infos = append(infos, runInfo(run))
			}
			respondWithJSON(w, http.StatusOK, infos)
		})

		mux.HandleFunc("GET /runs/{id}", func(w http.ResponseWriter, r *http.Request) {
			run, ok := lookupRun(w, r, repo)
			if !ok {
				return
			}
			respondWithJSON(w, http.StatusOK, runInfo(run))
		})

		mux.HandleFunc("GET /runs/{id}/generations", func(w http.ResponseWriter, r *http.Request) {
			run, ok := lookupRun(w, r, repo)
			if !ok {
				return
			}
			stats, err := repo.Generations(run.Id)
			if err != nil {
				respondWithError(w, http.StatusInternalServerError, err.Error())
				return
			}
			respondWithJSON(w, http.StatusOK, stats)
		})
	}

	logger := log.New(os.Stderr, "[http]: ", log.LstdFlags)
	return &Router{
		addr:     addr,
		repo:     repo,
		wsServer: wsServer,
		mux:      &Logger{&Cors{mux}, logger},
	}
}

func lookupRun(w http.ResponseWriter, r *http.Request, repo *Repository) (*Run, bool) {
	id, err := ulid.Parse(r.PathValue("id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid run id")
		return nil, false
	}
	run, err := repo.FindRun(id)
	if errors.Is(err, ErrRunNotFound) {
		respondWithError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return run, true
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Run serves until ctx is cancelled, then shuts the listener down
func (r *Router) Run(ctx context.Context) error {
	srv := &http.Server{Addr: r.addr, Handler: r.mux}
	go r.wsServer.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("http server started on %s", r.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
