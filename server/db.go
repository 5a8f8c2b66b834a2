package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/SvenDH/go-pixel-evolution/ai"
)

var ErrRunNotFound = errors.New("run not found")

var (
	frameEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	frameDecoder, _ = zstd.NewReader(nil)
)

type Repository struct {
	Db *sql.DB
}

// OpenRepository opens the sqlite database at path (":memory:" for a
// throwaway store) and creates the schema.
func OpenRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// a single connection keeps ":memory:" databases alive and serialises writers
	db.SetMaxOpenConns(1)
	return NewRepository(db)
}

func NewRepository(db *sql.DB) (*Repository, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS run (
			id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			img_size INTEGER NOT NULL,
			iterations INTEGER NOT NULL,
			params TEXT NOT NULL,
			target TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			final_fitness REAL
		);
		CREATE TABLE IF NOT EXISTS generation (
			run_id TEXT NOT NULL REFERENCES run(id),
			gen INTEGER NOT NULL,
			mean_fitness REAL NOT NULL,
			min_fitness INTEGER NOT NULL,
			perfect INTEGER NOT NULL,
			pixels INTEGER NOT NULL,
			duration_ns INTEGER NOT NULL,
			PRIMARY KEY (run_id, gen)
		);
		CREATE TABLE IF NOT EXISTS frame (
			run_id TEXT NOT NULL REFERENCES run(id),
			gen INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			pixels BLOB NOT NULL,
			PRIMARY KEY (run_id, gen)
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("error creating schema: %w", err)
	}
	return &Repository{Db: db}, nil
}

func (repo *Repository) Close() error {
	return repo.Db.Close()
}

type Run struct {
	Id           ulid.ULID       `json:"id"`
	Params       ai.Params       `json:"params"`
	Target       string          `json:"target"`
	CreatedAt    time.Time       `json:"created_at"`
	FinalFitness sql.NullFloat64 `json:"-"`
}

func (repo *Repository) AddRun(params ai.Params, target string) (*Run, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	run := &Run{
		Id:        ulid.Make(),
		Params:    params,
		Target:    target,
		CreatedAt: time.Now().UTC(),
	}
	err = repo.execWrap(
		"INSERT INTO run(id, seed, img_size, iterations, params, target, created_at) VALUES(?, ?, ?, ?, ?, ?, ?)",
		run.Id.String(), int64(params.Seed), params.ImgSize, params.Iterations, string(encoded), target, run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (repo *Repository) FinishRun(id ulid.ULID, finalFitness float64) error {
	return repo.execWrap("UPDATE run SET final_fitness = ? WHERE id = ?", finalFitness, id.String())
}

func (repo *Repository) FindRun(id ulid.ULID) (*Run, error) {
	row := repo.Db.QueryRow("SELECT id, params, target, created_at, final_fitness FROM run WHERE id = ? LIMIT 1", id.String())
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns the most recent runs first
func (repo *Repository) ListRuns(limit int) ([]*Run, error) {
	rows, err := repo.Db.Query("SELECT id, params, target, created_at, final_fitness FROM run ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("error in db execution: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var id, params string
	var created int64
	if err := row.Scan(&id, &params, &run.Target, &created, &run.FinalFitness); err != nil {
		return nil, err
	}
	parsed, err := ulid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("bad run id %q: %w", id, err)
	}
	run.Id = parsed
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return nil, fmt.Errorf("bad params of run %s: %w", id, err)
	}
	run.CreatedAt = time.Unix(0, created).UTC()
	return &run, nil
}

func (repo *Repository) AddGeneration(id ulid.ULID, stats ai.GenerationStats) error {
	return repo.execWrap(
		"INSERT INTO generation(run_id, gen, mean_fitness, min_fitness, perfect, pixels, duration_ns) VALUES(?, ?, ?, ?, ?, ?, ?)",
		id.String(), stats.Generation, stats.MeanFitness, stats.MinFitness, stats.PerfectMatches, stats.Pixels, int64(stats.Duration),
	)
}

func (repo *Repository) Generations(id ulid.ULID) ([]ai.GenerationStats, error) {
	rows, err := repo.Db.Query(
		"SELECT gen, mean_fitness, min_fitness, perfect, pixels, duration_ns FROM generation WHERE run_id = ? ORDER BY gen",
		id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("error in db execution: %w", err)
	}
	defer rows.Close()

	var out []ai.GenerationStats
	for rows.Next() {
		var s ai.GenerationStats
		var duration int64
		if err := rows.Scan(&s.Generation, &s.MeanFitness, &s.MinFitness, &s.PerfectMatches, &s.Pixels, &duration); err != nil {
			return nil, err
		}
		s.Duration = time.Duration(duration)
		out = append(out, s)
	}
	return out, rows.Err()
}

// AddFrame stores the frame pixels compressed with zstd
func (repo *Repository) AddFrame(id ulid.ULID, frame ai.Frame) error {
	b := frame.Image.Bounds()
	blob := frameEncoder.EncodeAll(frame.Image.Pix, nil)
	return repo.execWrap(
		"INSERT INTO frame(run_id, gen, width, height, pixels) VALUES(?, ?, ?, ?, ?)",
		id.String(), frame.Generation, b.Dx(), b.Dy(), blob,
	)
}

// Frames returns the stored frames of a run in generation order
func (repo *Repository) Frames(id ulid.ULID) ([]ai.Frame, error) {
	rows, err := repo.Db.Query("SELECT gen, width, height, pixels FROM frame WHERE run_id = ? ORDER BY gen", id.String())
	if err != nil {
		return nil, fmt.Errorf("error in db execution: %w", err)
	}
	defer rows.Close()

	var frames []ai.Frame
	for rows.Next() {
		var gen, w, h int
		var blob []byte
		if err := rows.Scan(&gen, &w, &h, &blob); err != nil {
			return nil, err
		}
		pix, err := frameDecoder.DecodeAll(blob, nil)
		if err != nil {
			return nil, fmt.Errorf("frame %d of run %s: %w", gen, id, err)
		}
		if len(pix) != 4*w*h {
			return nil, fmt.Errorf("frame %d of run %s: %d bytes for %dx%d", gen, id, len(pix), w, h)
		}
		img := &image.RGBA{Pix: pix, Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}
		frames = append(frames, ai.Frame{Generation: gen, Image: img})
	}
	return frames, rows.Err()
}

// Observer persists every generation of a run and the frames keep accepts
func (repo *Repository) Observer(id ulid.ULID, keep func(gen int) bool) ai.Observer {
	return func(stats ai.GenerationStats, frame ai.Frame) {
		if err := repo.AddGeneration(id, stats); err != nil {
			log.Printf("Failed to store generation %d: %v", stats.Generation, err)
		}
		if keep != nil && keep(frame.Generation) {
			if err := repo.AddFrame(id, frame); err != nil {
				log.Printf("Failed to store frame %d: %v", frame.Generation, err)
			}
		}
	}
}

func (repo *Repository) execWrap(query string, args ...any) error {
	if _, err := repo.Db.Exec(query, args...); err != nil {
		return fmt.Errorf("error in db execution: %w", err)
	}
	return nil
}
