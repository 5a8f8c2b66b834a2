package server

import (
	"bytes"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/SvenDH/go-pixel-evolution/ai"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := OpenRepository(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testFrame(gen, size int) ai.Frame {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = uint8(i*7 + gen)
	}
	return ai.Frame{Generation: gen, Image: img}
}

func TestAddAndFindRun(t *testing.T) {
	repo := newTestRepository(t)
	params := ai.DefaultParams()
	params.Seed = 1 << 63
	run, err := repo.AddRun(params, "target.png")
	if err != nil {
		t.Fatal(err)
	}
	found, err := repo.FindRun(run.Id)
	if err != nil {
		t.Fatal(err)
	}
	if found.Id != run.Id || found.Target != "target.png" {
		t.Fatalf("found run %+v, want %+v", found, run)
	}
	if found.Params != params {
		t.Fatalf("params %+v, want %+v", found.Params, params)
	}
	if found.FinalFitness.Valid {
		t.Fatalf("unfinished run has a final fitness")
	}
	if err := repo.FinishRun(run.Id, 700.5); err != nil {
		t.Fatal(err)
	}
	found, err = repo.FindRun(run.Id)
	if err != nil {
		t.Fatal(err)
	}
	if !found.FinalFitness.Valid || found.FinalFitness.Float64 != 700.5 {
		t.Fatalf("final fitness %+v", found.FinalFitness)
	}
}

func TestFindMissingRun(t *testing.T) {
	repo := newTestRepository(t)
	if _, err := repo.FindRun(ulid.Make()); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	repo := newTestRepository(t)
	var ids []ulid.ULID
	for range 3 {
		run, err := repo.AddRun(ai.DefaultParams(), "")
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, run.Id)
	}
	runs, err := repo.ListRuns(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Id != ids[2] || runs[1].Id != ids[1] {
		t.Fatalf("ListRuns returned %v", runs)
	}
}

func TestGenerationsRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	run, err := repo.AddRun(ai.DefaultParams(), "")
	if err != nil {
		t.Fatal(err)
	}
	want := []ai.GenerationStats{
		{Generation: 0, MeanFitness: 600.25, MinFitness: 400, PerfectMatches: 3, Pixels: 100, Duration: time.Millisecond},
		{Generation: 1, MeanFitness: 650, MinFitness: 500, PerfectMatches: 9, Pixels: 100, Duration: 2 * time.Millisecond},
	}
	for i := len(want) - 1; i >= 0; i-- {
		if err := repo.AddGeneration(run.Id, want[i]); err != nil {
			t.Fatal(err)
		}
	}
	got, err := repo.Generations(run.Id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d generations, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("generation %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFramesAreCompressedAndRestored(t *testing.T) {
	repo := newTestRepository(t)
	run, err := repo.AddRun(ai.DefaultParams(), "")
	if err != nil {
		t.Fatal(err)
	}
	frames := []ai.Frame{testFrame(0, 10), testFrame(5, 10)}
	for _, f := range frames {
		if err := repo.AddFrame(run.Id, f); err != nil {
			t.Fatal(err)
		}
	}
	got, err := repo.Frames(run.Id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d frames", len(got))
	}
	for i := range frames {
		if got[i].Generation != frames[i].Generation {
			t.Fatalf("frame %d generation %d", i, got[i].Generation)
		}
		if got[i].Image.Bounds() != frames[i].Image.Bounds() || !bytes.Equal(got[i].Image.Pix, frames[i].Image.Pix) {
			t.Fatalf("frame %d pixels differ", i)
		}
	}
}

func TestObserverStoresRun(t *testing.T) {
	repo := newTestRepository(t)
	params := ai.DefaultParams()
	params.ImgSize = 4
	params.Iterations = 6
	params.LogEvery = 0
	run, err := repo.AddRun(params, "")
	if err != nil {
		t.Fatal(err)
	}
	e, err := ai.NewEvolver(params, image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if err != nil {
		t.Fatal(err)
	}
	rec := ai.NewFrameRecorder(params.Iterations, 2)
	e.Observe(repo.Observer(run.Id, rec.Keeps))
	e.Run(rec)

	stats, err := repo.Generations(run.Id)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != params.Iterations {
		t.Fatalf("stored %d generations", len(stats))
	}
	frames, err := repo.Frames(run.Id)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != ai.ExpectedFrames(params.Iterations, 2) {
		t.Fatalf("stored %d frames", len(frames))
	}
}
