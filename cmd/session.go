/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/pflag"

	"github.com/SvenDH/go-pixel-evolution/ai"
	"github.com/SvenDH/go-pixel-evolution/raster"
	"github.com/SvenDH/go-pixel-evolution/report"
	"github.com/SvenDH/go-pixel-evolution/server"
)

// runOptions are the flags shared by evolve and serve. The GA parameters
// themselves are fixed; only the seed and the worker count can be chosen.
type runOptions struct {
	params ai.Params
	every  int
	gif    raster.GIFOptions

	target string
	out    string
	gifOut string
	sample string
	plot   string
}

func defaultRunOptions() *runOptions {
	return &runOptions{params: ai.DefaultParams(), every: 1, gif: raster.DefaultGIFOptions()}
}

func (o *runOptions) register(flags *pflag.FlagSet) {
	p := &o.params
	flags.Uint64Var(&p.Seed, "seed", p.Seed, "Random seed")
	flags.IntVarP(&p.Workers, "workers", "w", p.Workers, "Worker goroutines")
	flags.IntVar(&p.LogEvery, "log-every", p.LogEvery, "Log progress every N generations (0 disables)")

	flags.IntVar(&o.every, "every", o.every, "Record a frame every N generations (the last is always kept)")
	flags.IntVar(&o.gif.MaxFrames, "max-frames", o.gif.MaxFrames, "Maximum frames in the GIF (0 = all)")
	flags.IntVar(&o.gif.Delay, "delay", o.gif.Delay, "GIF frame delay in 100ths of a second")
	flags.IntVar(&o.gif.Scale, "scale", o.gif.Scale, "Integer upscale of GIF frames")
	flags.BoolVar(&o.gif.Label, "label", false, "Draw the generation number on GIF frames")
	flags.BoolVar(&o.gif.Dither, "dither", false, "Dither GIF frames with Floyd-Steinberg")

	flags.StringVarP(&o.out, "out", "o", "evolved_image.png", "Final image output (empty to skip)")
	flags.StringVar(&o.gifOut, "gif", "evolution.gif", "Animation output (empty to skip)")
	flags.StringVar(&o.sample, "sample", "target_sample.png", "Where to save the resized target (empty to skip)")
	flags.StringVar(&o.plot, "plot", "", "Fitness chart output, e.g. fitness.png")
}

// validate checks the flags before any work is done
func (o *runOptions) validate() error {
	if err := o.params.Validate(); err != nil {
		return err
	}
	if o.every < 1 {
		return fmt.Errorf("%w: frame interval %d must be at least 1", ai.ErrConfig, o.every)
	}
	if o.gif.MaxFrames < 0 || o.gif.Scale < 1 || o.gif.Delay < 0 {
		return fmt.Errorf("%w: bad GIF options %+v", ai.ErrConfig, o.gif)
	}
	return nil
}

// loadTarget reads the target image, falling back to a generated gradient
// when the file does not exist.
func (o *runOptions) loadTarget() (*image.RGBA, error) {
	if o.target != "" {
		img, err := raster.LoadTarget(o.target, o.params.ImgSize)
		if err == nil {
			log.Printf("Loaded target %s resized to %dx%d", o.target, o.params.ImgSize, o.params.ImgSize)
			return img, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		log.Printf("Target %s not found, using a sample gradient", o.target)
	}
	return raster.SampleTarget(o.params.ImgSize), nil
}

// session is one evolution run with its outputs and optional run store
type session struct {
	opts    *runOptions
	repo    *server.Repository
	run     *server.Run
	target  *image.RGBA
	evolver *ai.Evolver
	rec     *ai.FrameRecorder
}

func newSession(opts *runOptions) (*session, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	target, err := opts.loadTarget()
	if err != nil {
		return nil, err
	}
	if opts.sample != "" {
		if err := raster.SavePNG(opts.sample, target); err != nil {
			return nil, fmt.Errorf("saving target sample: %w", err)
		}
	}
	evolver, err := ai.NewEvolver(opts.params, target)
	if err != nil {
		return nil, err
	}
	s := &session{
		opts:    opts,
		target:  target,
		evolver: evolver,
		rec:     ai.NewFrameRecorder(opts.params.Iterations, opts.every),
	}

	if dbPath == "" {
		s.run = &server.Run{Id: ulid.Make(), Params: opts.params, Target: opts.target, CreatedAt: time.Now()}
		return s, nil
	}
	s.repo, err = server.OpenRepository(dbPath)
	if err != nil {
		return nil, err
	}
	s.run, err = s.repo.AddRun(opts.params, opts.target)
	if err != nil {
		s.repo.Close()
		return nil, err
	}
	evolver.Observe(s.repo.Observer(s.run.Id, s.rec.Keeps))
	log.Printf("Recording run %s to %s", s.run.Id, dbPath)
	return s, nil
}

func (s *session) Observe(fn ai.Observer) {
	s.evolver.Observe(fn)
}

// Run evolves the image and writes every requested output
func (s *session) Run() (*ai.Result, error) {
	p := s.opts.params
	log.Printf("Evolving %dx%d pixels, population %d, %d generations, %s crossover, %d workers",
		p.ImgSize, p.ImgSize, p.PopulationSize, p.Iterations, p.Crossover, p.Workers)
	start := time.Now()
	res := s.evolver.Run(s.rec)
	elapsed := time.Since(start)

	if s.opts.out != "" {
		if err := raster.SavePNG(s.opts.out, res.Final); err != nil {
			return res, fmt.Errorf("saving result: %w", err)
		}
		log.Printf("Saved final image to %s", s.opts.out)
	}
	if s.opts.gifOut != "" {
		if err := raster.SaveGIF(s.opts.gifOut, res.Frames, s.opts.gif); err != nil {
			return res, fmt.Errorf("saving animation: %w", err)
		}
		log.Printf("Saved animation to %s", s.opts.gifOut)
	}
	if s.opts.plot != "" {
		title := fmt.Sprintf("Run %s", s.run.Id)
		if err := report.PlotFitness(res.Stats, title, s.opts.plot); err != nil {
			return res, fmt.Errorf("saving fitness plot: %w", err)
		}
		log.Printf("Saved fitness plot to %s", s.opts.plot)
	}

	final := res.Stats[len(res.Stats)-1]
	if s.repo != nil {
		if err := s.repo.FinishRun(s.run.Id, final.MeanFitness); err != nil {
			return res, err
		}
	}
	fmt.Println(summary(s.run, res, elapsed))
	return res, nil
}

func (s *session) Close() {
	if s.repo != nil {
		s.repo.Close()
	}
}

var (
	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(18)
)

func summary(run *server.Run, res *ai.Result, elapsed time.Duration) string {
	final := res.Stats[len(res.Stats)-1]
	row := func(k string, v any) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, keyStyle.Render(k), fmt.Sprint(v))
	}
	return summaryStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Run "+run.Id.String()),
		row("generations", len(res.Stats)),
		row("initial fitness", fmt.Sprintf("%.2f", res.Initial.MeanFitness)),
		row("final fitness", fmt.Sprintf("%.2f / %d", final.MeanFitness, ai.MaxFitness)),
		row("worst pixel", final.MinFitness),
		row("perfect matches", fmt.Sprintf("%.2f%% (%d/%d)", 100*final.PerfectRatio(), final.PerfectMatches, final.Pixels)),
		row("frames", len(res.Frames)),
		row("elapsed", elapsed.Round(time.Millisecond)),
	))
}
