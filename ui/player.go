package ui

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/SvenDH/go-pixel-evolution/ai"
)

// Player replays recorded frames of a run in a window.
//
// Controls: space pauses, left/right step one frame, R restarts and
// escape quits.
type Player struct {
	Frames        []ai.Frame
	TicksPerFrame int
	Scale         int
	ShowDebug     bool

	images  []*ebiten.Image
	current int
	ticks   int
	paused  bool
	quit    bool
}

func NewPlayer(frames []ai.Frame, ticksPerFrame, scale int) *Player {
	if ticksPerFrame < 1 {
		ticksPerFrame = 1
	}
	if scale < 1 {
		scale = 1
	}
	return &Player{
		Frames:        frames,
		TicksPerFrame: ticksPerFrame,
		Scale:         scale,
		images:        make([]*ebiten.Image, len(frames)),
	}
}

// Current returns the frame on screen
func (p *Player) Current() ai.Frame {
	return p.Frames[p.current]
}

var playerKeys = []ebiten.Key{
	ebiten.KeySpace, ebiten.KeyArrowLeft, ebiten.KeyArrowRight, ebiten.KeyR, ebiten.KeyEscape,
}

func (p *Player) Update() error {
	for _, key := range playerKeys {
		if inpututil.IsKeyJustPressed(key) {
			p.handleKey(key)
		}
	}
	if p.quit {
		return ebiten.Termination
	}
	p.tick()
	return nil
}

func (p *Player) handleKey(key ebiten.Key) {
	switch key {
	case ebiten.KeySpace:
		p.paused = !p.paused
	case ebiten.KeyArrowLeft:
		p.paused = true
		p.step(-1)
	case ebiten.KeyArrowRight:
		p.paused = true
		p.step(1)
	case ebiten.KeyR:
		p.current, p.ticks = 0, 0
	case ebiten.KeyEscape:
		p.quit = true
	}
}

// tick advances to the next frame every TicksPerFrame updates, holding the
// last frame for one extra round before looping.
func (p *Player) tick() {
	if p.paused || len(p.Frames) < 2 {
		return
	}
	p.ticks++
	limit := p.TicksPerFrame
	if p.current == len(p.Frames)-1 {
		limit *= 4
	}
	if p.ticks >= limit {
		p.ticks = 0
		p.step(1)
	}
}

func (p *Player) step(d int) {
	n := len(p.Frames)
	if n == 0 {
		return
	}
	p.current = ((p.current+d)%n + n) % n
}

func (p *Player) Draw(screen *ebiten.Image) {
	if len(p.Frames) == 0 {
		ebitenutil.DebugPrint(screen, "no frames")
		return
	}
	img := p.images[p.current]
	if img == nil {
		img = ebiten.NewImageFromImage(p.Frames[p.current].Image)
		p.images[p.current] = img
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(p.Scale), float64(p.Scale))
	screen.DrawImage(img, op)

	if p.ShowDebug || p.paused {
		msg := fmt.Sprintf("gen %d (%d/%d)", p.Frames[p.current].Generation+1, p.current+1, len(p.Frames))
		if p.paused {
			msg += " paused"
		}
		ebitenutil.DebugPrint(screen, msg)
	}
}

func (p *Player) Layout(outsideW, outsideH int) (int, int) {
	if len(p.Frames) == 0 {
		return 160, 120
	}
	b := p.Frames[0].Image.Bounds()
	return b.Dx() * p.Scale, b.Dy() * p.Scale
}
