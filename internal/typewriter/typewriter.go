// Package typewriter reveals streamed text one rune at a time and repaints
// the parsed markdown after every rune.
package typewriter

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"grammarrelay/internal/markdown"
)

const (
	DefaultSpeed            = 20 * time.Millisecond
	DefaultPunctuationPause = 50 * time.Millisecond
	DefaultCursor           = "|"
)

// Frame is one rendered state. Cursor is empty when no cursor is shown.
type Frame struct {
	Nodes  []markdown.Node
	Text   string
	Cursor string
}

// Surface receives frames. Paint is called with the renderer locked, so it
// must not block or call back into the Renderer.
type Surface interface {
	Paint(Frame)
}

type SurfaceFunc func(Frame)

func (f SurfaceFunc) Paint(fr Frame) { f(fr) }

type Options struct {
	Speed            time.Duration
	PunctuationPause time.Duration
	ShowCursor       bool
	CursorChar       string
	Sleep            func(time.Duration)
}

type Option func(*Options)

func WithSpeed(d time.Duration) Option {
	return func(o *Options) { o.Speed = d }
}

func WithPunctuationPause(d time.Duration) Option {
	return func(o *Options) { o.PunctuationPause = d }
}

func WithCursor(show bool, glyph string) Option {
	return func(o *Options) {
		o.ShowCursor = show
		if glyph != "" {
			o.CursorChar = glyph
		}
	}
}

func WithSleep(sleep func(time.Duration)) Option {
	return func(o *Options) { o.Sleep = sleep }
}

type Renderer struct {
	surface Surface

	mu      sync.Mutex
	idle    *sync.Cond
	opts    Options
	queue   []string
	partial string
	content strings.Builder
	typing  bool
	gen     uint64
}

func New(surface Surface, opts ...Option) *Renderer {
	r := &Renderer{
		surface: surface,
		opts: Options{
			Speed:            DefaultSpeed,
			PunctuationPause: DefaultPunctuationPause,
			ShowCursor:       true,
			CursorChar:       DefaultCursor,
			Sleep:            time.Sleep,
		},
	}
	r.idle = sync.NewCond(&r.mu)
	r.SetOptions(opts...)
	return r
}

func (r *Renderer) SetOptions(opts ...Option) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, opt := range opts {
		opt(&r.opts)
	}
	if r.opts.Sleep == nil {
		r.opts.Sleep = time.Sleep
	}
}

// AddToQueue appends fragment to the text still to be typed. A multibyte
// rune split across fragments is held back until its last byte arrives.
func (r *Renderer) AddToQueue(fragment string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fragment, r.partial = splitPartialRune(r.partial + fragment)
	if fragment == "" {
		return
	}
	r.queue = append(r.queue, fragment)
	if !r.typing {
		r.typing = true
		go r.drain(r.gen)
	}
}

func (r *Renderer) drain(gen uint64) {
	for {
		r.mu.Lock()
		if r.gen != gen {
			r.mu.Unlock()
			return
		}
		if len(r.queue) == 0 {
			r.typing = false
			r.paintLocked(false)
			r.idle.Broadcast()
			r.mu.Unlock()
			return
		}
		fragment := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		for _, ch := range fragment {
			r.mu.Lock()
			if r.gen != gen {
				r.mu.Unlock()
				return
			}
			r.content.WriteRune(ch)
			r.paintLocked(true)
			delay := r.opts.Speed
			if IsPunctuation(ch) {
				delay += r.opts.PunctuationPause
			}
			sleep := r.opts.Sleep
			r.mu.Unlock()
			sleep(delay)
		}
	}
}

func (r *Renderer) paintLocked(typing bool) {
	text := r.content.String()
	fr := Frame{Nodes: markdown.Parse(text), Text: text}
	if typing && r.opts.ShowCursor {
		fr.Cursor = r.opts.CursorChar
	}
	r.surface.Paint(fr)
}

// Clear drops queued text and content. A drain loop still running stops
// before its next rune.
func (r *Renderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
	r.paintLocked(false)
	r.idle.Broadcast()
}

func (r *Renderer) resetLocked() {
	r.gen++
	r.queue = nil
	r.partial = ""
	r.content.Reset()
	r.typing = false
}

// ShowInstantly replaces everything with content without the typing effect.
func (r *Renderer) ShowInstantly(content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
	r.content.WriteString(content)
	r.paintLocked(false)
	r.idle.Broadcast()
}

func (r *Renderer) Content() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.content.String()
}

func (r *Renderer) Typing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.typing
}

// Wait blocks until the queue is drained or cleared.
func (r *Renderer) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.typing {
		r.idle.Wait()
	}
}

// splitPartialRune cuts an incomplete UTF-8 sequence off the end of s.
// Invalid bytes are not held back.
func splitPartialRune(s string) (whole, partial string) {
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(s[i]) {
			continue
		}
		if !utf8.FullRuneInString(s[i:]) {
			return s[:i], s[i:]
		}
		break
	}
	return s, ""
}

// IsPunctuation reports whether ch earns the extra pause.
func IsPunctuation(ch rune) bool {
	switch ch {
	case '.', ',', '!', '?', ';', ':',
		'。', '，', '！', '？', '；', '：':
		return true
	}
	return false
}
