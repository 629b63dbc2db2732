package panel

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"grammarrelay/internal/bus"
	"grammarrelay/internal/markdown"
	"grammarrelay/internal/typewriter"
)

type busMsg bus.Message

type frameMsg typewriter.Frame

type idleMsg struct{}

type busClosedMsg struct{}

// frameSurface hands typewriter frames to the program. Only the newest
// frame is kept so Paint never blocks.
type frameSurface struct {
	ch chan typewriter.Frame
}

func newFrameSurface() *frameSurface {
	return &frameSurface{ch: make(chan typewriter.Frame, 1)}
}

func (s *frameSurface) Paint(f typewriter.Frame) {
	for {
		select {
		case s.ch <- f:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#667eea"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#38a169"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e53e3e"))
	hintStyle   = lipgloss.NewStyle().Faint(true)
)

// Model is the analysis panel: it follows the bus and types the result out.
type Model struct {
	sub     *bus.Subscription
	surface *frameSurface
	tw      *typewriter.Renderer
	theme   markdown.Theme

	header  string
	footer  string
	errLine string
	frame   typewriter.Frame
	width   int

	// ExitOnFinish quits once a result is fully typed or an error arrives.
	ExitOnFinish bool
	finished     bool
}

func New(sub *bus.Subscription, theme markdown.Theme, opts ...typewriter.Option) *Model {
	surface := newFrameSurface()
	return &Model{
		sub:     sub,
		surface: surface,
		tw:      typewriter.New(surface, opts...),
		theme:   theme,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitBus(), m.waitFrame())
}

func (m *Model) waitBus() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.sub.C()
		if !ok {
			return busClosedMsg{}
		}
		return busMsg(msg)
	}
}

func (m *Model) waitFrame() tea.Cmd {
	return func() tea.Msg {
		return frameMsg(<-m.surface.ch)
	}
}

func (m *Model) waitIdle() tea.Cmd {
	return func() tea.Msg {
		m.tw.Wait()
		return idleMsg{}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case frameMsg:
		m.frame = typewriter.Frame(msg)
		return m, m.waitFrame()
	case busMsg:
		return m, tea.Batch(m.handleBus(bus.Message(msg)), m.waitBus())
	case busClosedMsg:
		return m, nil
	case idleMsg:
		if m.finished && m.ExitOnFinish {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Model) handleBus(msg bus.Message) tea.Cmd {
	switch msg.Topic {
	case bus.TopicStarted:
		m.tw.Clear()
		m.header = "Analyzing: " + preview(msg.Text, 60)
		m.footer = ""
		m.errLine = ""
		m.finished = false
	case bus.TopicChunk:
		m.tw.AddToQueue(msg.Chunk)
	case bus.TopicCompleted:
		m.footer = "✓ Analysis complete"
		m.finished = true
		return m.waitIdle()
	case bus.TopicError:
		m.errLine = "✗ " + msg.Error
		m.finished = true
		if m.ExitOnFinish {
			return tea.Quit
		}
	}
	return nil
}

func (m *Model) View() string {
	var b strings.Builder
	if m.header != "" {
		b.WriteString(headerStyle.Render(m.header))
		b.WriteString("\n\n")
	}
	b.WriteString(markdown.Terminal(m.frame.Nodes, m.theme))
	b.WriteString(m.frame.Cursor)
	b.WriteString("\n")
	if m.footer != "" {
		b.WriteString("\n" + footerStyle.Render(m.footer) + "\n")
	}
	if m.errLine != "" {
		b.WriteString("\n" + errorStyle.Render(m.errLine) + "\n")
	}
	if !m.ExitOnFinish {
		b.WriteString(hintStyle.Render("q to quit") + "\n")
	}
	return b.String()
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
