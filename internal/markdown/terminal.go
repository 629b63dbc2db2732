package markdown

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds the terminal styles for each construct.
type Theme struct {
	Name    string
	Title   lipgloss.Style
	Heading lipgloss.Style
	Section lipgloss.Style
	Bold    lipgloss.Style
	Italic  lipgloss.Style
	Code    lipgloss.Style
	Bullet  lipgloss.Style
	Text    lipgloss.Style
}

func LightTheme() Theme {
	return Theme{
		Name:    "light",
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4c51bf")),
		Heading: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#667eea")),
		Section: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2d3748")),
		Bold:    lipgloss.NewStyle().Bold(true),
		Italic:  lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#4a5568")),
		Code:    lipgloss.NewStyle().Foreground(lipgloss.Color("#c53030")).Background(lipgloss.Color("#edf2f7")),
		Bullet:  lipgloss.NewStyle().Foreground(lipgloss.Color("#667eea")),
		Text:    lipgloss.NewStyle(),
	}
}

func DarkTheme() Theme {
	return Theme{
		Name:    "dark",
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#a3bffa")),
		Heading: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7f9cf5")),
		Section: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e2e8f0")),
		Bold:    lipgloss.NewStyle().Bold(true),
		Italic:  lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#a0aec0")),
		Code:    lipgloss.NewStyle().Foreground(lipgloss.Color("#feb2b2")).Background(lipgloss.Color("236")),
		Bullet:  lipgloss.NewStyle().Foreground(lipgloss.Color("#7f9cf5")),
		Text:    lipgloss.NewStyle(),
	}
}

// ThemeByName falls back to the light theme for unknown names.
func ThemeByName(name string) Theme {
	if strings.EqualFold(name, "dark") {
		return DarkTheme()
	}
	return LightTheme()
}

// Terminal renders nodes as styled terminal text.
func Terminal(nodes []Node, theme Theme) string {
	var b strings.Builder
	for _, n := range nodes {
		switch n.Kind {
		case KindHeading:
			style := theme.Section
			switch n.Level {
			case 1:
				style = theme.Title
			case 2:
				style = theme.Heading
			}
			b.WriteString(style.Render(plainSpans(n.Spans)))
		case KindList:
			for i, item := range n.Items {
				if i > 0 {
					b.WriteByte('\n')
				}
				b.WriteString("  " + theme.Bullet.Render("•") + " " + terminalSpans(item, theme))
			}
		case KindBreak:
			b.WriteByte('\n')
		default:
			b.WriteString(terminalSpans(n.Spans, theme))
		}
	}
	return b.String()
}

func terminalSpans(spans []Span, theme Theme) string {
	var b strings.Builder
	for _, s := range spans {
		switch s.Kind {
		case SpanBold:
			b.WriteString(theme.Bold.Render(s.Text))
		case SpanItalic:
			b.WriteString(theme.Italic.Render(s.Text))
		case SpanCode:
			b.WriteString(theme.Code.Render(s.Text))
		default:
			b.WriteString(theme.Text.Render(s.Text))
		}
	}
	return b.String()
}

func plainSpans(spans []Span) string {
	var b strings.Builder
	writeSpans(&b, spans)
	return b.String()
}
