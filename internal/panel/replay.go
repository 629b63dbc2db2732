package panel

import (
	"fmt"
	"io"

	"grammarrelay/internal/markdown"
	"grammarrelay/internal/typewriter"
)

type Format int

const (
	FormatTerminal Format = iota
	FormatHTML
)

// Replay shows saved content in one frame, without the typing effect.
func Replay(w io.Writer, content string, theme markdown.Theme, format Format) error {
	var out string
	tw := typewriter.New(typewriter.SurfaceFunc(func(f typewriter.Frame) {
		if format == FormatHTML {
			out = markdown.HTML(f.Nodes)
			return
		}
		out = markdown.Terminal(f.Nodes, theme)
	}), typewriter.WithCursor(false, ""))
	tw.ShowInstantly(content)
	_, err := fmt.Fprintln(w, out)
	return err
}
