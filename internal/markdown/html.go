package markdown

import (
	"html"
	"strconv"
	"strings"
)

// HTML renders nodes with every text run escaped.
func HTML(nodes []Node) string {
	var b strings.Builder
	for _, n := range nodes {
		switch n.Kind {
		case KindHeading:
			tag := "h" + strconv.Itoa(n.Level)
			b.WriteString("<" + tag + ">")
			writeHTMLSpans(&b, n.Spans)
			b.WriteString("</" + tag + ">")
		case KindList:
			b.WriteString("<ul>")
			for _, item := range n.Items {
				b.WriteString("<li>")
				writeHTMLSpans(&b, item)
				b.WriteString("</li>")
			}
			b.WriteString("</ul>")
		case KindBreak:
			b.WriteString("<br>")
		default:
			writeHTMLSpans(&b, n.Spans)
		}
	}
	return b.String()
}

func writeHTMLSpans(b *strings.Builder, spans []Span) {
	for _, s := range spans {
		text := html.EscapeString(s.Text)
		switch s.Kind {
		case SpanBold:
			b.WriteString("<strong>" + text + "</strong>")
		case SpanItalic:
			b.WriteString("<em>" + text + "</em>")
		case SpanCode:
			b.WriteString("<code>" + text + "</code>")
		default:
			b.WriteString(text)
		}
	}
}
