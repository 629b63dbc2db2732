// Package markdown parses the small markdown subset analysis reports use
// and renders it as HTML or styled terminal text.
package markdown

import (
	"regexp"
	"strings"
)

type Kind int

const (
	KindParagraph Kind = iota
	KindHeading
	KindList
	KindBreak
)

type SpanKind int

const (
	SpanText SpanKind = iota
	SpanBold
	SpanItalic
	SpanCode
)

type Span struct {
	Kind SpanKind
	Text string
}

// Node is one block. Level is set for headings, Items for lists and Spans
// for headings and paragraphs.
type Node struct {
	Kind  Kind
	Level int
	Spans []Span
	Items [][]Span
}

var listItemRe = regexp.MustCompile(`^\s*-\s+(.*)$`)

// Parse never fails. Text that is not a recognized construct, including
// unterminated inline markers, is kept literally.
func Parse(text string) []Node {
	lines := strings.Split(text, "\n")
	nodes := make([]Node, 0, len(lines)*2)
	for i, line := range lines {
		if m := listItemRe.FindStringSubmatch(line); m != nil {
			item := parseInline(m[1])
			// Consecutive items share one list.
			if n := len(nodes); n >= 2 && nodes[n-1].Kind == KindBreak && nodes[n-2].Kind == KindList {
				nodes = nodes[:n-1]
				nodes[n-2].Items = append(nodes[n-2].Items, item)
			} else {
				nodes = append(nodes, Node{Kind: KindList, Items: [][]Span{item}})
			}
		} else if level, rest := headingLevel(line); level > 0 {
			nodes = append(nodes, Node{Kind: KindHeading, Level: level, Spans: parseInline(rest)})
		} else if line != "" {
			nodes = append(nodes, Node{Kind: KindParagraph, Spans: parseInline(line)})
		}
		if i < len(lines)-1 {
			nodes = append(nodes, Node{Kind: KindBreak})
		}
	}
	return nodes
}

func headingLevel(line string) (int, string) {
	for level := 3; level >= 1; level-- {
		prefix := strings.Repeat("#", level) + " "
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			return level, rest
		}
	}
	return 0, ""
}

func parseInline(s string) []Span {
	var spans []Span
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			spans = append(spans, Span{Kind: SpanText, Text: text.String()})
			text.Reset()
		}
	}
	for i := 0; i < len(s); {
		switch {
		case s[i] == '`':
			if end := strings.IndexByte(s[i+1:], '`'); end > 0 {
				flush()
				spans = append(spans, Span{Kind: SpanCode, Text: s[i+1 : i+1+end]})
				i += end + 2
				continue
			}
			text.WriteByte(s[i])
			i++
		case strings.HasPrefix(s[i:], "**"):
			if end := strings.Index(s[i+2:], "**"); end > 0 {
				flush()
				spans = append(spans, Span{Kind: SpanBold, Text: s[i+2 : i+2+end]})
				i += end + 4
				continue
			}
			text.WriteString("**")
			i += 2
		case s[i] == '*':
			if end := strings.IndexByte(s[i+1:], '*'); end > 0 {
				flush()
				spans = append(spans, Span{Kind: SpanItalic, Text: s[i+1 : i+1+end]})
				i += end + 2
				continue
			}
			text.WriteByte(s[i])
			i++
		default:
			text.WriteByte(s[i])
			i++
		}
	}
	flush()
	return spans
}

// PlainText drops all markup and keeps the line structure.
func PlainText(nodes []Node) string {
	var b strings.Builder
	for _, n := range nodes {
		switch n.Kind {
		case KindBreak:
			b.WriteByte('\n')
		case KindList:
			for i, item := range n.Items {
				if i > 0 {
					b.WriteByte('\n')
				}
				b.WriteString("- ")
				writeSpans(&b, item)
			}
		default:
			writeSpans(&b, n.Spans)
		}
	}
	return b.String()
}

func writeSpans(b *strings.Builder, spans []Span) {
	for _, s := range spans {
		b.WriteString(s.Text)
	}
}
