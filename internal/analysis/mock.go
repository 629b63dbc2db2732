package analysis

import (
	"regexp"
	"strings"
)

var sentenceBoundary = regexp.MustCompile(`[.!?]+`)

// Sentences splits text on runs of sentence punctuation and drops empty
// pieces.
func Sentences(text string) []string {
	parts := sentenceBoundary.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MockAnalysis produces the deterministic stand-in report streamed when the
// upstream model cannot be reached.
func MockAnalysis(text string) string {
	sentences := Sentences(text)
	first := strings.TrimSpace(text)
	if len(sentences) > 0 {
		first = sentences[0]
	}
	kind := "a simple sentence"
	if len(sentences) > 1 {
		kind = "a compound sentence"
	}

	var b strings.Builder
	b.WriteString("## Grammar Analysis\n\n")
	b.WriteString("### 1. Sentence: " + first + "\n\n")
	b.WriteString("### 2. Grammar Structure\n")
	b.WriteString("This is " + kind + " built around a subject-verb-object structure.\n\n")
	b.WriteString("### 3. Advanced Vocabulary (B1+)\n")
	b.WriteString("- **analysis** /əˈnæləsɪs/ - a detailed examination\n")
	b.WriteString("- **structure** /ˈstrʌktʃər/ - the way parts are arranged\n")
	b.WriteString("- **complex** /ˈkɒmpleks/ - made of many connected parts\n\n")
	b.WriteString("### 4. Overall Meaning\n")
	b.WriteString("The sentence expresses a complete idea with a clear grammatical structure.\n\n")
	b.WriteString("### 5. Knowledge Points\n")
	b.WriteString("- **Grammar**: uses standard English grammar\n")
	b.WriteString("- **Sentence pattern**: follows common English usage\n")
	b.WriteString("- **Study tip**: pay attention to tense and voice\n\n")
	b.WriteString("*Note: this is a demo response. Configure an upstream API key for a real analysis.*")
	return b.String()
}
