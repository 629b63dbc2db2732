package analysis

import "strings"

const textMarker = "English text to analyze:\n"

const promptTemplate = `Act as my English teacher. I will give you a passage of English; analyze its sentence patterns and grammar.

Rules:
- Analyze the passage sentence by sentence using this format:

1. Sentence: [the original sentence]
2. Grammar structure: [explain the grammar and structure of the sentence]
3. Advanced vocabulary (B1 and above): [list words and phrases above B1 with synonyms and example sentences]
4. Overall meaning: [explain what the sentence means]
5. Knowledge points:
   - Terminology: [if any, give a precise definition and why it matters in its field]
   - Cultural references: [if any, explain their history and meaning]
   - Historical background: [if relevant, explain how it shapes the reading of the text]
   - Metaphor and symbolism: [if any, analyze the deeper meaning]
6. Provide only the core analysis, without any introduction, transitions or closing remarks.

`

// BuildPrompt embeds text into the grammar analysis instruction.
func BuildPrompt(text string) string {
	return promptTemplate + textMarker + text
}

// ExtractText recovers the analyzed text from a prompt built by BuildPrompt.
func ExtractText(prompt string) string {
	i := strings.LastIndex(prompt, textMarker)
	if i < 0 {
		return "Sample text"
	}
	text := strings.TrimSpace(prompt[i+len(textMarker):])
	if text == "" {
		return "Sample text"
	}
	return text
}
