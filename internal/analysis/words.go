package analysis

import (
	"fmt"
	"strings"
)

// InputError rejects text before any network call is made.
type InputError struct {
	Message string
	Count   int
	Min     int
	Max     int
}

func (e *InputError) Error() string { return e.Message }

// CountWords counts whitespace separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ValidateWordCount checks text against the inclusive bounds [min, max].
func ValidateWordCount(text string, min, max int) error {
	if strings.TrimSpace(text) == "" {
		return &InputError{Message: "missing text parameter", Min: min, Max: max}
	}
	n := CountWords(text)
	if n < min || n > max {
		return &InputError{
			Message: fmt.Sprintf("text must contain between %d and %d words, got %d", min, max, n),
			Count:   n,
			Min:     min,
			Max:     max,
		}
	}
	return nil
}
