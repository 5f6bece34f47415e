// Package summarize generates document summaries at three detail levels.
package summarize

import (
	"context"
	"fmt"
	"strings"
)

// DetailLevel selects how thorough a summary is.
type DetailLevel string

const (
	Quick    DetailLevel = "quick"
	Standard DetailLevel = "standard"
	Detailed DetailLevel = "detailed"
)

// maxInput bounds how much text is sent to the provider per level.
var maxInput = map[DetailLevel]int{
	Quick:    8000,
	Standard: 12000,
	Detailed: 16000,
}

// Generator abstracts the text generation provider.
type Generator interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Summarizer produces summaries via a generation provider.
type Summarizer struct {
	generator Generator
}

// New creates a Summarizer.
func New(g Generator) *Summarizer {
	return &Summarizer{generator: g}
}

// ParseLevel maps a user-supplied level string to a DetailLevel, defaulting
// to Standard for empty or unknown values.
func ParseLevel(s string) DetailLevel {
	switch DetailLevel(strings.ToLower(s)) {
	case Quick:
		return Quick
	case Detailed:
		return Detailed
	default:
		return Standard
	}
}

// Summarize generates a summary of text at the given detail level.
func (s *Summarizer) Summarize(ctx context.Context, text string, level DetailLevel) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text provided for summarization")
	}
	if _, ok := maxInput[level]; !ok {
		level = Standard
	}

	if limit := maxInput[level]; len(text) > limit {
		text = text[:limit] + "..."
	}

	summary, err := s.generator.Chat(ctx, "You are a precise summarization assistant.", prompt(text, level))
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

func prompt(text string, level DetailLevel) string {
	switch level {
	case Quick:
		return fmt.Sprintf("Provide a concise summary of the following text in 2-3 key bullet points. "+
			"Focus only on the most essential information and main conclusions.\n\nText:\n%s\n\nQuick Summary:", text)
	case Detailed:
		return fmt.Sprintf("Provide a comprehensive and detailed summary of the following text. Cover the "+
			"main topic and context, key points, important details (facts, numbers, dates), emerging "+
			"insights, and conclusions. Capture nuances while remaining well-organized.\n\nText:\n%s\n\nDetailed Summary:", text)
	default:
		return fmt.Sprintf("Provide a well-structured summary of the following text that covers the main "+
			"points comprehensively but concisely: the main topic, key themes as bullet points, relevant "+
			"details, and the main takeaways.\n\nText:\n%s\n\nSummary:", text)
	}
}
