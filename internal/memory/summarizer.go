package memory

import (
	"strings"
	"unicode/utf8"
)

const (
	summaryWindow = 5
	summaryMaxLen = 200
	summaryPrefix = "Recent conversation topics: "
)

// TopicSummarizer is the default Summarizer: it concatenates the user inputs
// of the most recent turns into a bounded topic line. An LLM-backed
// implementation can be substituted behind the same interface.
type TopicSummarizer struct{}

// NewTopicSummarizer returns the keyword-concatenation summarizer.
func NewTopicSummarizer() *TopicSummarizer { return &TopicSummarizer{} }

// Summarize joins the last five user inputs with single spaces and truncates
// the result to at most 200 bytes, never splitting a rune.
func (TopicSummarizer) Summarize(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}
	window := entries
	if len(window) > summaryWindow {
		window = window[len(window)-summaryWindow:]
	}
	inputs := make([]string, 0, len(window))
	for _, e := range window {
		inputs = append(inputs, e.UserInput)
	}
	topics := strings.Join(inputs, " ")
	if len(topics) > summaryMaxLen {
		// Back off to a rune boundary so a multibyte rune is never split.
		cut := summaryMaxLen
		for cut > 0 && !utf8.RuneStart(topics[cut]) {
			cut--
		}
		topics = topics[:cut]
	}
	return summaryPrefix + topics
}
