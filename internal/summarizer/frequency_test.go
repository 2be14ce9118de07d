package summarizer_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"webrag/internal/summarizer"
)

func TestSummarizeShortTextUnchanged(t *testing.T) {
	s := summarizer.NewFrequencySummarizer()
	gt.Equal(t, s.Summarize("Only one sentence here.", 3), "Only one sentence here.")
}

func TestSummarizePicksFrequentSentencesInOrder(t *testing.T) {
	text := strings.Join([]string{
		"Rust ownership rules govern memory.",
		"The weather was nice yesterday.",
		"Ownership moves values and the borrow checker enforces ownership rules.",
		"Lunch was pasta.",
	}, " ")
	s := summarizer.NewFrequencySummarizer()
	out := s.Summarize(text, 2)

	gt.Equal(t, out, "Rust ownership rules govern memory. Ownership moves values and the borrow checker enforces ownership rules.")
}
