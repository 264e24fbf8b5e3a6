// Package scoring defines the sentiment scoring interface and its placeholder engine.
package scoring

// Scorer computes sentiment scores, tags and summaries for transcript text.
type Scorer interface {
	// Score perturbs baseline and returns the new score.
	Score(baseline float64) float64

	// Rescore perturbs a previously stored score.
	Rescore(previous float64) float64

	// Tag derives the tag list for text.
	Tag(text string) []string

	// Summarize derives the summary line for text.
	Summarize(text string) string
}
