package scoring

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultBaseline is the score every new transcript starts from.
	DefaultBaseline = 0.8
	// DefaultVariance bounds the uniform perturbation applied to a score.
	DefaultVariance = 0.1
)

// Keyword that routes a transcript into the finance tags.
const financeKeyword = "money"

var (
	financeTags = []string{"finance", "risk"}
	generalTags = []string{"general"}
)

// Engine is the placeholder scorer: a baseline plus uniform noise, and
// keyword tagging. It is not sentiment analysis.
type Engine struct {
	variance float64
	random   func() float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithVariance sets the half-width of the uniform perturbation.
func WithVariance(v float64) Option {
	return func(e *Engine) {
		if v >= 0 {
			e.variance = v
		}
	}
}

// WithRandom replaces the [0,1) random source. Used by tests to pin results.
func WithRandom(fn func() float64) Option {
	return func(e *Engine) {
		if fn != nil {
			e.random = fn
		}
	}
}

// NewEngine creates a scoring engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		variance: DefaultVariance,
		random:   rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score returns baseline + U(-variance, variance) rounded to 3 decimals.
func (e *Engine) Score(baseline float64) float64 {
	delta := (e.random()*2 - 1) * e.variance
	return round3(baseline + delta)
}

// Rescore applies the same perturbation using the previous score as baseline.
func (e *Engine) Rescore(previous float64) float64 {
	return e.Score(previous)
}

// Tag returns ["finance","risk"] if text contains "money" (case-sensitive), else ["general"].
func (e *Engine) Tag(text string) []string {
	if strings.Contains(text, financeKeyword) {
		return append([]string(nil), financeTags...)
	}
	return append([]string(nil), generalTags...)
}

// Summarize reports the character length of text.
func (e *Engine) Summarize(text string) string {
	return fmt.Sprintf("Processed text length %d.", utf8.RuneCountInString(text))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
