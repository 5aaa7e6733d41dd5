package ratelimit

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator guesses the token cost of outbound text. It uses the model's
// tiktoken encoding when one is available and falls back to a chars/4
// heuristic when the model is unknown or the encoding cannot load.
type Estimator struct {
	model string

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewEstimator builds an estimator for the given model name.
func NewEstimator(model string) *Estimator {
	return &Estimator{model: model}
}

// Estimate sums the estimated token count across the given texts.
func (e *Estimator) Estimate(texts ...string) int {
	e.once.Do(func() {
		if enc, err := tiktoken.EncodingForModel(e.model); err == nil {
			e.enc = enc
		}
	})

	total := 0
	for _, text := range texts {
		if text == "" {
			continue
		}
		if e.enc != nil {
			total += len(e.enc.Encode(text, nil, nil))
			continue
		}
		total += (len(text) + 3) / 4
	}
	return total
}
