// Package tokenizer estimates token counts and cost for the TOKENS marker.
package tokenizer

import (
	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens with a tiktoken encoding.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// New creates a counter for the given model, falling back to treating the
// name as an encoding name.
func New(model string) (*Counter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(model)
		if err != nil {
			return nil, err
		}
	}
	return &Counter{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if c == nil || text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Pricing holds per-1K-token prices in USD.
type Pricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

// Cost computes the USD cost of a turn.
func (p Pricing) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000*p.InputPer1K + float64(outputTokens)/1000*p.OutputPer1K
}
