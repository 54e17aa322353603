package tokenizer

import (
	"context"

	"github.com/pkoukk/tiktoken-go"
)

var _ Estimator = (*Tiktoken)(nil)

// Tiktoken is an Estimator backed by the tiktoken-go encoder (same
// GetEncoding construction used throughout this codebase), trimmed to
// the text-estimation operation the extractor's prompt budgeting
// needs.
type Tiktoken struct {
	encoding *tiktoken.Tiktoken
}

// NewCL100KBase returns a Tiktoken estimator using the cl100k_base
// encoding, the encoding OpenAI's gpt-3.5/gpt-4 family use.
func NewCL100KBase() (*Tiktoken, error) {
	return New(tiktoken.MODEL_CL100K_BASE)
}

// New returns a Tiktoken estimator for the named encoding.
func New(encodingName string) (*Tiktoken, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	return &Tiktoken{encoding: encoding}, nil
}

// EstimateText returns the token count for text.
func (t *Tiktoken) EstimateText(_ context.Context, text string) (int, error) {
	return len(t.encoding.Encode(text, nil, nil)), nil
}
