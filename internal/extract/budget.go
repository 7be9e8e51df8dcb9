package extract

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Budget caps the number of transcript tokens sent to the model
type Budget struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
}

// NewBudget selects the tokenizer for model, falling back to cl100k_base
// for models tiktoken does not know. maxTokens <= 0 disables trimming and
// returns a nil Budget.
func NewBudget(model string, maxTokens int) (*Budget, error) {
	if maxTokens <= 0 {
		return nil, nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Budget{tokenizer: enc, maxTokens: maxTokens}, nil
}

// Count returns the token count for text
func (b *Budget) Count(text string) int {
	return len(b.tokenizer.Encode(text, nil, nil))
}

// Trim returns text cut to at most maxTokens tokens and whether it was cut.
// A nil Budget returns text unchanged.
func (b *Budget) Trim(text string) (string, bool) {
	if b == nil {
		return text, false
	}
	tokens := b.tokenizer.Encode(text, nil, nil)
	if len(tokens) <= b.maxTokens {
		return text, false
	}
	return b.tokenizer.Decode(tokens[:b.maxTokens]), true
}
