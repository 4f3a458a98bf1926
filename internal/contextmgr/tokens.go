package contextmgr

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encoderMu    sync.Mutex
	encoderCache = make(map[string]*tiktoken.Tiktoken)
)

// EstimateTokens counts tokens for model. When no tiktoken encoding is
// known for the model (or the encoding data is unavailable offline), the
// count degrades to a character-ratio approximation.
func EstimateTokens(model, text string, charsPerToken int) int {
	if charsPerToken <= 0 {
		charsPerToken = 4
	}

	if model != "" {
		encoderMu.Lock()
		enc, ok := encoderCache[model]
		if !ok {
			var err error
			enc, err = tiktoken.EncodingForModel(model)
			if err != nil {
				enc = nil
			}
			encoderCache[model] = enc
		}
		encoderMu.Unlock()

		if enc != nil {
			return len(enc.Encode(text, nil, nil))
		}
	}

	return (len(text) + charsPerToken - 1) / charsPerToken
}
