package prompt

import (
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"

	"github.com/hiroq/engram/pkg/model"
)

// tokensPerMessage is the fixed per-message framing overhead by model. It
// covers the role and chat markup around the content.
var tokensPerMessage = map[string]int{
	"gpt-3.5-turbo":      4,
	"gpt-3.5-turbo-0301": 4,
	"gpt-4":              3,
	"gpt-4-0314":         3,
	"gemini-2.5-flash":   4,
	"gemini-2.5-pro":     4,
}

// tokensPerName is the extra cost charged when a message carries a name
// field.
var tokensPerName = map[string]int{
	"gpt-3.5-turbo":      -1,
	"gpt-3.5-turbo-0301": -1,
	"gpt-4":              1,
	"gpt-4-0314":         1,
	"gemini-2.5-flash":   1,
	"gemini-2.5-pro":     1,
}

// Tokenizer estimates the token count of a text for budget accounting.
type Tokenizer interface {
	Count(text string) int
}

// heuristicTokenizer approximates subword tokenization without a model
// vocabulary: whichever is larger of word count and a character-based
// estimate (one token per four characters).
type heuristicTokenizer struct{}

func (heuristicTokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	chars := (utf8.RuneCountInString(text) + 3) / 4
	if chars > words {
		return chars
	}
	return words
}

// modelTokens returns the accounting constants for the model identifier, or
// model.ErrUnsupportedModel when no table entry exists.
func modelTokens(modelID string) (perMessage, perName int, err error) {
	perMessage, ok := tokensPerMessage[modelID]
	if !ok {
		return 0, 0, goerr.Wrap(model.ErrUnsupportedModel, "no token accounting for model", goerr.V("model", modelID))
	}
	perName, ok = tokensPerName[modelID]
	if !ok {
		return 0, 0, goerr.Wrap(model.ErrUnsupportedModel, "no per-name accounting for model", goerr.V("model", modelID))
	}
	return perMessage, perName, nil
}
