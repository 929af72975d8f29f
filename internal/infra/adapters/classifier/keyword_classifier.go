package classifier

import (
	"context"
	"strings"
	"unicode"

	"github.com/ctroy978/edagent/internal/domain/ports/adapter"
)

var _ adapter.IntentClassifier = (*KeywordClassifier)(nil)

// KeywordClassifier is the deterministic fallback used in dev mode and when
// no classifier API key is configured. It looks for grading vocabulary as
// whole words only.
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier { return &KeywordClassifier{} }

var gradingWords = map[string]struct{}{
	"grade":      {},
	"grading":    {},
	"evaluate":   {},
	"evaluation": {},
	"essays":     {},
	"essay":      {},
	"rubric":     {},
	"assess":     {},
	"score":      {},
	"papers":     {},
	"submissions": {},
}

func (k *KeywordClassifier) Classify(_ context.Context, message string) (adapter.Intent, error) {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if _, ok := gradingWords[w]; ok {
			return adapter.IntentGrading, nil
		}
	}
	return adapter.IntentGeneral, nil
}
