package analysis

import (
	"strings"

	"github.com/ternarybob/dossier/internal/models"
)

var (
	negationTokens    = []string{"НЕ НАЙДЕН", "НЕ ОБНАРУЖЕН", "НЕ ПРЕДСТАВЛЕН", "ОТСУТСТВУЕТ", "ОТСУТСТВУЮТ", "NOT FOUND", "MISSING", "ABSENT"}
	partialTokens     = []string{"ЧАСТИЧНО", "НЕПОЛН", "PARTIAL", "INCOMPLETE"}
	affirmativeTokens = []string{"НАЙДЕН", "ОБНАРУЖЕН", "ПРИСУТСТВУЕТ", "ПРЕДСТАВЛЕН", "FOUND", "PRESENT"}
)

// Classify maps free status text to a verdict status. Negation wins over
// everything, then partial, then affirmative. No signal means not found.
func Classify(status string) models.VerdictStatus {
	upper := strings.ToUpper(status)
	switch {
	case containsAny(upper, negationTokens):
		return models.StatusNotFound
	case containsAny(upper, partialTokens):
		return models.StatusPartial
	case containsAny(upper, affirmativeTokens):
		return models.StatusFound
	default:
		return models.StatusNotFound
	}
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
