package conversation

import (
	"regexp"
	"strings"

	"github.com/ternarybob/dossier/internal/models"
)

// Intent is what a user message asks the bot to do
type Intent string

const (
	IntentRestart  Intent = "restart"  // reset and greet
	IntentStart    Intent = "start"    // reset and ask for project types
	IntentAddMore  Intent = "add_more" // back to waiting for documents
	IntentRun      Intent = "run"      // start the analysis pipeline
	IntentQuestion Intent = "question" // looks like a question, answer with a hint
	IntentOther    Intent = "other"    // state-specific input (codes, documents) or noise
)

var (
	restartIndicators = []string{"привет", "hello", "help", "помощь", "/start", "start", "новый анализ"}
	startIndicators   = []string{"начать анализ", "🚀"}
	addMoreIndicators = []string{"добавить", "еще", "ещё", "➕"}
	runIndicators     = []string{"анализ", "готово", "старт", "все документы", "🔄", "run"}
	questionWords     = []string{"что", "как", "?"}
)

var linkPattern = regexp.MustCompile(`https?://\S+`)

// ClassifyIntent maps a message to an intent for the given state. Links are
// ignored so page titles inside URLs never read as commands.
func ClassifyIntent(message string, state models.SessionState) Intent {
	text := strings.ToLower(strings.TrimSpace(linkPattern.ReplaceAllString(message, " ")))

	// The run card advertises "🔄 начать анализ", which must not restart
	if state == models.StateAskingMoreDocuments && strings.Contains(text, "🔄") {
		return IntentRun
	}

	if containsAny(text, startIndicators) {
		return IntentStart
	}
	if containsAny(text, restartIndicators) {
		return IntentRestart
	}

	if state != models.StateAskingMoreDocuments {
		return IntentOther
	}

	switch {
	case containsAny(text, addMoreIndicators):
		return IntentAddMore
	case containsAny(text, runIndicators):
		return IntentRun
	case len([]rune(text)) > 2 && containsAny(text, questionWords):
		return IntentQuestion
	}
	return IntentOther
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
