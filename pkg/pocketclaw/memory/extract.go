// Package memory – extract.go scans finished conversation turns for
// context worth keeping without asking the LLM. Cheap keyword heuristics
// only; the model can always store richer context through its memory
// tools.
package memory

import (
	"strings"
)

// locationPatterns signal where the owner currently is.
var locationPatterns = []string{
	"i'm at", "i am at", "i'm in", "i am in",
	"i'm home", "i am home", "at work", "at the office",
}

// planPatterns signal something the owner intends to do later.
var planPatterns = []string{
	"i'll ", "i will ", "going to", "planning to", "plan to",
	"later today", "this afternoon", "this evening", "tonight",
}

// datePatterns signal the turn is anchored to a concrete day.
var datePatterns = []string{"today", "tomorrow"}

// contextSnippetLen caps how much of the message is kept as current
// context when a location pattern matches.
const contextSnippetLen = 50

// AbsorbTurn inspects the owner's message from a completed turn and
// updates short-term context when it matches known patterns. Returns
// whether anything was stored.
func (s *Store) AbsorbTurn(userMessage string) bool {
	lower := strings.ToLower(userMessage)
	m := s.Load()
	updated := false

	for _, pattern := range datePatterns {
		if strings.Contains(lower, pattern) {
			m.ShortTerm.CurrentDate = s.now().Format("2006-01-02")
			updated = true
			break
		}
	}

	for _, pattern := range locationPatterns {
		idx := strings.Index(lower, pattern)
		if idx < 0 {
			continue
		}
		snippet := userMessage[idx:]
		if len(snippet) > contextSnippetLen {
			snippet = snippet[:contextSnippetLen]
		}
		m.ShortTerm.CurrentContext = snippet
		updated = true
		break
	}

	for _, pattern := range planPatterns {
		if !strings.Contains(lower, pattern) {
			continue
		}
		duplicate := false
		for _, p := range m.ShortTerm.TodayPlans {
			if p == userMessage {
				duplicate = true
				break
			}
		}
		if !duplicate {
			m.ShortTerm.TodayPlans = append(m.ShortTerm.TodayPlans, userMessage)
			updated = true
		}
		break
	}

	if !updated {
		return false
	}
	if err := s.Save(m); err != nil {
		s.logger.Warn("saving absorbed context failed", "error", err)
		return false
	}
	return true
}
