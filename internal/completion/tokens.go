package completion

import "github.com/toneill57/innpilot-sub001/internal/model"

// EstimateTokens estimates the token count of text. ASCII runs about four
// characters per token; other scripts about one character per token.
func EstimateTokens(text string) int {
	weight := 0
	for _, r := range text {
		if r <= 127 {
			weight++
		} else {
			weight += 4
		}
	}
	return (weight + 3) / 4
}

// TruncateHistory keeps at most maxTurns of the most recent turns and then
// drops the oldest until the rest fit in tokenLimit. The result never
// starts with an assistant turn.
func TruncateHistory(history []model.Turn, tokenLimit, maxTurns int) []model.Turn {
	if maxTurns >= 0 && len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}

	total := 0
	for _, t := range history {
		total += EstimateTokens(t.Content)
	}
	for total > tokenLimit && len(history) > 0 {
		total -= EstimateTokens(history[0].Content)
		history = history[1:]
	}
	for len(history) > 0 && history[0].Role != model.RoleUser {
		history = history[1:]
	}
	return history
}
