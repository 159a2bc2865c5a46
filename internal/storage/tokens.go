package storage

import "github.com/hammamikhairi/ottovoice/internal/domain"

// EstimateTokens approximates the token count of text. ASCII runes weigh
// about a quarter token each, anything else (CJK, Cyrillic, emoji) about a
// full token.
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

// windowTurns returns the newest suffix of turns whose combined estimated
// token count fits budget. Whole turns only. A budget <= 0 disables the
// window.
func windowTurns(turns []domain.Turn, budget int) []domain.Turn {
	if budget <= 0 || len(turns) == 0 {
		return turns
	}

	total := 0
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		cost := EstimateTokens(turns[i].Human) + EstimateTokens(turns[i].Assistant)
		if total+cost > budget {
			break
		}
		total += cost
		start = i
	}
	return turns[start:]
}
