// Package budget estimates prompt size and trims retrieved cottage context
// so that a question always fits the chat model's input window. Because
// several LLM backends with different tokenizers are supported, it uses a
// conservative character heuristic: 1 token ≈ 4 characters.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input budget in tokens. It fits
	// within 8k-context models while leaving room for the answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for msgs,
// summing role and content plus a small per-message overhead.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimBlocks drops context blocks from the end (lowest ranked first) until
// fixedTokens plus the remaining blocks fit within maxTokens. The first
// block is never dropped; if it alone overflows it is truncated instead.
// maxTokens <= 0 disables trimming.
func TrimBlocks(fixedTokens int, blocks []string, maxTokens int) []string {
	if maxTokens <= 0 || len(blocks) == 0 {
		return blocks
	}

	total := fixedTokens
	for _, b := range blocks {
		total += Estimate(b)
	}
	for len(blocks) > 1 && total > maxTokens {
		total -= Estimate(blocks[len(blocks)-1])
		blocks = blocks[:len(blocks)-1]
	}
	if total <= maxTokens {
		return blocks
	}

	room := maxTokens - fixedTokens
	if room < 1 {
		room = 1
	}
	return []string{Truncate(blocks[0], room)}
}

// Truncate cuts s to at most tokens estimated tokens, backing off to a
// UTF-8 boundary.
func Truncate(s string, tokens int) string {
	limit := tokens * charsPerToken
	if limit >= len(s) {
		return s
	}
	if limit <= 0 {
		return ""
	}
	for limit > 0 && !isRuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
