package answer

import (
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/cottagebot/internal/rag"
)

// systemPrompt establishes the assistant persona. {context} and
// {standard_info} are filled per question.
const systemPrompt = `You are a friendly and knowledgeable assistant for a holiday cottage business.
You answer guests' questions about the cottages using only the information below.
If the answer is not in the information provided, say that you do not know and
suggest the guest contacts the owners. Keep answers short and specific, and name
the cottage you are talking about.

Information about the most relevant cottages:
{context}

{standard_info}`

// userPrompt carries the guest question.
const userPrompt = "Question: {question}\nAnswer:"

// newTemplate builds the FString chat template used for every question.
func newTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	)
}

// contextBlocks renders one "- <text>" block per match, best first.
// sources[i] is the match blocks[i] was rendered from; matches with
// neither text nor title produce no block.
func contextBlocks(matches []rag.Match) (blocks []string, sources []rag.Match) {
	blocks = make([]string, 0, len(matches))
	sources = make([]rag.Match, 0, len(matches))
	for _, m := range matches {
		text := strings.TrimSpace(m.Text())
		if text == "" {
			text = m.Title()
		}
		if text == "" {
			continue
		}
		blocks = append(blocks, "- "+text)
		sources = append(sources, m)
	}
	return blocks, sources
}

// standardInfoFrom returns the first non-empty standard_info block among
// matches, else fallback.
func standardInfoFrom(matches []rag.Match, key, fallback string) string {
	for _, m := range matches {
		if v := strings.TrimSpace(m.Metadata[key]); v != "" {
			return v
		}
	}
	return fallback
}
