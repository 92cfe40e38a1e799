package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"kb-chat-be/internal/entity"
	"kb-chat-be/pkg/llm"
	"kb-chat-be/pkg/retrieval"
)

// DefaultCharBudget bounds the assembled generation context. Roughly 8k tokens
// at 4 chars/token, leaving headroom for the completion.
const DefaultCharBudget = 32000

const systemPreamble = `You are a knowledge-base assistant. Answer the user's question using ONLY the numbered source passages below.
Call the report function with your answer and, for every source you relied on, its source number and a short reason.
Do not invent sources. If the passages do not contain the answer, say so.`

// ContextBuilder assembles the bounded generation context: the retrieved
// passages tagged with their source numbers plus recent conversation history.
// When the assembly exceeds the budget it drops the lowest-relevance passages
// first, then the oldest history turns. Dropped passages keep their source
// numbers reserved so the surviving tags still match the persisted ranks.
type ContextBuilder struct {
	CharBudget int
}

func NewContextBuilder(charBudget int) *ContextBuilder {
	if charBudget <= 0 {
		charBudget = DefaultCharBudget
	}
	return &ContextBuilder{CharBudget: charBudget}
}

func (b *ContextBuilder) Build(question string, passages []retrieval.Passage, history []*entity.ChatMessage) []llm.Message {
	type rankedPassage struct {
		number  int
		passage retrieval.Passage
		block   string
	}

	ranked := make([]rankedPassage, len(passages))
	budget := b.CharBudget - len(systemPreamble) - len(question)
	used := 0

	for i, p := range passages {
		block := passageBlock(i+1, p)
		ranked[i] = rankedPassage{number: i + 1, passage: p, block: block}
		used += len(block)
	}

	historyMsgs := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		historyMsgs = append(historyMsgs, llm.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
		used += len(msg.Content)
	}

	// Drop lowest-score passages first. Ties break toward the later rank so
	// the top of the ranking survives longest.
	for used > budget && len(ranked) > 1 {
		drop := 0
		for i := 1; i < len(ranked); i++ {
			if ranked[i].passage.Score <= ranked[drop].passage.Score {
				drop = i
			}
		}
		used -= len(ranked[drop].block)
		ranked = append(ranked[:drop], ranked[drop+1:]...)
	}

	// Then the oldest history turns.
	for used > budget && len(historyMsgs) > 0 {
		used -= len(historyMsgs[0].Content)
		historyMsgs = historyMsgs[1:]
	}

	// Surviving passages go back in rank order regardless of drop order.
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].number < ranked[j].number })

	var system strings.Builder
	system.WriteString(systemPreamble)
	system.WriteString("\n\n")
	for _, r := range ranked {
		system.WriteString(r.block)
	}

	messages := make([]llm.Message, 0, len(historyMsgs)+2)
	messages = append(messages, llm.Message{Role: "system", Content: system.String()})
	messages = append(messages, historyMsgs...)
	messages = append(messages, llm.Message{Role: "user", Content: question})
	return messages
}

func passageBlock(number int, p retrieval.Passage) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[Source %d] %s", number, p.DocumentName))
	if p.PageNumber != nil {
		sb.WriteString(fmt.Sprintf(" (page %d)", *p.PageNumber))
	}
	sb.WriteString("\n")
	sb.WriteString(p.Content)
	sb.WriteString("\n\n")
	return sb.String()
}
