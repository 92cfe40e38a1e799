package orchestrator

import (
	"strings"
	"testing"

	"kb-chat-be/internal/entity"
	"kb-chat-be/pkg/retrieval"
)

func passage(name, content string, score float64) retrieval.Passage {
	return retrieval.Passage{
		DocumentId:   "doc-" + name,
		DocumentName: name,
		Content:      content,
		Score:        score,
	}
}

func historyMsg(role, content string) *entity.ChatMessage {
	return &entity.ChatMessage{Role: role, Content: content}
}

func TestBuildShape(t *testing.T) {
	builder := NewContextBuilder(0)

	passages := []retrieval.Passage{
		passage("a.pdf", "alpha", 0.9),
		passage("b.pdf", "beta", 0.8),
	}
	history := []*entity.ChatMessage{
		historyMsg("user", "earlier question"),
		historyMsg("assistant", "earlier answer"),
	}

	messages := builder.Build("what is alpha?", passages, history)

	if len(messages) != 4 {
		t.Fatalf("len(messages) = %d, want 4", len(messages))
	}
	if messages[0].Role != "system" {
		t.Errorf("messages[0].Role = %q, want system", messages[0].Role)
	}
	if !strings.Contains(messages[0].Content, "[Source 1] a.pdf") {
		t.Error("system message should contain the first tagged passage")
	}
	if !strings.Contains(messages[0].Content, "[Source 2] b.pdf") {
		t.Error("system message should contain the second tagged passage")
	}
	if messages[1].Content != "earlier question" || messages[2].Content != "earlier answer" {
		t.Error("history should follow the system message in order")
	}
	last := messages[len(messages)-1]
	if last.Role != "user" || last.Content != "what is alpha?" {
		t.Errorf("last message = %+v, want the user question", last)
	}
}

func TestBuildPageNumberInTag(t *testing.T) {
	page := 12
	p := passage("manual.pdf", "content", 0.5)
	p.PageNumber = &page

	messages := NewContextBuilder(0).Build("q", []retrieval.Passage{p}, nil)

	if !strings.Contains(messages[0].Content, "[Source 1] manual.pdf (page 12)") {
		t.Errorf("system message missing page tag:\n%s", messages[0].Content)
	}
}

func TestBuildDropsLowestScorePassageFirst(t *testing.T) {
	// Budget fits the preamble, the question, and roughly two passage blocks.
	builder := NewContextBuilder(len(systemPreamble) + 200)

	passages := []retrieval.Passage{
		passage("top.pdf", strings.Repeat("x", 60), 0.9),
		passage("mid.pdf", strings.Repeat("y", 60), 0.5),
		passage("low.pdf", strings.Repeat("z", 60), 0.2),
	}

	messages := builder.Build("q", passages, nil)
	system := messages[0].Content

	if !strings.Contains(system, "[Source 1] top.pdf") {
		t.Error("highest-score passage should survive truncation")
	}
	if strings.Contains(system, "[Source 3] low.pdf") {
		t.Error("lowest-score passage should be dropped first")
	}
	// The survivor keeps its original rank number.
	if !strings.Contains(system, "[Source 2] mid.pdf") {
		t.Error("surviving passage should keep its original source number")
	}
}

func TestBuildSurvivorsStayInRankOrder(t *testing.T) {
	// Rank 1 scores lower than rank 2 but must still precede it when both
	// survive.
	builder := NewContextBuilder(len(systemPreamble) + 250)

	passages := []retrieval.Passage{
		passage("first.pdf", strings.Repeat("a", 60), 0.4),
		passage("second.pdf", strings.Repeat("b", 60), 0.9),
		passage("third.pdf", strings.Repeat("c", 60), 0.1),
	}

	messages := builder.Build("q", passages, nil)
	system := messages[0].Content

	i1 := strings.Index(system, "[Source 1]")
	i2 := strings.Index(system, "[Source 2]")
	if i1 == -1 || i2 == -1 {
		t.Fatalf("expected sources 1 and 2 to survive:\n%s", system)
	}
	if i1 > i2 {
		t.Error("surviving passages should appear in rank order, not drop order")
	}
}

func TestBuildDropsOldestHistoryAfterPassages(t *testing.T) {
	// Budget fits one passage plus one history turn.
	builder := NewContextBuilder(len(systemPreamble) + 110)

	passages := []retrieval.Passage{
		passage("doc.pdf", strings.Repeat("p", 40), 0.9),
	}
	history := []*entity.ChatMessage{
		historyMsg("user", strings.Repeat("o", 50)),
		historyMsg("assistant", "recent"),
	}

	messages := builder.Build("q", passages, history)

	if !strings.Contains(messages[0].Content, "[Source 1] doc.pdf") {
		t.Error("the only passage should never be dropped")
	}
	if len(messages) != 3 {
		t.Fatalf("len(messages) = %d, want 3 (system, recent history, question)", len(messages))
	}
	if messages[1].Content != "recent" {
		t.Errorf("messages[1].Content = %q, want the most recent history turn", messages[1].Content)
	}
}

func TestBuildKeepsLastPassage(t *testing.T) {
	// Even an absurdly small budget keeps at least one passage.
	builder := NewContextBuilder(1)

	passages := []retrieval.Passage{
		passage("only.pdf", strings.Repeat("k", 500), 0.9),
	}

	messages := builder.Build("q", passages, nil)
	if !strings.Contains(messages[0].Content, "[Source 1] only.pdf") {
		t.Error("the last remaining passage should survive any budget")
	}
}
