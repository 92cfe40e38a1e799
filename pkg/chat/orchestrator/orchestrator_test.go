package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"kb-chat-be/internal/entity"
	"kb-chat-be/internal/pkg/logger"
	"kb-chat-be/pkg/llm"
	"kb-chat-be/pkg/retrieval"

	"github.com/google/uuid"
)

type fakeSearcher struct {
	passages []retrieval.Passage
	failures int
	calls    int
}

func (f *fakeSearcher) Search(context.Context, string, uuid.UUID, int) ([]retrieval.Passage, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("retrieval unavailable")
	}
	return f.passages, nil
}

type fakeProvider struct {
	completion *llm.Completion
	failures   int
	calls      int
	lastOpts   llm.Options
}

func (f *fakeProvider) Chat(_ context.Context, _ []llm.Message, options ...llm.Option) (*llm.Completion, error) {
	f.calls++
	for _, opt := range options {
		opt(&f.lastOpts)
	}
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("generation unavailable")
	}
	return f.completion, nil
}

type fakeStore struct {
	history      []*entity.ChatMessage
	saveFailures int
	saved        []*Exchange
}

func (f *fakeStore) History(context.Context, uuid.UUID, int) ([]*entity.ChatMessage, error) {
	return f.history, nil
}

func (f *fakeStore) SaveExchange(_ context.Context, ex *Exchange) error {
	if f.saveFailures > 0 {
		f.saveFailures--
		return errors.New("database unavailable")
	}
	f.saved = append(f.saved, ex)
	return nil
}

func toolCompletion(t *testing.T, answer string, attributions string) *llm.Completion {
	t.Helper()
	args, err := json.Marshal(map[string]json.RawMessage{
		"answer":       json.RawMessage(`"` + answer + `"`),
		"attributions": json.RawMessage(attributions),
	})
	if err != nil {
		t.Fatalf("marshal tool arguments: %v", err)
	}
	return &llm.Completion{
		ToolCall: &llm.ToolCall{Name: attributionToolName, Arguments: args},
		Usage:    llm.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
	}
}

func testSession() *entity.ChatSession {
	return &entity.ChatSession{
		Id:             uuid.New(),
		UserId:         uuid.New(),
		OrganizationId: uuid.New(),
		Status:         entity.SessionStatusActive,
	}
}

func newTestOrchestrator(searcher *fakeSearcher, provider *fakeProvider, store *fakeStore) *Orchestrator {
	o := New(searcher, provider, store, logger.NewNop())
	o.backoff = 0
	return o
}

func TestExecuteSuccessWithAttribution(t *testing.T) {
	searcher := &fakeSearcher{passages: []retrieval.Passage{
		{DocumentId: "d1", DocumentName: "a.pdf", Content: "alpha", Score: 0.9},
		{DocumentId: "d2", DocumentName: "b.pdf", Content: "beta", Score: 0.7},
		{DocumentId: "d3", DocumentName: "c.pdf", Content: "gamma", Score: 0.5},
	}}
	provider := &fakeProvider{completion: toolCompletion(t,
		"Alpha is the first letter.",
		`[{"source_number":1,"used":true,"reason":"defines alpha"},{"source_number":2,"used":false}]`,
	)}
	store := &fakeStore{}

	result, err := newTestOrchestrator(searcher, provider, store).Execute(context.Background(), &Request{
		Session:  testSession(),
		Question: "What is alpha?",
		Mode:     "strict",
		Model:    "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.Message.Content != "Alpha is the first letter." {
		t.Errorf("Content = %q", result.Message.Content)
	}
	if result.Message.Usage.TotalTokens != 120 {
		t.Errorf("TotalTokens = %d, want 120", result.Message.Usage.TotalTokens)
	}
	if provider.lastOpts.Temperature != 0.1 {
		t.Errorf("Temperature = %v, want 0.1 for strict mode", provider.lastOpts.Temperature)
	}
	if provider.lastOpts.ForceTool != attributionToolName {
		t.Errorf("ForceTool = %q, want %q", provider.lastOpts.ForceTool, attributionToolName)
	}

	sources := result.Message.Sources
	if len(sources) != 3 {
		t.Fatalf("len(Sources) = %d, want 3", len(sources))
	}
	for i, s := range sources {
		if s.SourceNumber != i+1 {
			t.Errorf("Sources[%d].SourceNumber = %d, want %d", i, s.SourceNumber, i+1)
		}
	}
	if sources[0].IsUsed == nil || !*sources[0].IsUsed {
		t.Error("source 1 should be marked used")
	}
	if sources[0].UsageReason == nil || *sources[0].UsageReason != "defines alpha" {
		t.Error("source 1 should carry its usage reason")
	}
	if sources[1].IsUsed == nil || *sources[1].IsUsed {
		t.Error("source 2 should be marked not used")
	}
	if sources[1].UsageReason != nil {
		t.Error("an unused source should carry no reason")
	}
	// Source 3 was not mentioned: with a valid attribution it is unused.
	if sources[2].IsUsed == nil || *sources[2].IsUsed {
		t.Error("an unmentioned source should be marked not used")
	}

	if len(store.saved) != 1 {
		t.Fatalf("saved %d exchanges, want 1", len(store.saved))
	}
	ex := store.saved[0]
	if ex.UserMessage.Content != "What is alpha?" {
		t.Errorf("UserMessage.Content = %q", ex.UserMessage.Content)
	}
	if !ex.AssistantMessage.CreatedAt.After(ex.UserMessage.CreatedAt) {
		t.Error("assistant message should be created strictly after the user message")
	}
	if ex.Title != "What is alpha?" {
		t.Errorf("Title = %q, want the first question", ex.Title)
	}
}

func TestExecuteMalformedAttributionDegrades(t *testing.T) {
	searcher := &fakeSearcher{passages: []retrieval.Passage{
		{DocumentId: "d1", DocumentName: "a.pdf", Content: "alpha", Score: 0.9},
	}}
	// Free-text completion, no tool call at all.
	provider := &fakeProvider{completion: &llm.Completion{Content: "plain answer"}}
	store := &fakeStore{}

	result, err := newTestOrchestrator(searcher, provider, store).Execute(context.Background(), &Request{
		Session: testSession(), Question: "q", Mode: "balanced", Model: "m",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.Message.Content != "plain answer" {
		t.Errorf("Content = %q, want the free-text answer", result.Message.Content)
	}
	for _, s := range result.Message.Sources {
		if s.IsUsed != nil {
			t.Error("sources should be unattributed (nil IsUsed) without a usable tool payload")
		}
	}
}

func TestExecuteRetrievalFailsAfterRetry(t *testing.T) {
	searcher := &fakeSearcher{failures: 2}
	store := &fakeStore{}

	_, err := newTestOrchestrator(searcher, &fakeProvider{}, store).Execute(context.Background(), &Request{
		Session: testSession(), Question: "q", Mode: "strict", Model: "m",
	})

	var pErr *PipelineError
	if !errors.As(err, &pErr) {
		t.Fatalf("err = %v, want *PipelineError", err)
	}
	if pErr.Stage != StageRetrieving || pErr.Cause != CauseRetrieval {
		t.Errorf("Stage = %s Cause = %s", pErr.Stage, pErr.Cause)
	}
	if searcher.calls != 2 {
		t.Errorf("retrieval attempts = %d, want 2", searcher.calls)
	}

	// The failed question is still recorded for the session history.
	if len(store.saved) != 1 {
		t.Fatalf("saved %d exchanges, want 1", len(store.saved))
	}
	failed := store.saved[0].UserMessage
	if failed.Status != entity.MessageStatusFailed {
		t.Errorf("Status = %s, want failed", failed.Status)
	}
	if failed.FailureStage != string(StageRetrieving) {
		t.Errorf("FailureStage = %q, want %s", failed.FailureStage, StageRetrieving)
	}
}

func TestExecuteRetrievalRecoversOnRetry(t *testing.T) {
	searcher := &fakeSearcher{
		failures: 1,
		passages: []retrieval.Passage{{DocumentId: "d1", DocumentName: "a.pdf", Content: "alpha", Score: 0.9}},
	}
	provider := &fakeProvider{completion: &llm.Completion{Content: "answer"}}
	store := &fakeStore{}

	_, err := newTestOrchestrator(searcher, provider, store).Execute(context.Background(), &Request{
		Session: testSession(), Question: "q", Mode: "strict", Model: "m",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if searcher.calls != 2 {
		t.Errorf("retrieval attempts = %d, want 2", searcher.calls)
	}
}

func TestExecuteEmptyAnswerIsGenerationError(t *testing.T) {
	searcher := &fakeSearcher{}
	provider := &fakeProvider{completion: &llm.Completion{Content: "   "}}
	store := &fakeStore{}

	_, err := newTestOrchestrator(searcher, provider, store).Execute(context.Background(), &Request{
		Session: testSession(), Question: "q", Mode: "strict", Model: "m",
	})

	var pErr *PipelineError
	if !errors.As(err, &pErr) {
		t.Fatalf("err = %v, want *PipelineError", err)
	}
	if pErr.Stage != StageGenerating || pErr.Cause != CauseGeneration {
		t.Errorf("Stage = %s Cause = %s", pErr.Stage, pErr.Cause)
	}
	if provider.calls != 2 {
		t.Errorf("generation attempts = %d, want 2", provider.calls)
	}
}

func TestExecutePersistenceFailsAfterRetry(t *testing.T) {
	searcher := &fakeSearcher{}
	provider := &fakeProvider{completion: &llm.Completion{Content: "answer"}}
	store := &fakeStore{saveFailures: 2}

	_, err := newTestOrchestrator(searcher, provider, store).Execute(context.Background(), &Request{
		Session: testSession(), Question: "q", Mode: "strict", Model: "m",
	})

	var pErr *PipelineError
	if !errors.As(err, &pErr) {
		t.Fatalf("err = %v, want *PipelineError", err)
	}
	if pErr.Stage != StagePersisting || pErr.Cause != CausePersistence {
		t.Errorf("Stage = %s Cause = %s", pErr.Stage, pErr.Cause)
	}
}

func TestExecuteKeepsTitleOnLaterMessages(t *testing.T) {
	searcher := &fakeSearcher{}
	provider := &fakeProvider{completion: &llm.Completion{Content: "answer"}}
	store := &fakeStore{history: []*entity.ChatMessage{
		{Role: entity.ChatMessageRoleUser, Content: "earlier"},
	}}

	_, err := newTestOrchestrator(searcher, provider, store).Execute(context.Background(), &Request{
		Session: testSession(), Question: "follow-up", Mode: "strict", Model: "m",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if store.saved[0].Title != "" {
		t.Errorf("Title = %q, want empty on a non-first message", store.saved[0].Title)
	}
}
