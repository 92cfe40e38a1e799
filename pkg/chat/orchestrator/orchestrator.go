package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"kb-chat-be/internal/constant"
	"kb-chat-be/internal/entity"
	"kb-chat-be/internal/pkg/logger"
	"kb-chat-be/pkg/chat/attribution"
	chatsession "kb-chat-be/pkg/chat/session"
	"kb-chat-be/pkg/llm"
	"kb-chat-be/pkg/retrieval"

	"github.com/google/uuid"
)

// Stage names the steps of the per-message pipeline.
type Stage string

const (
	StageReceived    Stage = "RECEIVED"
	StageRetrieving  Stage = "RETRIEVING"
	StageGenerating  Stage = "GENERATING"
	StageAttributing Stage = "ATTRIBUTING"
	StagePersisting  Stage = "PERSISTING"
	StageCompleted   Stage = "COMPLETED"
	StageFailed      Stage = "FAILED"
)

// Cause classifies a pipeline failure for the error taxonomy.
type Cause string

const (
	CauseRetrieval   Cause = "RetrievalError"
	CauseGeneration  Cause = "GenerationError"
	CausePersistence Cause = "PersistenceError"
)

// PipelineError records the stage a message flow failed at and why.
type PipelineError struct {
	Stage Stage
	Cause Cause
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed at %s (%s): %v", e.Stage, e.Cause, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// MessageStore is the persistence contract the orchestrator depends on.
type MessageStore interface {
	// History returns the last `limit` completed messages of the session in
	// chronological order.
	History(ctx context.Context, sessionId uuid.UUID, limit int) ([]*entity.ChatMessage, error)
	// SaveExchange writes the user message, the assistant message and its
	// sources, and the session activity/title update in one transaction.
	SaveExchange(ctx context.Context, ex *Exchange) error
}

// Exchange is one question/answer pair ready to persist atomically.
type Exchange struct {
	Session          *entity.ChatSession
	UserMessage      *entity.ChatMessage
	AssistantMessage *entity.ChatMessage
	Sources          []*entity.ChatSource
	// Title, when non-empty, replaces the session title (first message only).
	Title string
}

// Request is one validated, rate-limit-cleared message to process.
type Request struct {
	Session  *entity.ChatSession
	Question string
	Mode     string
	Model    string
}

// Result is the completed exchange returned to the caller.
type Result struct {
	Session *entity.ChatSession
	Message *entity.ChatMessage
}

const (
	attributionToolName = "report_answer"
	retryBackoff        = 500 * time.Millisecond
)

// Orchestrator runs the retrieval → generation → attribution → persistence
// state machine for one message per call. It holds no per-flow state; many
// flows run it concurrently.
type Orchestrator struct {
	retriever retrieval.Searcher
	generator llm.Provider
	extractor *attribution.Extractor
	store     MessageStore
	builder   *ContextBuilder
	logger    logger.ILogger
	topK      int
	backoff   time.Duration
}

func New(
	retriever retrieval.Searcher,
	generator llm.Provider,
	store MessageStore,
	log logger.ILogger,
) *Orchestrator {
	return &Orchestrator{
		retriever: retriever,
		generator: generator,
		extractor: attribution.NewExtractor(),
		store:     store,
		builder:   NewContextBuilder(DefaultCharBudget),
		logger:    log,
		topK:      constant.RetrievalTopK,
		backoff:   retryBackoff,
	}
}

type generationOutcome struct {
	answer         string
	attributionRaw json.RawMessage
	usage          llm.Usage
}

// Execute runs one message through the pipeline. RECEIVED is entered here:
// rate limiting and session resolution have already succeeded in the caller.
func (o *Orchestrator) Execute(ctx context.Context, req *Request) (*Result, error) {
	session := req.Session
	o.logStage(StageReceived, session.Id, nil)

	history, err := o.store.History(ctx, session.Id, constant.HistoryLimit)
	if err != nil {
		o.logger.Warn("orchestrator", "failed to load history, continuing without it", map[string]interface{}{
			"session_id": session.Id.String(),
			"error":      err.Error(),
		})
		history = nil
	}
	firstMessage := len(history) == 0

	// RETRIEVING
	o.logStage(StageRetrieving, session.Id, nil)
	passages, err := retryOnce(ctx, o.backoff, func() ([]retrieval.Passage, error) {
		return o.retriever.Search(ctx, req.Question, session.OrganizationId, o.topK)
	})
	if err != nil {
		o.failExchange(ctx, req, StageRetrieving)
		return nil, &PipelineError{Stage: StageRetrieving, Cause: CauseRetrieval, Err: err}
	}

	sources := buildSources(passages)
	knownNumbers := make([]int, len(sources))
	for i, s := range sources {
		knownNumbers[i] = s.SourceNumber
	}

	// GENERATING. From here on the flow is detached from the caller: cost has
	// been incurred and the answer should not be wasted on a disconnect.
	detached := context.WithoutCancel(ctx)
	o.logStage(StageGenerating, session.Id, nil)

	prompt := o.builder.Build(req.Question, passages, history)
	gen, err := retryOnce(detached, o.backoff, func() (generationOutcome, error) {
		return o.generate(detached, prompt, req)
	})
	if err != nil {
		o.failExchange(detached, req, StageGenerating)
		return nil, &PipelineError{Stage: StageGenerating, Cause: CauseGeneration, Err: err}
	}

	// ATTRIBUTING. This stage cannot fail the message: any extraction problem
	// degrades to an unattributed result and the answer is kept.
	o.logStage(StageAttributing, session.Id, nil)
	outcome := o.extractor.Validate(gen.attributionRaw, knownNumbers)
	applyAttribution(sources, outcome)
	if !outcome.Attributed {
		o.logger.Info("orchestrator", "attribution unavailable, sources left unattributed", map[string]interface{}{
			"session_id": session.Id.String(),
		})
	}

	// PERSISTING
	o.logStage(StagePersisting, session.Id, nil)
	now := time.Now()
	userMsg := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: session.Id,
		Role:          entity.ChatMessageRoleUser,
		Content:       req.Question,
		Status:        entity.MessageStatusCompleted,
		Mode:          req.Mode,
		Model:         req.Model,
		CreatedAt:     now,
	}
	assistantMsg := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: session.Id,
		Role:          entity.ChatMessageRoleAssistant,
		Content:       gen.answer,
		Status:        entity.MessageStatusCompleted,
		Mode:          req.Mode,
		Model:         req.Model,
		Usage: entity.TokenUsage{
			PromptTokens:     gen.usage.PromptTokens,
			CompletionTokens: gen.usage.CompletionTokens,
			TotalTokens:      gen.usage.TotalTokens,
		},
		AttributionRaw: gen.attributionRaw,
		// Strictly after the user message so creation order is stable.
		CreatedAt: now.Add(time.Millisecond),
	}
	for _, s := range sources {
		s.ChatMessageId = assistantMsg.Id
	}

	ex := &Exchange{
		Session:          session,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Sources:          sources,
	}
	if firstMessage {
		ex.Title = chatsession.DeriveTitle(req.Question)
	}

	_, err = retryOnce(detached, o.backoff, func() (struct{}, error) {
		return struct{}{}, o.store.SaveExchange(detached, ex)
	})
	if err != nil {
		// The answer was computed; keep it in the log for manual recovery
		// instead of discarding it silently.
		o.logger.Error("orchestrator", "persistence failed after retry, generated payload logged for recovery", map[string]interface{}{
			"session_id": session.Id.String(),
			"question":   req.Question,
			"answer":     gen.answer,
			"error":      err.Error(),
		})
		return nil, &PipelineError{Stage: StagePersisting, Cause: CausePersistence, Err: err}
	}

	o.logStage(StageCompleted, session.Id, map[string]interface{}{
		"sources":    len(sources),
		"attributed": outcome.Attributed,
	})

	assistantMsg.Sources = sources
	return &Result{Session: session, Message: assistantMsg}, nil
}

// generate runs one generation attempt and normalizes its result. An attempt
// that yields no usable answer text is an error so the caller retries it.
func (o *Orchestrator) generate(ctx context.Context, prompt []llm.Message, req *Request) (generationOutcome, error) {
	completion, err := o.generator.Chat(ctx, prompt,
		llm.WithTemperature(constant.TemperatureForMode(req.Mode)),
		llm.WithModel(req.Model),
		llm.WithTools(attributionTool()),
		llm.WithForcedTool(attributionToolName),
	)
	if err != nil {
		return generationOutcome{}, err
	}

	out := generationOutcome{
		answer: completion.Content,
		usage:  completion.Usage,
	}

	if completion.ToolCall != nil {
		var payload struct {
			Answer       string          `json:"answer"`
			Attributions json.RawMessage `json:"attributions"`
		}
		// An unparseable tool call degrades to the free-text content; it must
		// not fail the attempt as long as some answer text exists.
		if err := json.Unmarshal(completion.ToolCall.Arguments, &payload); err == nil {
			if strings.TrimSpace(payload.Answer) != "" {
				out.answer = payload.Answer
			}
			out.attributionRaw = payload.Attributions
		}
	}

	if strings.TrimSpace(out.answer) == "" {
		return generationOutcome{}, fmt.Errorf("generation returned an empty answer")
	}
	return out, nil
}

// failExchange records a failed message pair so the session history shows the
// question and the stage it died at. Best effort only.
func (o *Orchestrator) failExchange(ctx context.Context, req *Request, stage Stage) {
	now := time.Now()
	ex := &Exchange{
		Session: req.Session,
		UserMessage: &entity.ChatMessage{
			Id:            uuid.New(),
			ChatSessionId: req.Session.Id,
			Role:          entity.ChatMessageRoleUser,
			Content:       req.Question,
			Status:        entity.MessageStatusFailed,
			FailureStage:  string(stage),
			Mode:          req.Mode,
			Model:         req.Model,
			CreatedAt:     now,
		},
	}
	if err := o.store.SaveExchange(ctx, ex); err != nil {
		o.logger.Warn("orchestrator", "failed to record failed message", map[string]interface{}{
			"session_id": req.Session.Id.String(),
			"stage":      string(stage),
			"error":      err.Error(),
		})
	}
}

func (o *Orchestrator) logStage(stage Stage, sessionId uuid.UUID, extra map[string]interface{}) {
	details := map[string]interface{}{
		"stage":      string(stage),
		"session_id": sessionId.String(),
	}
	for k, v := range extra {
		details[k] = v
	}
	o.logger.Debug("orchestrator", "pipeline stage", details)
}

// buildSources assigns source numbers 1..N by retrieval order. The ranking is
// owned by retrieval; it is never re-sorted here.
func buildSources(passages []retrieval.Passage) []*entity.ChatSource {
	sources := make([]*entity.ChatSource, len(passages))
	for i, p := range passages {
		sources[i] = &entity.ChatSource{
			Id:           uuid.New(),
			DocumentId:   p.DocumentId,
			DocumentName: p.DocumentName,
			PageNumber:   p.PageNumber,
			ChunkText:    p.Content,
			Score:        p.Score,
			SourceNumber: i + 1,
		}
	}
	return sources
}

// applyAttribution flips source usage flags from a validated outcome. With an
// unattributed outcome every source keeps nil flags; with an attributed one,
// sources the model did not mention are marked unused.
func applyAttribution(sources []*entity.ChatSource, outcome attribution.Outcome) {
	if !outcome.Attributed {
		return
	}
	byNumber := make(map[int]attribution.Entry, len(outcome.Entries))
	for _, e := range outcome.Entries {
		byNumber[e.SourceNumber] = e
	}
	for _, s := range sources {
		entry, mentioned := byNumber[s.SourceNumber]
		used := mentioned && entry.Used
		s.IsUsed = &used
		if used {
			reason := entry.Reason
			s.UsageReason = &reason
		}
	}
}

func attributionTool() llm.Tool {
	return llm.Tool{
		Name:        attributionToolName,
		Description: "Report the final answer along with which numbered sources were actually used and why.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"answer": map[string]any{
					"type":        "string",
					"description": "The complete answer to the user's question.",
				},
				"attributions": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"source_number": map[string]any{"type": "integer"},
							"used":          map[string]any{"type": "boolean"},
							"reason":        map[string]any{"type": "string"},
						},
						"required": []string{"source_number", "used"},
					},
				},
			},
			"required": []string{"answer", "attributions"},
		},
	}
}

// retryOnce runs fn, and on failure runs it once more after a short backoff.
func retryOnce[T any](ctx context.Context, backoff time.Duration, fn func() (T, error)) (T, error) {
	result, err := fn()
	if err == nil {
		return result, nil
	}

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-time.After(backoff):
	}

	return fn()
}
