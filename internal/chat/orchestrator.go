package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"docuchat/internal/models"
	"docuchat/internal/providers"
	"docuchat/internal/storage"
	"docuchat/internal/vector"
)

type Config struct {
	TopK               int
	ParaphraseCount    int
	HistoryWindow      int
	RetrieveWorkers    int
	EmbedDim           int
	JailbreakThreshold float64
	PIIThreshold       float64
}

// Orchestrator drives one chat turn through a linear node sequence with two
// guard-triggered early exits: host -> guard(initial) -> paraphrase ->
// retrieve -> generate -> guard(final) -> persist. There are no cycles and no
// cross-node retries; a node failure fails the turn.
type Orchestrator struct {
	cfg      Config
	sessions SessionStore
	messages MessageStore
	searcher ChunkSearcher
	embedder providers.EmbeddingProvider
	llm      providers.LLMProvider
	guard    providers.GuardrailProvider
	pool     *ants.Pool
	logger   *slog.Logger
}

func New(cfg Config, sessions SessionStore, messages MessageStore, searcher ChunkSearcher,
	embedder providers.EmbeddingProvider, llm providers.LLMProvider, guard providers.GuardrailProvider,
	logger *slog.Logger) (*Orchestrator, error) {
	if cfg.TopK <= 0 {
		cfg.TopK = 6
	}
	if cfg.ParaphraseCount <= 0 {
		cfg.ParaphraseCount = 3
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	if cfg.RetrieveWorkers <= 0 {
		cfg.RetrieveWorkers = 4
	}
	if cfg.JailbreakThreshold <= 0 {
		cfg.JailbreakThreshold = 0.8
	}
	if cfg.PIIThreshold <= 0 {
		cfg.PIIThreshold = 0.7
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := ants.NewPool(cfg.RetrieveWorkers)
	if err != nil {
		return nil, fmt.Errorf("create retrieval pool: %w", err)
	}
	return &Orchestrator{
		cfg:      cfg,
		sessions: sessions,
		messages: messages,
		searcher: searcher,
		embedder: embedder,
		llm:      llm,
		guard:    guard,
		pool:     pool,
		logger:   logger,
	}, nil
}

func (o *Orchestrator) Close() {
	if o.pool != nil {
		o.pool.Release()
	}
}

// Turn runs one chat turn to a terminal outcome. Every terminal outcome
// (answered, blocked, suppressed) appends exactly one user and one assistant
// message to the session, in that order; failed turns append nothing.
func (o *Orchestrator) Turn(ctx context.Context, sessionID *uuid.UUID, message string) (Outcome, error) {
	session, history, err := o.host(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}
	log := o.logger.With("session_id", session.ID)

	initial, _, err := o.guard.Evaluate(ctx, providers.EvaluateRequest{
		Text:      message,
		Category:  providers.GuardJailbreak,
		Threshold: o.cfg.JailbreakThreshold,
	})
	if err != nil {
		return Outcome{}, turnErr(ErrCodeGuardrail, err)
	}
	if initial.Flagged {
		log.Warn("turn blocked by initial guard", "score", initial.Score)
		if err := o.messages.AppendTurn(ctx, session.ID, message, FallbackBlocked); err != nil {
			return Outcome{}, turnErr(ErrCodePersist, err)
		}
		return Outcome{Kind: OutcomeBlocked, SessionID: session.ID, Answer: FallbackBlocked}, nil
	}

	phrasings := o.paraphrase(ctx, message)
	retrieved, err := o.retrieve(ctx, phrasings)
	if err != nil {
		return Outcome{}, err
	}
	log.Debug("retrieval done", "phrasings", len(phrasings), "chunks", len(retrieved))

	answer, err := o.generate(ctx, message, history, retrieved)
	if err != nil {
		return Outcome{}, err
	}

	final, _, err := o.guard.Evaluate(ctx, providers.EvaluateRequest{
		Text:      answer,
		Category:  providers.GuardPII,
		Threshold: o.cfg.PIIThreshold,
	})
	if err != nil {
		// Fail closed: an unverifiable answer is treated as flagged.
		log.Warn("final guard unavailable, suppressing answer", "error", err)
		final = providers.EvaluateResponse{Flagged: true, Category: providers.GuardPII}
	}
	if final.Flagged {
		log.Warn("answer suppressed by final guard", "score", final.Score)
		if err := o.messages.AppendTurn(ctx, session.ID, message, FallbackSuppressed); err != nil {
			return Outcome{}, turnErr(ErrCodePersist, err)
		}
		return Outcome{Kind: OutcomeSuppressed, SessionID: session.ID, Answer: FallbackSuppressed}, nil
	}

	if err := o.messages.AppendTurn(ctx, session.ID, message, answer); err != nil {
		return Outcome{}, turnErr(ErrCodePersist, err)
	}
	return Outcome{Kind: OutcomeAnswered, SessionID: session.ID, Answer: answer, Retrieved: retrieved}, nil
}

// host resolves the session (creating one lazily for nil or unknown ids) and
// loads recent history.
func (o *Orchestrator) host(ctx context.Context, sessionID *uuid.UUID) (models.ChatSession, []models.ChatMessage, error) {
	var (
		session models.ChatSession
		err     error
	)
	if sessionID != nil {
		session, err = o.sessions.GetSession(ctx, *sessionID)
		if err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
			return models.ChatSession{}, nil, turnErr(ErrCodeSession, err)
		}
	}
	if sessionID == nil || errors.Is(err, storage.ErrSessionNotFound) {
		session, err = o.sessions.CreateSession(ctx, nil)
		if err != nil {
			return models.ChatSession{}, nil, turnErr(ErrCodeSession, err)
		}
		return session, nil, nil
	}
	history, err := o.messages.ListRecentMessages(ctx, session.ID, o.cfg.HistoryWindow)
	if err != nil {
		return models.ChatSession{}, nil, turnErr(ErrCodeSession, err)
	}
	return session, history, nil
}

// paraphrase asks the LLM for alternative phrasings to widen retrieval
// recall. The original message is always kept as the first phrasing, and a
// provider failure degrades to the original alone instead of failing the turn.
func (o *Orchestrator) paraphrase(ctx context.Context, message string) []string {
	phrasings := []string{message}
	resp, _, err := o.llm.Generate(ctx, providers.GenerateRequest{
		Operation: "paraphrase",
		Prompt:    paraphrasePrompt(message, o.cfg.ParaphraseCount),
	})
	if err != nil {
		o.logger.Warn("paraphrase failed, using original message", "error", err)
		return phrasings
	}
	for _, p := range parseParaphrases(resp.Text, o.cfg.ParaphraseCount) {
		if !strings.EqualFold(p, message) {
			phrasings = append(phrasings, p)
		}
	}
	return phrasings
}

// retrieve embeds and searches each phrasing concurrently, then merges the
// per-phrasing result sets keeping the best score per chunk. Individual
// phrasing failures are tolerated as long as at least one succeeds.
func (o *Orchestrator) retrieve(ctx context.Context, phrasings []string) ([]models.RetrievedChunk, error) {
	groups := make([][]models.RetrievedChunk, len(phrasings))
	errs := make([]error, len(phrasings))

	var wg sync.WaitGroup
	for i, phrasing := range phrasings {
		i, phrasing := i, phrasing
		wg.Add(1)
		task := func() {
			defer wg.Done()
			vecs, _, err := o.embedder.Embed(ctx, providers.EmbedRequest{
				Operation: "query_embed",
				Inputs:    []string{phrasing},
				Dimension: o.cfg.EmbedDim,
			})
			if err != nil {
				errs[i] = err
				return
			}
			if len(vecs) == 0 {
				errs[i] = fmt.Errorf("empty embedding for phrasing")
				return
			}
			results, err := o.searcher.SearchChunks(ctx, vecs[0], o.cfg.TopK, vector.SearchFilters{})
			if err != nil {
				errs[i] = err
				return
			}
			groups[i] = results
		}
		if err := o.pool.Submit(task); err != nil {
			errs[i] = err
			wg.Done()
		}
	}
	wg.Wait()

	ok := false
	var firstErr error
	for i := range phrasings {
		if errs[i] == nil {
			ok = true
		} else if firstErr == nil {
			firstErr = errs[i]
		}
	}
	if !ok {
		return nil, turnErr(ErrCodeEmbedding, firstErr)
	}
	return vector.MergeRanked(groups, o.cfg.TopK), nil
}

func (o *Orchestrator) generate(ctx context.Context, message string, history []models.ChatMessage, retrieved []models.RetrievedChunk) (string, error) {
	msgs := make([]providers.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, providers.Message{Role: m.Sender, Content: m.Content})
	}
	resp, _, err := o.llm.Generate(ctx, providers.GenerateRequest{
		Operation: "rag_answer",
		Prompt:    answerPrompt(message),
		Context:   contextSnippets(retrieved),
		History:   msgs,
	})
	if err != nil {
		return "", turnErr(ErrCodeCompletion, err)
	}
	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		return "", turnErr(ErrCodeCompletion, fmt.Errorf("completion returned empty text"))
	}
	return answer, nil
}
