package chat

import (
	"fmt"

	"github.com/google/uuid"

	"docuchat/internal/models"
)

type OutcomeKind string

const (
	OutcomeAnswered   OutcomeKind = "answered"
	OutcomeBlocked    OutcomeKind = "blocked"
	OutcomeSuppressed OutcomeKind = "suppressed"
)

// Outcome is the terminal result of a chat turn. Blocked and suppressed are
// successful turns with a restricted answer; orchestration failures are
// returned as a *TurnError instead.
type Outcome struct {
	Kind      OutcomeKind             `json:"kind"`
	SessionID uuid.UUID               `json:"session_id"`
	Answer    string                  `json:"answer"`
	Retrieved []models.RetrievedChunk `json:"retrieved,omitempty"`
}

// Static fallback texts. The raw user request and the raw generated answer
// never reach history on these paths; only these strings do.
const (
	FallbackBlocked    = "Your request was declined because it violates the usage policy."
	FallbackSuppressed = "The generated response was withheld because it may contain sensitive information."
)

// Stable error codes surfaced to API clients on turn failure.
const (
	ErrCodeSession    = "session_error"
	ErrCodeGuardrail  = "guardrail_error"
	ErrCodeEmbedding  = "embedding_error"
	ErrCodeCompletion = "completion_error"
	ErrCodePersist    = "persist_error"
)

type TurnError struct {
	Code string
	Err  error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

func turnErr(code string, err error) *TurnError {
	return &TurnError{Code: code, Err: err}
}
