package workflows

import (
	"errors"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"docuchat/internal/activities"
	"docuchat/internal/models"
)

const QueryGetProgress = "GetProgress"

// DocumentIngestWorkflow drives a single document from its stored bytes to
// searchable chunks. The workflow run ID doubles as the processing lease, so
// a retried or replayed run re-claims its own document while a concurrent
// trigger for the same document bails out at the claim step.
func DocumentIngestWorkflow(ctx workflow.Context, input DocumentIngestInput) (DocumentIngestResult, error) {
	progress := IngestProgress{
		DocumentID:  input.DocumentID,
		CurrentStep: "init",
		Status:      "processing",
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (IngestProgress, error) {
		return progress, nil
	}); err != nil {
		return DocumentIngestResult{}, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	leaseID := workflow.GetInfo(ctx).WorkflowExecution.RunID

	progress.CurrentStep = "claim"
	progress.Steps[progress.CurrentStep] = "processing"
	var claimOut activities.ClaimDocumentOutput
	if err := workflow.ExecuteActivity(ctx, "ClaimDocumentActivity", activities.ClaimDocumentInput{
		DocumentID: input.DocumentID,
		LeaseID:    leaseID,
	}).Get(ctx, &claimOut); err != nil {
		return DocumentIngestResult{}, err
	}
	if !claimOut.Claimed {
		progress.Status = "skipped"
		progress.Steps[progress.CurrentStep] = "skipped"
		return DocumentIngestResult{Status: "skipped"}, nil
	}
	progress.Steps[progress.CurrentStep] = "done"

	progress.CurrentStep = "fetch_text"
	progress.Steps[progress.CurrentStep] = "processing"
	var textOut activities.FetchDocumentTextOutput
	if err := workflow.ExecuteActivity(ctx, "FetchDocumentTextActivity", activities.FetchDocumentTextInput{
		StoragePath: input.StoragePath,
		Filename:    input.Filename,
	}).Get(ctx, &textOut); err != nil {
		if isExtractionError(err) {
			return markFailed(ctx, &progress, input.DocumentID, "no extractable text found in document")
		}
		return markFailed(ctx, &progress, input.DocumentID, "fetching document content failed")
	}
	progress.Steps[progress.CurrentStep] = "done"

	progress.CurrentStep = "chunk"
	progress.Steps[progress.CurrentStep] = "processing"
	var chunkOut activities.ChunkDocumentOutput
	if err := workflow.ExecuteActivity(ctx, "ChunkDocumentActivity", activities.ChunkDocumentInput{
		Text:         textOut.Text,
		ChunkSize:    input.ChunkSize,
		ChunkOverlap: input.ChunkOverlap,
	}).Get(ctx, &chunkOut); err != nil {
		return markFailed(ctx, &progress, input.DocumentID, "chunking failed")
	}
	progress.ChunkCount = len(chunkOut.Chunks)
	progress.Steps[progress.CurrentStep] = "done"

	progress.CurrentStep = "embed"
	progress.Steps[progress.CurrentStep] = "processing"
	inputs := make([]string, 0, len(chunkOut.Chunks))
	for _, c := range chunkOut.Chunks {
		inputs = append(inputs, c.Text)
	}
	var embedOut activities.EmbedChunksOutput
	if err := workflow.ExecuteActivity(ctx, "EmbedChunksActivity", activities.EmbedChunksInput{
		Inputs: inputs,
	}).Get(ctx, &embedOut); err != nil {
		return markFailed(ctx, &progress, input.DocumentID, "embedding failed: "+rootMessage(err))
	}
	progress.EmbedProvider = embedOut.ProviderName
	progress.Steps[progress.CurrentStep] = "done"

	progress.CurrentStep = "replace_chunks"
	progress.Steps[progress.CurrentStep] = "processing"
	var replaceOut activities.ReplaceChunksOutput
	if err := workflow.ExecuteActivity(ctx, "ReplaceChunksActivity", activities.ReplaceChunksInput{
		DocumentID: input.DocumentID,
		Chunks:     chunkOut.Chunks,
		Vectors:    embedOut.Vectors,
	}).Get(ctx, &replaceOut); err != nil {
		return markFailed(ctx, &progress, input.DocumentID, "writing chunks failed")
	}
	progress.Steps[progress.CurrentStep] = "done"

	progress.CurrentStep = "mark_completed"
	progress.Steps[progress.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{
		DocumentID: input.DocumentID,
		Status:     models.DocStatusCompleted,
	}).Get(ctx, nil); err != nil {
		return DocumentIngestResult{}, err
	}
	progress.Steps[progress.CurrentStep] = "done"
	progress.CurrentStep = "done"
	progress.Status = models.DocStatusCompleted
	return DocumentIngestResult{Status: models.DocStatusCompleted, ChunksWritten: replaceOut.ChunksWritten}, nil
}

func markFailed(ctx workflow.Context, progress *IngestProgress, documentID int64, reason string) (DocumentIngestResult, error) {
	progress.Status = models.DocStatusFailed
	progress.FailReason = reason
	progress.Steps[progress.CurrentStep] = "failed"
	_ = workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{
		DocumentID: documentID,
		Status:     models.DocStatusFailed,
		FailReason: reason,
	}).Get(ctx, nil)
	return DocumentIngestResult{Status: models.DocStatusFailed}, nil
}

func isExtractionError(err error) bool {
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "no extractable text") || strings.Contains(e, "not readable")
}

func rootMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Message()
	}
	return err.Error()
}
