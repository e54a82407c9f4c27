package activities

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.temporal.io/sdk/temporal"

	"docuchat/internal/config"
	"docuchat/internal/objectstore"
	"docuchat/internal/providers"
	"docuchat/internal/storage"
	"docuchat/internal/util"
	"docuchat/internal/vector"
)

type Activities struct {
	cfg       config.Config
	docRepo   *storage.DocumentRepo
	chunkRepo *storage.ChunkRepo
	objects   objectstore.Store
	providers *providers.Manager
}

func New(cfg config.Config, db *storage.DB, objects objectstore.Store) (*Activities, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	return &Activities{
		cfg:       cfg,
		docRepo:   storage.NewDocumentRepo(db),
		chunkRepo: storage.NewChunkRepo(db),
		objects:   objects,
		providers: pm,
	}, nil
}

func (a *Activities) ClaimDocumentActivity(ctx context.Context, in ClaimDocumentInput) (ClaimDocumentOutput, error) {
	claimed, status, err := a.docRepo.ClaimForProcessing(ctx, in.DocumentID, in.LeaseID)
	if err != nil {
		return ClaimDocumentOutput{}, err
	}
	return ClaimDocumentOutput{Claimed: claimed, Status: status}, nil
}

func (a *Activities) FetchDocumentTextActivity(ctx context.Context, in FetchDocumentTextInput) (FetchDocumentTextOutput, error) {
	data, err := a.objects.Get(ctx, in.StoragePath)
	if err != nil {
		return FetchDocumentTextOutput{}, fmt.Errorf("fetch object: %w", err)
	}
	var text string
	if strings.HasSuffix(strings.ToLower(in.Filename), ".pdf") {
		text, err = extractPDFText(data)
		if err != nil {
			return FetchDocumentTextOutput{}, temporal.NewNonRetryableApplicationError(
				"document is not readable", "ExtractionError", err)
		}
	} else {
		text = string(data)
	}
	text = util.SanitizeText(text)
	if text == "" {
		return FetchDocumentTextOutput{}, temporal.NewNonRetryableApplicationError(
			util.ErrNoExtractableText.Error(), "ExtractionError", util.ErrNoExtractableText)
	}
	return FetchDocumentTextOutput{Text: text}, nil
}

func extractPDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return buf.String(), nil
}

func (a *Activities) ChunkDocumentActivity(ctx context.Context, in ChunkDocumentInput) (ChunkDocumentOutput, error) {
	_ = ctx
	size := in.ChunkSize
	if size <= 0 {
		size = a.cfg.ChunkSize
	}
	overlap := in.ChunkOverlap
	if overlap < 0 || overlap >= size {
		overlap = a.cfg.ChunkOverlap
	}
	parts := util.ChunkText(in.Text, size, overlap)
	chunks := make([]ChunkItem, 0, len(parts))
	for idx, part := range parts {
		chunks = append(chunks, ChunkItem{ChunkIndex: idx, Text: part})
	}
	return ChunkDocumentOutput{Chunks: chunks}, nil
}

// EmbedChunksActivity tries the configured embedding providers in preferred
// order. Errors the classifier deems permanent for every provider fail the
// activity non-retryably; anything else is left to the workflow retry policy.
func (a *Activities) EmbedChunksActivity(ctx context.Context, in EmbedChunksInput) (EmbedChunksOutput, error) {
	if len(in.Inputs) == 0 {
		return EmbedChunksOutput{}, nil
	}
	var lastErr error
	sawRetryable := false
	for _, idx := range a.providers.PreferredEmbedOrder() {
		p, ref := a.providers.EmbedProviderByIndex(idx)
		vectors, info, err := p.Embed(ctx, providers.EmbedRequest{
			Operation: "ingest_embed",
			Inputs:    in.Inputs,
			Dimension: a.cfg.EmbedDim,
		})
		if err == nil && len(vectors) != len(in.Inputs) {
			err = fmt.Errorf("provider returned %d vectors for %d inputs", len(vectors), len(in.Inputs))
		}
		if err == nil {
			return EmbedChunksOutput{Vectors: vectors, ProviderName: info.Name, Model: info.Model}, nil
		}
		lastErr = fmt.Errorf("embed via %s: %w", ref.Raw, err)
		if providers.Retryable(providers.ClassifyError(err)) {
			sawRetryable = true
		}
	}
	if !sawRetryable {
		return EmbedChunksOutput{}, temporal.NewNonRetryableApplicationError(
			"embedding failed permanently", "EmbeddingProviderError", lastErr)
	}
	return EmbedChunksOutput{}, lastErr
}

func (a *Activities) ReplaceChunksActivity(ctx context.Context, in ReplaceChunksInput) (ReplaceChunksOutput, error) {
	records := make([]storage.ChunkRecord, 0, len(in.Chunks))
	for i, c := range in.Chunks {
		if i >= len(in.Vectors) {
			return ReplaceChunksOutput{}, fmt.Errorf("missing vector for chunk index %d", c.ChunkIndex)
		}
		records = append(records, storage.ChunkRecord{
			DocumentID: in.DocumentID,
			ChunkIndex: c.ChunkIndex,
			Content:    util.SanitizeText(c.Text),
			Embedding:  vector.ToLiteral(in.Vectors[i]),
		})
	}
	if err := a.chunkRepo.ReplaceChunks(ctx, in.DocumentID, records); err != nil {
		return ReplaceChunksOutput{}, err
	}
	return ReplaceChunksOutput{ChunksWritten: len(records)}, nil
}

func (a *Activities) UpdateDocumentStatusActivity(ctx context.Context, in UpdateDocumentStatusInput) error {
	return a.docRepo.SetStatus(ctx, in.DocumentID, in.Status, in.FailReason)
}
