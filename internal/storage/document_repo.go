package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"docuchat/internal/models"
)

var ErrDocumentNotFound = errors.New("document not found")

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) CreateDocument(ctx context.Context, filename, storagePath string) (models.Document, error) {
	var d models.Document
	err := r.db.Pool.QueryRow(ctx, `
INSERT INTO documents (filename, storage_path, status)
VALUES ($1, $2, 'pending')
RETURNING id, filename, storage_path, status, COALESCE(fail_reason,''), uploaded_at`,
		filename, storagePath).
		Scan(&d.ID, &d.Filename, &d.StoragePath, &d.Status, &d.FailReason, &d.UploadedAt)
	if err != nil {
		return models.Document{}, fmt.Errorf("create document: %w", err)
	}
	return d, nil
}

func (r *DocumentRepo) GetDocument(ctx context.Context, id int64) (models.Document, error) {
	var d models.Document
	err := r.db.Pool.QueryRow(ctx, `
SELECT id, filename, storage_path, status, COALESCE(fail_reason,''), uploaded_at
FROM documents
WHERE id=$1`, id).
		Scan(&d.ID, &d.Filename, &d.StoragePath, &d.Status, &d.FailReason, &d.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (r *DocumentRepo) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, filename, storage_path, status, COALESCE(fail_reason,''), uploaded_at
FROM documents
ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	out := make([]models.Document, 0)
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.StoragePath, &d.Status, &d.FailReason, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// DeleteDocument removes the document row; chunks go with it via
// ON DELETE CASCADE, so the similarity index holds no dangling vectors.
func (r *DocumentRepo) DeleteDocument(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM documents WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// ClaimForProcessing attempts the single-writer pending -> processing
// transition. A fresh claim succeeds from pending or failed; a re-execution
// holding the same lease re-claims its own in-flight document so a crashed
// attempt can resume. Completed documents and documents leased by another
// worker are not claimed.
func (r *DocumentRepo) ClaimForProcessing(ctx context.Context, id int64, leaseID string) (bool, string, error) {
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE documents
SET status='processing', lease_id=$2, fail_reason=NULL
WHERE id=$1
  AND (status IN ('pending','failed') OR (status='processing' AND lease_id=$2))`,
		id, leaseID)
	if err != nil {
		return false, "", fmt.Errorf("claim document: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, models.DocStatusProcessing, nil
	}
	var status string
	err = r.db.Pool.QueryRow(ctx, `SELECT status FROM documents WHERE id=$1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, "", ErrDocumentNotFound
	}
	if err != nil {
		return false, "", fmt.Errorf("read document status after claim: %w", err)
	}
	return false, status, nil
}

func (r *DocumentRepo) SetStatus(ctx context.Context, id int64, status, failReason string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE documents SET status=$2, fail_reason=NULLIF($3,''), lease_id=NULL WHERE id=$1`,
		id, status, failReason)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}
