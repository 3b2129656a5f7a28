package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    filename,
    original_text,
    file_type,
    file_size,
    uploaded_at
) VALUES ($1, $2, $3, $4, $5, $6)`

	var text sql.NullString
	if doc.OriginalText != nil {
		text = sql.NullString{String: *doc.OriginalText, Valid: true}
	}

	_, err := r.DB.ExecContext(ctx, query,
		doc.ID,
		doc.Filename,
		text,
		doc.FileType,
		doc.FileSize,
		doc.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetByID returns a document by ID.
func (r *PGRepo) GetByID(ctx context.Context, documentID string) (Document, error) {
	const query = `
SELECT id, filename, original_text, file_type, file_size, uploaded_at
FROM documents
WHERE id = $1
LIMIT 1`

	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, documentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// List returns all documents, oldest first.
func (r *PGRepo) List(ctx context.Context) ([]Document, error) {
	const query = `
SELECT id, filename, original_text, file_type, file_size, uploaded_at
FROM documents
ORDER BY uploaded_at ASC, id ASC`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (Document, error) {
	var (
		doc  Document
		text sql.NullString
	)
	if err := s.Scan(&doc.ID, &doc.Filename, &text, &doc.FileType, &doc.FileSize, &doc.UploadedAt); err != nil {
		return Document{}, err
	}
	if text.Valid {
		t := text.String
		doc.OriginalText = &t
	}
	doc.UploadedAt = doc.UploadedAt.UTC()
	return doc, nil
}
