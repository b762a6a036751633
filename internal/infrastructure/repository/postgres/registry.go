// Package postgres persists the document registry: one row per ingested
// file, carrying its tenant key and processing status.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tendersuite/kbengine/internal/core/domain"
)

type DocumentRegistry struct {
	db *sql.DB
}

func NewDocumentRegistry(db *sql.DB) *DocumentRegistry {
	return &DocumentRegistry{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRegistry) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026031401)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	file_id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	document_category TEXT NOT NULL,
	document_type TEXT NOT NULL,
	file_name TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	passage_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_scope ON documents(company_id, project_id, document_category, document_type);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRegistry) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	file_id, company_id, project_id, document_category, document_type, file_name, mime_type, storage_path, passage_count, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		doc.FileID, doc.Tenant.CompanyID, doc.Tenant.ProjectID, doc.Tenant.DocumentCategory,
		doc.Tenant.DocumentType, doc.Tenant.FileName, doc.MimeType, doc.StoragePath,
		doc.PassageCount, string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRegistry) GetByFileID(ctx context.Context, fileID string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT file_id, company_id, project_id, document_category, document_type, file_name, mime_type, storage_path, passage_count, status, error_message, created_at, updated_at
FROM documents
WHERE file_id = $1
`, fileID)

	var doc domain.Document
	var status string

	err := row.Scan(
		&doc.FileID, &doc.Tenant.CompanyID, &doc.Tenant.ProjectID, &doc.Tenant.DocumentCategory,
		&doc.Tenant.DocumentType, &doc.Tenant.FileName, &doc.MimeType, &doc.StoragePath,
		&doc.PassageCount, &status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document",
				fmt.Errorf("document not found: %s", fileID))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func (r *DocumentRegistry) UpdateStatus(ctx context.Context, fileID string, status domain.DocumentStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE file_id = $1
`, fileID, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireRow(res, "update document status", fileID)
}

func (r *DocumentRegistry) SetPassageCount(ctx context.Context, fileID string, count int) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET passage_count = $2, updated_at = $3
WHERE file_id = $1
`, fileID, count, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set passage count: %w", err)
	}
	return requireRow(res, "set passage count", fileID)
}

func requireRow(res sql.Result, op, fileID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, op,
			fmt.Errorf("document not found: %s", fileID))
	}
	return nil
}

func (r *DocumentRegistry) DeleteByFileID(ctx context.Context, fileID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE file_id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
