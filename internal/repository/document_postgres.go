package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/Notifuse/emailbuilder/internal/domain"
)

const defaultDocumentListLimit = 50

var documentColumns = []string{
	"id",
	"name",
	"schema_version",
	"revision",
	"blocks",
	"html",
	"created_at",
	"updated_at",
}

type documentRepository struct {
	db   domain.DBExecutor
	psql sq.StatementBuilderType
}

// NewDocumentRepository creates a new PostgreSQL document repository
func NewDocumentRepository(db domain.DBExecutor) domain.DocumentRepository {
	return &documentRepository{
		db:   db,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *documentRepository) GetDocument(ctx context.Context, id string) (*domain.EmailDocument, error) {
	query, args, err := r.psql.Select(documentColumns...).
		From("email_documents").
		Where(sq.Eq{"id": id, "deleted_at": nil}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.ErrNotFound{Entity: "document", ID: id}
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// SaveDocument writes the document only when its revision is newer than the
// stored one, so a slow save never overwrites a later edit.
func (r *documentRepository) SaveDocument(ctx context.Context, doc *domain.EmailDocument) (bool, error) {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	query, args, err := r.psql.Insert("email_documents").
		Columns(documentColumns...).
		Values(
			doc.ID,
			doc.Name,
			doc.SchemaVersion,
			doc.Revision,
			doc.Blocks,
			doc.HTML,
			doc.CreatedAt,
			doc.UpdatedAt,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			schema_version = EXCLUDED.schema_version,
			revision = EXCLUDED.revision,
			blocks = EXCLUDED.blocks,
			html = EXCLUDED.html,
			updated_at = EXCLUDED.updated_at,
			deleted_at = NULL
		WHERE email_documents.revision < EXCLUDED.revision`).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to save document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

func (r *documentRepository) DeleteDocument(ctx context.Context, id string) error {
	query, args, err := r.psql.Update("email_documents").
		Set("deleted_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "deleted_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return &domain.ErrNotFound{Entity: "document", ID: id}
	}
	return nil
}

func (r *documentRepository) ListDocuments(ctx context.Context, params domain.ListDocumentsParams) ([]*domain.EmailDocument, error) {
	limit := params.Limit
	if limit == 0 {
		limit = defaultDocumentListLimit
	}

	selectBuilder := r.psql.Select(documentColumns...).
		From("email_documents").
		Where(sq.Eq{"deleted_at": nil}).
		OrderBy("updated_at DESC").
		Limit(limit).
		Offset(params.Offset)

	if params.Search != "" {
		selectBuilder = selectBuilder.Where(sq.ILike{"name": "%" + params.Search + "%"})
	}

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var documents []*domain.EmailDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		documents = append(documents, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document rows: %w", err)
	}

	return documents, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row scanner) (*domain.EmailDocument, error) {
	var doc domain.EmailDocument
	err := row.Scan(
		&doc.ID,
		&doc.Name,
		&doc.SchemaVersion,
		&doc.Revision,
		&doc.Blocks,
		&doc.HTML,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
