package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Notifuse/emailbuilder/internal/domain"
	"github.com/Notifuse/emailbuilder/internal/repository/testutil"
	"github.com/Notifuse/emailbuilder/pkg/emailbuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headingBlocks = `[{"id":"h1","type":"heading","props":{"text":"Hello","size":"lg","align":"left","color":"#111827"}}]`

func TestDocumentRepository_GetDocument(t *testing.T) {
	db, mock, cleanup := testutil.SetupMockDB(t)
	defer cleanup()
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, schema_version, revision, blocks, html, created_at, updated_at FROM email_documents WHERE deleted_at IS NULL AND id = $1`)).
			WithArgs("doc_1").
			WillReturnRows(testutil.DocumentRows(testutil.DocumentRow{ID: "doc_1", Name: "Welcome", SchemaVersion: 1, Revision: 4, Blocks: headingBlocks, HTML: "<html></html>"}))

		doc, err := repo.GetDocument(ctx, "doc_1")
		require.NoError(t, err)
		assert.Equal(t, "Welcome", doc.Name)
		assert.Equal(t, int64(4), doc.Revision)
		require.Len(t, doc.Blocks, 1)
		assert.Equal(t, emailbuilder.BlockTypeHeading, doc.Blocks[0].Type)
		assert.Equal(t, "Hello", doc.Blocks[0].Props.(emailbuilder.HeadingProps).Text)
		assert.Equal(t, testutil.FixedTime, doc.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM email_documents`).
			WithArgs("missing").
			WillReturnRows(testutil.DocumentRows())

		_, err := repo.GetDocument(ctx, "missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM email_documents`).
			WithArgs("doc_1").
			WillReturnError(errors.New("connection reset"))

		_, err := repo.GetDocument(ctx, "doc_1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get document")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDocumentRepository_SaveDocument(t *testing.T) {
	db, mock, cleanup := testutil.SetupMockDB(t)
	defer cleanup()
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	newDoc := func() *domain.EmailDocument {
		return &domain.EmailDocument{
			ID:            "doc_1",
			Name:          "Welcome",
			SchemaVersion: 1,
			Revision:      5,
			HTML:          "<html></html>",
		}
	}

	t.Run("written", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO email_documents (id,name,schema_version,revision,blocks,html,created_at,updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (id) DO UPDATE`)).
			WithArgs("doc_1", "Welcome", 1, int64(5), sqlmock.AnyArg(), "<html></html>", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		doc := newDoc()
		written, err := repo.SaveDocument(ctx, doc)
		require.NoError(t, err)
		assert.True(t, written)
		assert.False(t, doc.CreatedAt.IsZero())
		assert.Equal(t, doc.CreatedAt, doc.UpdatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("older revision is ignored", func(t *testing.T) {
		mock.ExpectExec(`WHERE email_documents.revision < EXCLUDED.revision`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		written, err := repo.SaveDocument(ctx, newDoc())
		require.NoError(t, err)
		assert.False(t, written)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO email_documents`).
			WillReturnError(errors.New("disk full"))

		_, err := repo.SaveDocument(ctx, newDoc())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save document")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDocumentRepository_DeleteDocument(t *testing.T) {
	db, mock, cleanup := testutil.SetupMockDB(t)
	defer cleanup()
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	t.Run("soft deletes", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE email_documents SET deleted_at = $1 WHERE deleted_at IS NULL AND id = $2`)).
			WithArgs(sqlmock.AnyArg(), "doc_1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.DeleteDocument(ctx, "doc_1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(`UPDATE email_documents`).
			WithArgs(sqlmock.AnyArg(), "gone").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.DeleteDocument(ctx, "gone")
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDocumentRepository_ListDocuments(t *testing.T) {
	db, mock, cleanup := testutil.SetupMockDB(t)
	defer cleanup()
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	t.Run("default limit", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM email_documents WHERE deleted_at IS NULL ORDER BY updated_at DESC LIMIT 50 OFFSET 0`)).
			WillReturnRows(testutil.DocumentRows(
				testutil.DocumentRow{ID: "d2", Name: "Second", SchemaVersion: 1, Revision: 2, Blocks: "[]"},
				testutil.DocumentRow{ID: "d1", Name: "First", SchemaVersion: 1, Revision: 9, Blocks: headingBlocks},
			))

		docs, err := repo.ListDocuments(ctx, domain.ListDocumentsParams{})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "d2", docs[0].ID)
		assert.Len(t, docs[1].Blocks, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("search", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE deleted_at IS NULL AND name ILIKE $1 ORDER BY updated_at DESC LIMIT 10 OFFSET 20`)).
			WithArgs("%welcome%").
			WillReturnRows(testutil.DocumentRows())

		docs, err := repo.ListDocuments(ctx, domain.ListDocumentsParams{Limit: 10, Offset: 20, Search: "welcome"})
		require.NoError(t, err)
		assert.Empty(t, docs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid stored blocks", func(t *testing.T) {
		mock.ExpectQuery(`FROM email_documents`).
			WillReturnRows(testutil.DocumentRows(testutil.DocumentRow{ID: "bad", Name: "Bad", SchemaVersion: 1, Blocks: "{not json"}))

		_, err := repo.ListDocuments(ctx, domain.ListDocumentsParams{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to scan document")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
