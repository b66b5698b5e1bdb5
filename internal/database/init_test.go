package database

import (
	"errors"
	"testing"

	"github.com/Notifuse/emailbuilder/internal/database/schema"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeDatabase(t *testing.T) {
	t.Run("creates tables successfully", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS email_documents").WillReturnResult(sqlmock.NewResult(0, 0))
		for range schema.TableDefinitions[1:] {
			mock.ExpectExec("").WillReturnResult(sqlmock.NewResult(0, 0))
		}

		err = InitializeDatabase(db)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stops on the first failing statement", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

		err = InitializeDatabase(db)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create table")
		assert.Contains(t, err.Error(), "permission denied")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
