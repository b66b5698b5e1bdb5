package testutil

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupMockDB(t *testing.T) {
	t.Run("cleanup closes database", func(t *testing.T) {
		db, _, cleanup := SetupMockDB(t)
		require.NotNil(t, db)

		assert.NoError(t, db.Ping())
		cleanup()
		assert.Error(t, db.Ping())
	})
}

func TestDocumentRows(t *testing.T) {
	db, mock, cleanup := SetupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT").WillReturnRows(DocumentRows(
		DocumentRow{ID: "d1", Name: "One", SchemaVersion: 1, Revision: 3, Blocks: "[]"},
		DocumentRow{ID: "d2", Name: "Two", SchemaVersion: 1, Revision: 7, Blocks: "[]"},
	))

	rows, err := db.Query("SELECT")
	require.NoError(t, err)
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, name, html string
		var version int
		var revision int64
		var blocks []byte
		var created, updated sql.NullTime
		require.NoError(t, rows.Scan(&id, &name, &version, &revision, &blocks, &html, &created, &updated))
		ids = append(ids, id)
		assert.Equal(t, FixedTime, created.Time)
	}
	assert.Equal(t, []string{"d1", "d2"}, ids)
}
