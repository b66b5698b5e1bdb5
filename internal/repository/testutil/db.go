package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

// SetupMockDB creates a mock database connection for testing
func SetupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
	}

	return db, mock, cleanup
}

// FixedTime is the created_at and updated_at of every DocumentRows row
var FixedTime = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

// DocumentRow holds the values of one email_documents row for sqlmock
type DocumentRow struct {
	ID            string
	Name          string
	SchemaVersion int
	Revision      int64
	Blocks        string
	HTML          string
}

// DocumentRows builds the rows returned by document queries
func DocumentRows(docs ...DocumentRow) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "name", "schema_version", "revision", "blocks", "html", "created_at", "updated_at"})
	for _, d := range docs {
		rows.AddRow(d.ID, d.Name, d.SchemaVersion, d.Revision, []byte(d.Blocks), d.HTML, FixedTime, FixedTime)
	}
	return rows
}
