package database

import (
	"database/sql"
	"fmt"

	"github.com/Notifuse/emailbuilder/internal/database/schema"
)

// InitializeDatabase creates the document tables if they don't exist
func InitializeDatabase(db *sql.DB) error {
	for _, query := range schema.TableDefinitions {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}
