// Package schema defines the database schema of the document store.
package schema

// TableDefinitions contains all the SQL statements to create the database tables
// Don't put REFERENCES and don't put CHECK constraints in the CREATE TABLE statements
var TableDefinitions = []string{
	`CREATE TABLE IF NOT EXISTS email_documents (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		schema_version INTEGER NOT NULL DEFAULT 1,
		revision BIGINT NOT NULL DEFAULT 0,
		blocks JSONB NOT NULL DEFAULT '[]',
		html TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_email_documents_updated_at ON email_documents (updated_at DESC) WHERE deleted_at IS NULL`,
}
