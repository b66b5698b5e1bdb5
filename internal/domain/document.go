package domain

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Notifuse/emailbuilder/pkg/emailbuilder"
	"github.com/asaskevich/govalidator"
)

//go:generate mockgen -destination mocks/mock_document_repository.go -package mocks github.com/Notifuse/emailbuilder/internal/domain DocumentRepository

// EmailDocument is the persisted form of one builder session.
// Blocks is the authoritative content; HTML is the last export and is
// regenerated on every save.
type EmailDocument struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	SchemaVersion int            `json:"schema_version"`
	Revision      int64          `json:"revision"`
	Blocks        DocumentBlocks `json:"blocks"`
	HTML          string         `json:"html"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Validate checks the document metadata and the structure of its blocks
func (d *EmailDocument) Validate() error {
	if d.ID == "" {
		return NewValidationError("id is required")
	}
	if !govalidator.StringLength(d.ID, "1", "64") {
		return NewValidationError("id must be at most 64 characters")
	}
	if !govalidator.IsPrintableASCII(d.ID) {
		return NewValidationError("id must be printable ASCII")
	}
	if d.Name == "" {
		return NewValidationError("name is required")
	}
	if !govalidator.StringLength(d.Name, "1", "255") {
		return NewValidationError("name must be at most 255 characters")
	}
	if d.SchemaVersion < 1 {
		return NewValidationError("schema_version must be at least 1")
	}
	if d.Revision < 0 {
		return NewValidationError("revision must be zero or positive")
	}
	if _, err := emailbuilder.NewTree(d.Blocks); err != nil {
		return NewValidationError(fmt.Sprintf("invalid blocks: %v", err))
	}
	return nil
}

// Tree builds the block tree of the document
func (d *EmailDocument) Tree() (emailbuilder.Tree, error) {
	return emailbuilder.NewTree(d.Blocks)
}

// DocumentBlocks is the top-level block sequence stored as JSONB
type DocumentBlocks []emailbuilder.Block

// UnmarshalJSON decodes blocks through the registry-aware decoder
func (b *DocumentBlocks) UnmarshalJSON(data []byte) error {
	blocks, err := emailbuilder.UnmarshalBlocks(data)
	if err != nil {
		return err
	}
	*b = blocks
	return nil
}

// Scan implements the sql.Scanner interface
func (b *DocumentBlocks) Scan(val interface{}) error {
	var data []byte

	if raw, ok := val.([]byte); ok {
		// the driver reuses the buffer for the next row
		data = bytes.Clone(raw)
	} else if s, ok := val.(string); ok {
		data = []byte(s)
	} else if val == nil {
		*b = nil
		return nil
	} else {
		return fmt.Errorf("unsupported type for blocks: %T", val)
	}

	return b.UnmarshalJSON(data)
}

// Value implements the driver.Valuer interface
func (b DocumentBlocks) Value() (driver.Value, error) {
	if b == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]emailbuilder.Block(b))
}

// ListDocumentsParams filters ListDocuments
type ListDocumentsParams struct {
	Limit  uint64
	Offset uint64
	Search string
}

// DocumentRepository persists email documents
type DocumentRepository interface {
	// GetDocument returns ErrDocumentNotFound when no live document has the id
	GetDocument(ctx context.Context, id string) (*EmailDocument, error)
	// SaveDocument upserts the document unless a newer revision is already stored.
	// It reports whether the row was written.
	SaveDocument(ctx context.Context, doc *EmailDocument) (bool, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, params ListDocumentsParams) ([]*EmailDocument, error)
}
