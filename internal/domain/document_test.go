package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/Notifuse/emailbuilder/pkg/emailbuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDocument() *EmailDocument {
	return &EmailDocument{
		ID:            "doc_1",
		Name:          "Welcome",
		SchemaVersion: 1,
		Blocks: DocumentBlocks{
			{ID: "h1", Type: emailbuilder.BlockTypeHeading, Props: emailbuilder.HeadingProps{Text: "Hi", Size: emailbuilder.SizeLarge, Align: emailbuilder.AlignLeft}},
		},
	}
}

func TestEmailDocument_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *EmailDocument)
		wantErr string
	}{
		{"valid", func(d *EmailDocument) {}, ""},
		{"empty blocks", func(d *EmailDocument) { d.Blocks = nil }, ""},
		{"missing id", func(d *EmailDocument) { d.ID = "" }, "id is required"},
		{"long id", func(d *EmailDocument) { d.ID = strings.Repeat("a", 65) }, "at most 64"},
		{"missing name", func(d *EmailDocument) { d.Name = "" }, "name is required"},
		{"schema version", func(d *EmailDocument) { d.SchemaVersion = 0 }, "schema_version"},
		{"negative revision", func(d *EmailDocument) { d.Revision = -1 }, "revision"},
		{"duplicate block ids", func(d *EmailDocument) { d.Blocks = append(d.Blocks, d.Blocks[0]) }, "invalid blocks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDocument()
			tt.mutate(doc)
			err := doc.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDocumentBlocks_ScanValue(t *testing.T) {
	doc := validDocument()

	value, err := doc.Blocks.Value()
	require.NoError(t, err)

	var scanned DocumentBlocks
	require.NoError(t, scanned.Scan(value))
	require.Len(t, scanned, 1)
	assert.Equal(t, emailbuilder.BlockTypeHeading, scanned[0].Type)
	assert.Equal(t, doc.Blocks[0].Props, scanned[0].Props)

	t.Run("string and nil", func(t *testing.T) {
		var blocks DocumentBlocks
		require.NoError(t, blocks.Scan(`[{"id":"p","type":"paragraph","props":{"text":"x"}}]`))
		assert.Len(t, blocks, 1)
		require.NoError(t, blocks.Scan(nil))
		assert.Nil(t, blocks)
	})

	t.Run("nil encodes as empty array", func(t *testing.T) {
		value, err := DocumentBlocks(nil).Value()
		require.NoError(t, err)
		assert.Equal(t, []byte("[]"), value)
	})

	t.Run("unsupported type", func(t *testing.T) {
		var blocks DocumentBlocks
		assert.Error(t, blocks.Scan(42))
	})
}

func TestEmailDocument_JSON(t *testing.T) {
	data, err := json.Marshal(validDocument())
	require.NoError(t, err)

	var decoded EmailDocument
	require.NoError(t, json.Unmarshal(data, &decoded))
	tree, err := decoded.Tree()
	require.NoError(t, err)
	assert.Equal(t, []string{"h1"}, tree.IDs())
}

func TestErrNotFound(t *testing.T) {
	err := &ErrNotFound{Entity: "document", ID: "d1"}
	assert.Equal(t, "document not found with ID: d1", err.Error())
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	assert.NotErrorIs(t, &ErrNotFound{Entity: "block", ID: "b"}, ErrDocumentNotFound)
}
