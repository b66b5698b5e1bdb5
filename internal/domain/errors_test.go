package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrNotFound(t *testing.T) {
	err := &ErrNotFound{Entity: "document", ID: "doc_1"}
	assert.Equal(t, "document not found with ID: doc_1", err.Error())
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	assert.ErrorIs(t, fmt.Errorf("load: %w", err), ErrDocumentNotFound)

	other := &ErrNotFound{Entity: "template", ID: "t1"}
	assert.False(t, errors.Is(other, ErrDocumentNotFound))
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("name is required")
	assert.Equal(t, "validation error: name is required", err.Error())
	assert.True(t, IsValidationError(err))
	assert.True(t, IsValidationError(fmt.Errorf("create: %w", err)))
	assert.False(t, IsValidationError(errors.New("plain")))
	assert.False(t, IsValidationError(nil))
}

func TestErrRateLimited(t *testing.T) {
	err := &ErrRateLimited{Action: "test send", RetryAfter: 9400 * time.Millisecond}
	assert.Equal(t, "test send rate limited, retry in 9s", err.Error())
}
