package emailbuilder

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGenerateNanoID(t *testing.T) {
	id := GenerateNanoID(16)
	assert.Len(t, id, 16)
	for _, c := range id {
		assert.True(t, strings.ContainsRune(NanoIDAlphabet, c), "unexpected character %q", c)
	}

	assert.Len(t, GenerateNanoID(0), 12)
}

func TestNanoIDGenerator_Unique(t *testing.T) {
	gen := NanoIDGenerator{}
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := gen.NewID()
		assert.True(t, strings.HasPrefix(id, "blk_"))
		_, dup := seen[id]
		assert.False(t, dup)
		seen[id] = struct{}{}
	}

	custom := NanoIDGenerator{Prefix: "b-", Length: 4}
	assert.Len(t, custom.NewID(), 6)
}

func TestNewIDGenerator(t *testing.T) {
	assert.IsType(t, NanoIDGenerator{}, NewIDGenerator("nanoid"))
	assert.IsType(t, UUIDGenerator{}, NewIDGenerator("uuid"))
	assert.IsType(t, UUIDGenerator{}, NewIDGenerator(""))

	_, err := uuid.Parse(UUIDGenerator{}.NewID())
	assert.NoError(t, err)
}
