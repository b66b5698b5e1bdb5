package emailbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func treeOf(t *testing.T, blocks ...Block) Tree {
	t.Helper()
	tree, err := NewTree(blocks)
	require.NoError(t, err)
	return tree
}

func TestHistory_UndoRedo(t *testing.T) {
	empty := EmptyTree()
	one := treeOf(t, heading("a", "1"))
	two := treeOf(t, heading("a", "1"), heading("b", "2"))

	h := NewHistory(empty, 0)
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())

	h.Push(one)
	h.Push(two)
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, 2, h.Index())

	tree, ok := h.Undo()
	require.True(t, ok)
	assert.Equal(t, one.IDs(), tree.IDs())

	tree, ok = h.Undo()
	require.True(t, ok)
	assert.True(t, tree.IsEmpty())

	_, ok = h.Undo()
	assert.False(t, ok)
	assert.Equal(t, 0, h.Index())

	tree, ok = h.Redo()
	require.True(t, ok)
	assert.Equal(t, one.IDs(), tree.IDs())
}

func TestHistory_PushTruncatesRedoTail(t *testing.T) {
	h := NewHistory(EmptyTree(), 0)
	h.Push(treeOf(t, heading("a", "1")))
	h.Push(treeOf(t, heading("b", "2")))

	h.Undo()
	h.Undo()
	h.Push(treeOf(t, heading("c", "3")))

	assert.Equal(t, 2, h.Len())
	assert.False(t, h.CanRedo())
	assert.Equal(t, []string{"c"}, h.Current().IDs())
}

func TestHistory_Limit(t *testing.T) {
	h := NewHistory(EmptyTree(), 3)
	for _, id := range []string{"a", "b", "c", "d"} {
		h.Push(treeOf(t, heading(id, id)))
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, 2, h.Index())
	assert.Equal(t, []string{"d"}, h.Current().IDs())

	h.Undo()
	h.Undo()
	assert.False(t, h.CanUndo())
	assert.Equal(t, []string{"b"}, h.Current().IDs())
}

func TestHistory_Reset(t *testing.T) {
	h := NewHistory(EmptyTree(), 0)
	h.Push(treeOf(t, heading("a", "1")))

	h.Reset(treeOf(t, heading("z", "z")))

	assert.Equal(t, 1, h.Len())
	assert.Equal(t, 0, h.Index())
	assert.False(t, h.CanUndo())
	assert.Equal(t, []string{"z"}, h.Current().IDs())
}
