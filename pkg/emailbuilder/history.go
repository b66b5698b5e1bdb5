package emailbuilder

// History is a linear undo stack of tree snapshots.
// Invariant: 0 <= index < len(snapshots).
type History struct {
	snapshots []Tree
	index     int
	limit     int // 0 keeps every snapshot
}

// NewHistory creates a history whose only snapshot is initial
func NewHistory(initial Tree, limit int) *History {
	if limit < 0 {
		limit = 0
	}
	return &History{
		snapshots: []Tree{initial},
		limit:     limit,
	}
}

// Current returns the snapshot at the current index
func (h *History) Current() Tree {
	return h.snapshots[h.index]
}

// Push discards the redo tail, appends snapshot and makes it current.
// When a limit is set the oldest snapshots are dropped.
func (h *History) Push(snapshot Tree) {
	kept := h.snapshots[:h.index+1:h.index+1]
	h.snapshots = append(kept, snapshot)
	h.index = len(h.snapshots) - 1

	if h.limit > 0 && len(h.snapshots) > h.limit {
		drop := len(h.snapshots) - h.limit
		h.snapshots = append([]Tree{}, h.snapshots[drop:]...)
		h.index -= drop
	}
}

// Undo steps back one snapshot. It returns false at the start of history.
func (h *History) Undo() (Tree, bool) {
	if !h.CanUndo() {
		return h.Current(), false
	}
	h.index--
	return h.Current(), true
}

// Redo steps forward one snapshot. It returns false at the end of history.
func (h *History) Redo() (Tree, bool) {
	if !h.CanRedo() {
		return h.Current(), false
	}
	h.index++
	return h.Current(), true
}

func (h *History) CanUndo() bool {
	return h.index > 0
}

func (h *History) CanRedo() bool {
	return h.index < len(h.snapshots)-1
}

// Len returns the number of snapshots held
func (h *History) Len() int {
	return len(h.snapshots)
}

// Index returns the position of the current snapshot
func (h *History) Index() int {
	return h.index
}

// Reset replaces the whole history with a single snapshot
func (h *History) Reset(initial Tree) {
	h.snapshots = []Tree{initial}
	h.index = 0
}
