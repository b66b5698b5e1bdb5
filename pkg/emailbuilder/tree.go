package emailbuilder

import (
	"errors"
	"fmt"
)

var (
	// ErrBlockNotFound is returned when an operation references an id absent from the tree
	ErrBlockNotFound = errors.New("block not found")
	// ErrInvalidOperation is returned when an operation would break a tree invariant
	ErrInvalidOperation = errors.New("invalid operation")
)

// node is one arena slot. children holds ordered child ids and is never
// modified in place once the owning Tree has been returned to a caller.
type node struct {
	blockType BlockType
	props     Props
	parent    string
	children  []string
}

// Tree is an immutable block forest stored as an arena keyed by id plus the
// ordered list of top-level ids. Every operation returning a Tree leaves the
// receiver untouched, so older values stay valid as history snapshots.
// The zero value is an empty tree.
type Tree struct {
	registry *Registry
	nodes    map[string]node
	roots    []string
}

// EmptyTree returns a tree with no blocks
func EmptyTree() Tree {
	return Tree{registry: defaultRegistry}
}

// NewTree builds a tree from a nested block sequence using the default registry
func NewTree(blocks []Block) (Tree, error) {
	return NewTreeWithRegistry(defaultRegistry, blocks)
}

// NewTreeWithRegistry builds a tree and validates the forest invariants:
// ids are unique across the whole forest, only containers own children and
// the props of every known type pass Validate
func NewTreeWithRegistry(registry *Registry, blocks []Block) (Tree, error) {
	t := Tree{
		registry: registry,
		nodes:    make(map[string]node),
		roots:    make([]string, 0, len(blocks)),
	}
	for i, block := range blocks {
		if err := t.validateBlock(block, t.nodes); err != nil {
			return Tree{}, fmt.Errorf("invalid block at index %d: %w", i, err)
		}
		t.addSubtree(block, "")
		t.roots = append(t.roots, block.ID)
	}
	return t, nil
}

func (t Tree) reg() *Registry {
	if t.registry == nil {
		return defaultRegistry
	}
	return t.registry
}

// Len returns the total number of blocks at every level
func (t Tree) Len() int {
	return len(t.nodes)
}

// IsEmpty checks if the tree has no top-level blocks
func (t Tree) IsEmpty() bool {
	return len(t.roots) == 0
}

// Contains checks if a block id is present anywhere in the tree
func (t Tree) Contains(id string) bool {
	_, ok := t.nodes[id]
	return ok
}

// Roots returns the ordered top-level ids
func (t Tree) Roots() []string {
	return append([]string{}, t.roots...)
}

// Children returns the ordered ids of a sequence. An empty parentID addresses the top level.
func (t Tree) Children(parentID string) ([]string, bool) {
	seq, ok := t.sequence(parentID)
	if !ok {
		return nil, false
	}
	return append([]string{}, seq...), true
}

// Type returns the type of a block
func (t Tree) Type(id string) (BlockType, bool) {
	n, ok := t.nodes[id]
	return n.blockType, ok
}

// Props returns the typed props of a block
func (t Tree) Props(id string) (Props, bool) {
	n, ok := t.nodes[id]
	return n.props, ok
}

// Find returns the block matching id, with its sub-tree, wherever it occurs
func (t Tree) Find(id string) (Block, bool) {
	if _, ok := t.nodes[id]; !ok {
		return Block{}, false
	}
	return t.materialize(id), true
}

// Locate returns the owning sequence (empty for top level) and the position of a block in it
func (t Tree) Locate(id string) (parentID string, index int, ok bool) {
	n, found := t.nodes[id]
	if !found {
		return "", -1, false
	}
	seq, _ := t.sequence(n.parent)
	for i, sibling := range seq {
		if sibling == id {
			return n.parent, i, true
		}
	}
	return "", -1, false
}

// Blocks materializes the forest as a nested block sequence. It never returns nil.
func (t Tree) Blocks() []Block {
	blocks := make([]Block, 0, len(t.roots))
	for _, id := range t.roots {
		blocks = append(blocks, t.materialize(id))
	}
	return blocks
}

// IDs returns every id in depth-first document order
func (t Tree) IDs() []string {
	ids := make([]string, 0, len(t.nodes))
	var walk func(seq []string)
	walk = func(seq []string) {
		for _, id := range seq {
			ids = append(ids, id)
			walk(t.nodes[id].children)
		}
	}
	walk(t.roots)
	return ids
}

// Walk visits every block in document order with its depth. Returning false stops the walk.
func (t Tree) Walk(fn func(id string, blockType BlockType, props Props, depth int) bool) {
	var walk func(seq []string, depth int) bool
	walk = func(seq []string, depth int) bool {
		for _, id := range seq {
			n := t.nodes[id]
			if !fn(id, n.blockType, n.props, depth) {
				return false
			}
			if !walk(n.children, depth+1) {
				return false
			}
		}
		return true
	}
	walk(t.roots, 0)
}

// Subtree returns the id and every descendant id of a block, depth first
func (t Tree) Subtree(id string) []string {
	if _, ok := t.nodes[id]; !ok {
		return nil
	}
	ids := []string{id}
	for _, child := range t.nodes[id].children {
		ids = append(ids, t.Subtree(child)...)
	}
	return ids
}

// Map returns a new tree where the props of the block matching id are replaced by fn(props)
func (t Tree) Map(id string, fn func(Props) Props) (Tree, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return t, false
	}
	next := t.clone()
	n.props = fn(n.props)
	next.nodes[id] = n
	return next, true
}

// Remove returns a new tree without the block and its entire sub-tree,
// together with every removed id
func (t Tree) Remove(id string) (Tree, []string, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return t, nil, false
	}
	removed := t.Subtree(id)

	next := t.clone()
	for _, removedID := range removed {
		delete(next.nodes, removedID)
	}
	next.setSequence(n.parent, without(t.mustSequence(n.parent), id))
	return next, removed, true
}

// Insert returns a new tree with block (and its sub-tree) inserted at index in the
// sequence owned by parentID. The index is clamped to the sequence bounds.
func (t Tree) Insert(parentID string, index int, block Block) (Tree, error) {
	seq, ok := t.sequence(parentID)
	if !ok {
		return t, fmt.Errorf("%w: parent %s", ErrBlockNotFound, parentID)
	}
	if parentID != "" && !t.reg().IsContainer(t.nodes[parentID].blockType) {
		return t, fmt.Errorf("%w: block %s of type %s cannot own children", ErrInvalidOperation, parentID, t.nodes[parentID].blockType)
	}

	next := t.clone()
	if err := next.validateBlock(block, next.nodes); err != nil {
		return t, err
	}
	next.addSubtree(block, parentID)

	if index < 0 {
		index = 0
	}
	if index > len(seq) {
		index = len(seq)
	}
	updated := make([]string, 0, len(seq)+1)
	updated = append(updated, seq[:index]...)
	updated = append(updated, block.ID)
	updated = append(updated, seq[index:]...)
	next.setSequence(parentID, updated)
	return next, nil
}

// Move returns a new tree where the block at from is reinserted at to within the
// sequence owned by parentID. It is a pure permutation of that sequence.
func (t Tree) Move(parentID string, from, to int) (Tree, bool) {
	seq, ok := t.sequence(parentID)
	if !ok || from < 0 || from >= len(seq) || to < 0 || to >= len(seq) {
		return t, false
	}
	if from == to {
		return t, true
	}
	moved := seq[from]
	updated := without(seq, moved)
	updated = append(updated[:to], append([]string{moved}, updated[to:]...)...)

	next := t.clone()
	next.setSequence(parentID, updated)
	return next, true
}

// sequence returns the ordered ids owned by parentID, top level when empty
func (t Tree) sequence(parentID string) ([]string, bool) {
	if parentID == "" {
		return t.roots, true
	}
	n, ok := t.nodes[parentID]
	if !ok {
		return nil, false
	}
	return n.children, true
}

func (t Tree) mustSequence(parentID string) []string {
	seq, _ := t.sequence(parentID)
	return seq
}

// setSequence must only be called on a freshly cloned tree
func (t *Tree) setSequence(parentID string, seq []string) {
	if parentID == "" {
		t.roots = seq
		return
	}
	n := t.nodes[parentID]
	n.children = seq
	t.nodes[parentID] = n
}

// clone copies the arena index. Node values are copied; children slices are
// shared and replaced, never appended to, by the mutating operations.
func (t Tree) clone() Tree {
	nodes := make(map[string]node, len(t.nodes)+1)
	for id, n := range t.nodes {
		nodes[id] = n
	}
	return Tree{
		registry: t.reg(),
		nodes:    nodes,
		roots:    t.roots,
	}
}

func (t Tree) materialize(id string) Block {
	n := t.nodes[id]
	block := Block{
		ID:    id,
		Type:  n.blockType,
		Props: n.props,
	}
	if n.children != nil || t.reg().IsContainer(n.blockType) {
		block.Children = make([]Block, 0, len(n.children))
		for _, childID := range n.children {
			block.Children = append(block.Children, t.materialize(childID))
		}
	}
	return block
}

// addSubtree writes a validated block and its descendants into the arena
func (t *Tree) addSubtree(block Block, parentID string) {
	n := node{
		blockType: block.Type,
		props:     block.Props,
		parent:    parentID,
	}
	if t.reg().IsContainer(block.Type) {
		n.children = make([]string, 0, len(block.Children))
	}
	for _, child := range block.Children {
		t.addSubtree(child, block.ID)
		n.children = append(n.children, child.ID)
	}
	t.nodes[block.ID] = n
}

// validateBlock checks a block sub-tree against the ids already present in existing
// and against the structural rules, without writing anything
func (t Tree) validateBlock(block Block, existing map[string]node) error {
	seen := make(map[string]struct{})
	var check func(b Block) error
	check = func(b Block) error {
		if b.ID == "" {
			return fmt.Errorf("%w: block id is required", ErrInvalidOperation)
		}
		if _, dup := existing[b.ID]; dup {
			return fmt.Errorf("%w: block id %s already exists", ErrInvalidOperation, b.ID)
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("%w: block id %s appears twice", ErrInvalidOperation, b.ID)
		}
		seen[b.ID] = struct{}{}

		if b.Type == "" {
			return fmt.Errorf("%w: block %s has no type", ErrInvalidOperation, b.ID)
		}
		if b.Props == nil {
			return fmt.Errorf("%w: block %s has no props", ErrInvalidOperation, b.ID)
		}
		if b.Props.BlockType() != b.Type {
			return fmt.Errorf("%w: block %s of type %s carries %s props", ErrInvalidOperation, b.ID, b.Type, b.Props.BlockType())
		}
		// unknown types carry raw props and are skipped at export
		if err := b.Props.Validate(); err != nil {
			return fmt.Errorf("%w: block %s: %v", ErrInvalidOperation, b.ID, err)
		}
		if len(b.Children) > 0 && !t.reg().IsContainer(b.Type) {
			return fmt.Errorf("%w: block %s of type %s cannot own children", ErrInvalidOperation, b.ID, b.Type)
		}
		for _, child := range b.Children {
			if err := check(child); err != nil {
				return err
			}
		}
		return nil
	}
	return check(block)
}

func without(seq []string, id string) []string {
	out := make([]string, 0, len(seq))
	for _, s := range seq {
		if s != id {
			out = append(out, s)
		}
	}
	return out
}
