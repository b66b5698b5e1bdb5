package emailbuilder

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/Notifuse/emailbuilder/pkg/logger"
)

// Change is delivered to subscribers after every tree change
type Change struct {
	Op       string
	Tree     Tree
	Revision int64
}

// ChangeListener receives store changes synchronously
type ChangeListener func(change Change)

type subscription struct {
	id int
	fn ChangeListener
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithRegistry sets the block registry used for defaults and container checks
func WithRegistry(registry *Registry) StoreOption {
	return func(s *Store) {
		if registry != nil {
			s.registry = registry
		}
	}
}

// WithIDGenerator sets the generator used for new and duplicated blocks
func WithIDGenerator(ids IDGenerator) StoreOption {
	return func(s *Store) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// WithLogger sets the logger. Outcomes are logged at debug level.
func WithLogger(log logger.Logger) StoreOption {
	return func(s *Store) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithHistoryLimit caps the number of snapshots kept. 0 keeps every snapshot.
func WithHistoryLimit(limit int) StoreOption {
	return func(s *Store) {
		s.historyLimit = limit
	}
}

// Store owns the live tree, the selection and the undo history of one builder.
// It is not safe for concurrent use.
type Store struct {
	registry     *Registry
	ids          IDGenerator
	logger       logger.Logger
	historyLimit int

	tree      Tree
	selection string
	history   *History
	revision  int64

	listeners  []subscription
	nextListen int
}

// NewStore creates a store holding an empty tree
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		registry: defaultRegistry,
		ids:      UUIDGenerator{},
		logger:   logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tree = Tree{registry: s.registry}
	s.history = NewHistory(s.tree, s.historyLimit)
	return s
}

// Tree returns the current tree value
func (s *Store) Tree() Tree {
	return s.tree
}

// Blocks returns the current tree as a nested block sequence
func (s *Store) Blocks() []Block {
	return s.tree.Blocks()
}

func (s *Store) Registry() *Registry {
	return s.registry
}

// Selection returns the selected block id, if any
func (s *Store) Selection() (string, bool) {
	return s.selection, s.selection != ""
}

// SelectedBlock returns the selected block with its sub-tree
func (s *Store) SelectedBlock() (Block, bool) {
	if s.selection == "" {
		return Block{}, false
	}
	return s.tree.Find(s.selection)
}

func (s *Store) CanUndo() bool {
	return s.history.CanUndo()
}

func (s *Store) CanRedo() bool {
	return s.history.CanRedo()
}

// HistoryLen returns the number of snapshots held
func (s *Store) HistoryLen() int {
	return s.history.Len()
}

// HistoryIndex returns the position of the live snapshot
func (s *Store) HistoryIndex() int {
	return s.history.Index()
}

// Revision increases by one on every change delivered to subscribers
func (s *Store) Revision() int64 {
	return s.revision
}

// Subscribe registers a listener and returns a function that removes it
func (s *Store) Subscribe(fn ChangeListener) func() {
	s.nextListen++
	id := s.nextListen
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	return func() {
		kept := make([]subscription, 0, len(s.listeners))
		for _, sub := range s.listeners {
			if sub.id != id {
				kept = append(kept, sub)
			}
		}
		s.listeners = kept
	}
}

// Load replaces the tree and resets history and selection
func (s *Store) Load(blocks []Block) Outcome {
	tree, err := NewTreeWithRegistry(s.registry, blocks)
	if err != nil {
		s.logger.WithField("error", err.Error()).Warn("Failed to load block tree")
		return s.record("load", "", InvalidOperation)
	}
	s.tree = tree
	s.history.Reset(tree)
	s.selection = ""
	s.emit("load")
	return s.record("load", "", OK)
}

// AddBlock appends block to the top level (empty parentID) or to a section's children
func (s *Store) AddBlock(block Block, parentID string) Outcome {
	seq, ok := s.tree.Children(parentID)
	if !ok {
		return s.record("add", block.ID, NotFound)
	}
	return s.insert("add", block, parentID, len(seq))
}

// InsertBlock inserts block at index in the sequence owned by parentID.
// The index is clamped to the sequence bounds.
func (s *Store) InsertBlock(block Block, parentID string, index int) Outcome {
	return s.insert("insert", block, parentID, index)
}

// CreateBlock inserts a new block of blockType with the registry defaults and returns its id
func (s *Store) CreateBlock(blockType BlockType, parentID string, index int) (string, Outcome) {
	block, err := NewBlock(s.registry, s.ids, blockType)
	if err != nil {
		return "", s.record("create", "", InvalidOperation)
	}
	outcome := s.insert("create", block, parentID, index)
	if outcome != OK {
		return "", outcome
	}
	return block.ID, outcome
}

func (s *Store) insert(op string, block Block, parentID string, index int) Outcome {
	if err := s.checkBlock(block); err != nil {
		s.logger.WithField("block_id", block.ID).WithField("error", err.Error()).Debug("Rejected block")
		return s.record(op, block.ID, InvalidOperation)
	}
	next, err := s.tree.Insert(parentID, index, block.Clone())
	if err != nil {
		s.logger.WithField("block_id", block.ID).WithField("error", err.Error()).Debug("Rejected block")
		return s.record(op, block.ID, outcomeFromError(err))
	}
	s.commit(op, next)
	return s.record(op, block.ID, OK)
}

// checkBlock rejects unregistered types and props that fail validation anywhere in the sub-tree
func (s *Store) checkBlock(block Block) error {
	if !s.registry.IsRegistered(block.Type) {
		return fmt.Errorf("unknown block type: %s", block.Type)
	}
	if block.Props == nil {
		return fmt.Errorf("block %s has no props", block.ID)
	}
	if err := block.Props.Validate(); err != nil {
		return err
	}
	for _, child := range block.Children {
		if err := s.checkBlock(child); err != nil {
			return err
		}
	}
	return nil
}

// UpdateBlock merges patch into the typed props of a block. Keys use the JSON
// names of the props struct. Children are never touched.
func (s *Store) UpdateBlock(id string, patch map[string]any) Outcome {
	current, ok := s.tree.Props(id)
	if !ok {
		return s.record("update", id, NotFound)
	}
	if len(patch) == 0 {
		return s.record("update", id, OK)
	}
	if _, unknown := current.(UnknownProps); unknown {
		return s.record("update", id, InvalidOperation)
	}

	data, err := json.Marshal(patch)
	if err != nil {
		return s.record("update", id, InvalidOperation)
	}
	updated, err := overlayProps(current, data, true)
	if err != nil {
		s.logger.WithField("block_id", id).WithField("error", err.Error()).Debug("Rejected props patch")
		return s.record("update", id, InvalidOperation)
	}
	return s.replaceProps("update", id, current, updated)
}

// SetProps replaces the props of a block with a value of the same type
func (s *Store) SetProps(id string, props Props) Outcome {
	current, ok := s.tree.Props(id)
	if !ok {
		return s.record("set_props", id, NotFound)
	}
	if props == nil || props.BlockType() != current.BlockType() {
		return s.record("set_props", id, InvalidOperation)
	}
	return s.replaceProps("set_props", id, current, props)
}

func (s *Store) replaceProps(op, id string, current, updated Props) Outcome {
	if err := updated.Validate(); err != nil {
		s.logger.WithField("block_id", id).WithField("error", err.Error()).Debug("Rejected props")
		return s.record(op, id, InvalidOperation)
	}
	if reflect.DeepEqual(current, updated) {
		return s.record(op, id, OK)
	}
	next, _ := s.tree.Map(id, func(Props) Props { return updated })
	s.commit(op, next)
	return s.record(op, id, OK)
}

// RemoveBlock removes a block and its whole sub-tree
func (s *Store) RemoveBlock(id string) Outcome {
	next, removed, ok := s.tree.Remove(id)
	if !ok {
		return s.record("remove", id, NotFound)
	}
	s.commit("remove", next)
	s.logger.WithField("block_id", id).WithField("removed", len(removed)).Debug("Removed sub-tree")
	return s.record("remove", id, OK)
}

// DuplicateBlock inserts a deep copy of a block, with fresh ids throughout, right
// after the original in the sequence that owns it. It returns the copy's id.
func (s *Store) DuplicateBlock(id string) (string, Outcome) {
	parentID, index, ok := s.tree.Locate(id)
	if !ok {
		return "", s.record("duplicate", id, NotFound)
	}
	original, _ := s.tree.Find(id)
	duplicate := original.CloneWithNewIDs(s.ids)

	next, err := s.tree.Insert(parentID, index+1, duplicate)
	if err != nil {
		s.logger.WithField("block_id", id).WithField("error", err.Error()).Warn("Failed to duplicate block")
		return "", s.record("duplicate", id, outcomeFromError(err))
	}
	s.commit("duplicate", next)
	return duplicate.ID, s.record("duplicate", id, OK)
}

// ReorderBlocks moves the top-level block at from to position to
func (s *Store) ReorderBlocks(from, to int) Outcome {
	count := len(s.tree.roots)
	if from < 0 || from >= count || to < 0 || to >= count {
		return s.record("reorder", "", InvalidOperation)
	}
	if from == to {
		return s.record("reorder", "", OK)
	}
	next, _ := s.tree.Move("", from, to)
	s.commit("reorder", next)
	return s.record("reorder", "", OK)
}

// MoveBlock moves a block to the position currently held by overID.
// Both blocks must belong to the same sequence.
func (s *Store) MoveBlock(id, overID string) Outcome {
	parentID, from, ok := s.tree.Locate(id)
	if !ok {
		return s.record("move", id, NotFound)
	}
	overParent, to, ok := s.tree.Locate(overID)
	if !ok {
		return s.record("move", overID, NotFound)
	}
	if id == overID {
		return s.record("move", id, OK)
	}
	if parentID != overParent {
		return s.record("move", id, InvalidOperation)
	}
	next, _ := s.tree.Move(parentID, from, to)
	s.commit("move", next)
	return s.record("move", id, OK)
}

// SelectBlock selects a block. An empty id clears the selection.
func (s *Store) SelectBlock(id string) Outcome {
	if id == "" {
		return s.ClearSelection()
	}
	if !s.tree.Contains(id) {
		return s.record("select", id, NotFound)
	}
	s.selection = id
	return s.record("select", id, OK)
}

func (s *Store) ClearSelection() Outcome {
	s.selection = ""
	return s.record("clear_selection", "", OK)
}

// Undo restores the previous snapshot without adding a history entry
func (s *Store) Undo() Outcome {
	tree, ok := s.history.Undo()
	if !ok {
		return s.record("undo", "", InvalidOperation)
	}
	s.swap("undo", tree)
	return s.record("undo", "", OK)
}

// Redo restores the next snapshot without adding a history entry
func (s *Store) Redo() Outcome {
	tree, ok := s.history.Redo()
	if !ok {
		return s.record("redo", "", InvalidOperation)
	}
	s.swap("redo", tree)
	return s.record("redo", "", OK)
}

func (s *Store) commit(op string, next Tree) {
	s.history.Push(next)
	s.swap(op, next)
}

func (s *Store) swap(op string, tree Tree) {
	s.tree = tree
	if s.selection != "" && !tree.Contains(s.selection) {
		s.selection = ""
	}
	s.emit(op)
}

func (s *Store) emit(op string) {
	s.revision++
	change := Change{Op: op, Tree: s.tree, Revision: s.revision}
	listeners := append([]subscription(nil), s.listeners...)
	for _, sub := range listeners {
		sub.fn(change)
	}
}

func (s *Store) record(op, id string, outcome Outcome) Outcome {
	s.logger.WithFields(map[string]interface{}{
		"op":       op,
		"block_id": id,
		"outcome":  outcome.String(),
	}).Debug("Builder store operation")
	return outcome
}
