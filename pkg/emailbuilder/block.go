package emailbuilder

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Block is one node of the email document
type Block struct {
	ID       string    `json:"id"`
	Type     BlockType `json:"type"`
	Props    Props     `json:"props"`
	Children []Block   `json:"children,omitempty"`
}

// NewBlock creates a block of the given type with the registry's default props.
// Containers start with an empty (non-nil) children list.
func NewBlock(registry *Registry, ids IDGenerator, blockType BlockType) (Block, error) {
	props, ok := registry.DefaultProps(blockType)
	if !ok {
		return Block{}, fmt.Errorf("unknown block type: %s", blockType)
	}
	block := Block{
		ID:    ids.NewID(),
		Type:  blockType,
		Props: props,
	}
	if registry.IsContainer(blockType) {
		block.Children = []Block{}
	}
	return block, nil
}

// Clone returns a deep copy of the block and its sub-tree
func (b Block) Clone() Block {
	clone := b
	if b.Children != nil {
		clone.Children = make([]Block, len(b.Children))
		for i, child := range b.Children {
			clone.Children[i] = child.Clone()
		}
	}
	return clone
}

// CloneWithNewIDs returns a deep copy where every id in the sub-tree is replaced
func (b Block) CloneWithNewIDs(ids IDGenerator) Block {
	clone := b
	clone.ID = ids.NewID()
	if b.Children != nil {
		clone.Children = make([]Block, len(b.Children))
		for i, child := range b.Children {
			clone.Children[i] = child.CloneWithNewIDs(ids)
		}
	}
	return clone
}

// Count returns the number of blocks in the sub-tree, the block included
func (b Block) Count() int {
	count := 1
	for _, child := range b.Children {
		count += child.Count()
	}
	return count
}

// blockJSON is used for JSON marshaling/unmarshaling with type information
type blockJSON struct {
	ID       string            `json:"id"`
	Type     BlockType         `json:"type"`
	Props    json.RawMessage   `json:"props,omitempty"`
	Children []json.RawMessage `json:"children,omitempty"`
}

// MarshalJSON writes the block with its typed props. Unknown props are written back verbatim.
func (b Block) MarshalJSON() ([]byte, error) {
	var props json.RawMessage
	switch p := b.Props.(type) {
	case nil:
	case UnknownProps:
		props = p.Raw
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal props of block %s: %w", b.ID, err)
		}
		props = data
	}

	out := struct {
		ID       string          `json:"id"`
		Type     BlockType       `json:"type"`
		Props    json.RawMessage `json:"props,omitempty"`
		Children *[]Block        `json:"children,omitempty"`
	}{
		ID:    b.ID,
		Type:  b.Type,
		Props: props,
	}
	// sections always carry the key, even when empty
	if b.Type == BlockTypeSection || len(b.Children) > 0 {
		children := b.Children
		if children == nil {
			children = []Block{}
		}
		out.Children = &children
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a block, merging its props over the registry defaults
func (b *Block) UnmarshalJSON(data []byte) error {
	decoded, err := UnmarshalBlock(data)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

// UnmarshalBlock decodes a single block and its sub-tree
func UnmarshalBlock(data []byte) (Block, error) {
	if !gjson.ValidBytes(data) {
		return Block{}, fmt.Errorf("failed to unmarshal block: invalid JSON")
	}
	blockType := BlockType(gjson.GetBytes(data, "type").String())
	if blockType == "" {
		return Block{}, fmt.Errorf("failed to unmarshal block: type is required")
	}

	var raw blockJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Block{}, fmt.Errorf("failed to unmarshal block JSON: %w", err)
	}

	props, err := decodeProps(defaultRegistry, blockType, raw.Props)
	if err != nil {
		return Block{}, fmt.Errorf("failed to unmarshal block %s: %w", raw.ID, err)
	}

	block := Block{
		ID:    raw.ID,
		Type:  blockType,
		Props: props,
	}

	if len(raw.Children) > 0 || blockType == BlockTypeSection {
		block.Children = make([]Block, len(raw.Children))
		for i, childData := range raw.Children {
			child, err := UnmarshalBlock(childData)
			if err != nil {
				return Block{}, fmt.Errorf("failed to unmarshal child at index %d: %w", i, err)
			}
			block.Children[i] = child
		}
	}

	return block, nil
}

// UnmarshalBlocks decodes an ordered top-level sequence of blocks
func UnmarshalBlocks(data []byte) ([]Block, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []Block{}, nil
	}

	var rawBlocks []json.RawMessage
	if err := json.Unmarshal(trimmed, &rawBlocks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal blocks array: %w", err)
	}

	blocks := make([]Block, len(rawBlocks))
	for i, rawBlock := range rawBlocks {
		block, err := UnmarshalBlock(rawBlock)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal block at index %d: %w", i, err)
		}
		blocks[i] = block
	}
	return blocks, nil
}

// decodeProps decodes raw props into the typed struct registered for blockType,
// starting from the registry defaults so missing keys keep their default value
func decodeProps(registry *Registry, blockType BlockType, raw json.RawMessage) (Props, error) {
	defaults, ok := registry.DefaultProps(blockType)
	if !ok {
		return UnknownProps{Type: blockType, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return defaults, nil
	}
	return overlayProps(defaults, raw, false)
}

// overlayProps decodes data on top of a copy of base. In strict mode unknown keys are rejected.
func overlayProps(base Props, data []byte, strict bool) (Props, error) {
	switch p := base.(type) {
	case SectionProps:
		return overlay(p, data, strict)
	case HeadingProps:
		return overlay(p, data, strict)
	case ParagraphProps:
		return overlay(p, data, strict)
	case ButtonProps:
		return overlay(p, data, strict)
	case ImageProps:
		return overlay(p, data, strict)
	case SpacerProps:
		return overlay(p, data, strict)
	default:
		return nil, fmt.Errorf("props of type %s cannot be patched", base.BlockType())
	}
}

func overlay[P Props](base P, data []byte, strict bool) (Props, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	if strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(&base); err != nil {
		return nil, fmt.Errorf("failed to decode %s props: %w", base.BlockType(), err)
	}
	return base, nil
}
